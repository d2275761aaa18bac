package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleanigo/cleanigo/internal/core"
	"github.com/cleanigo/cleanigo/internal/usage"
)

var disksCmd = &cobra.Command{
	Use:   "disks",
	Short: "Show mounted partition usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		parts, err := usage.Partitions(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("  %-24s %-14s %-10s %-10s %-10s %s\n",
			"Mountpoint", "Device", "Total", "Used", "Free", "Use%")
		for _, p := range parts {
			fmt.Printf("  %-24s %-14s %-10s %-10s %-10s %.1f%%\n",
				p.Mountpoint, p.Device,
				core.FormatSize(int64(p.Total)), core.FormatSize(int64(p.Used)),
				core.FormatSize(int64(p.Free)), p.UsedPercent)
		}
		return nil
	},
}
