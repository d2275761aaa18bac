package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleanigo/cleanigo/internal/config"
	"github.com/cleanigo/cleanigo/internal/core"
	"github.com/cleanigo/cleanigo/internal/tempclean"
	"github.com/cleanigo/cleanigo/internal/trash"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Free up disk space",
	Long:  "Scan the platform temp directories for stale files and move them to the recoverable trash.",
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview the cleanup plan without deleting")
	cleanCmd.Flags().Int("older-than", 7, "Only clean files not modified in this many days")
	cleanCmd.Flags().BoolP("yes", "y", false, "Clean without confirmation")
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	days, _ := cmd.Flags().GetInt("older-than")
	yes, _ := cmd.Flags().GetBool("yes")

	dirs := tempclean.TempDirs()
	if len(dirs) == 0 {
		fmt.Println("  No temp directories found.")
		return nil
	}

	items, total, warnings := tempclean.Scan(ctx, dirs, time.Duration(days)*24*time.Hour)
	if len(items) == 0 {
		fmt.Println("  Nothing to clean.")
		return nil
	}

	perDir := make(map[string]int64)
	for _, it := range items {
		perDir[it.Source] += it.Size
	}
	fmt.Printf("  %d stale files (%s) across %d temp directories:\n", len(items), core.FormatSize(total), len(dirs))
	for _, d := range dirs {
		if sz, ok := perDir[d]; ok {
			fmt.Printf("    %-40s %s\n", d, core.FormatSize(sz))
		}
	}
	if len(warnings) > 0 {
		fmt.Printf("  %d paths could not be scanned\n", len(warnings))
	}

	if !yes && !dryRun {
		fmt.Println("  Re-run with --yes to clean, or --dry-run to preview.")
		return nil
	}

	var mover tempclean.Mover
	if !dryRun {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		dir := cfg.TrashDir
		if dir == "" {
			if dir, err = trash.DefaultDir(); err != nil {
				return err
			}
		}
		t, err := trash.Open(dir)
		if err != nil {
			return err
		}
		defer t.Close()
		mover = t
	}

	res := tempclean.Clean(ctx, items, mover, dryRun)
	verb := "Freed"
	if dryRun {
		verb = "Would free"
	}
	fmt.Printf("  %s %s (%d files, %d failed)\n", verb, core.FormatSize(res.Freed), res.Cleaned, res.Failed)
	for _, f := range res.Failures {
		fmt.Println("    " + f)
	}
	return nil
}
