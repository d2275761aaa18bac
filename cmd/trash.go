package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleanigo/cleanigo/internal/config"
	"github.com/cleanigo/cleanigo/internal/core"
	"github.com/cleanigo/cleanigo/internal/trash"
)

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Manage the recoverable trash",
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trashed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTrash()
		if err != nil {
			return err
		}
		defer t.Close()

		entries, err := t.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("  Trash is empty.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("  %s  %-10s %s  %s\n",
				e.ID, core.FormatSize(e.Size), e.TrashedAt.Local().Format("2006-01-02 15:04"), e.OriginalPath)
		}
		return nil
	},
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a trashed file to its original path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTrash()
		if err != nil {
			return err
		}
		defer t.Close()
		return t.Restore(args[0])
	},
}

var trashEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Permanently delete trashed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("older-than")
		t, err := openTrash()
		if err != nil {
			return err
		}
		defer t.Close()

		freed, removed, err := t.Empty(time.Duration(days) * 24 * time.Hour)
		fmt.Printf("  Permanently removed %d entries, freed %s\n", removed, core.FormatSize(freed))
		return err
	},
}

func init() {
	trashEmptyCmd.Flags().Int("older-than", 0, "Only remove entries trashed more than this many days ago (0 = all)")
	trashCmd.AddCommand(trashListCmd)
	trashCmd.AddCommand(trashRestoreCmd)
	trashCmd.AddCommand(trashEmptyCmd)
}

func openTrash() (*trash.Trash, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	dir := cfg.TrashDir
	if dir == "" {
		if dir, err = trash.DefaultDir(); err != nil {
			return nil, err
		}
	}
	return trash.Open(dir)
}
