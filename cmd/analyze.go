package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleanigo/cleanigo/internal/core"
	"github.com/cleanigo/cleanigo/internal/usage"
	"github.com/cleanigo/cleanigo/internal/walk"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Explore disk usage",
	Long:  "Scan a directory tree and report where the space went: size rollup per directory, largest files, size distribution.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().Int("depth", 3, "Maximum directory depth to display (0 = unlimited)")
	analyzeCmd.Flags().String("min-size", "", "Minimum directory size to display (e.g. 100MB)")
	analyzeCmd.Flags().StringSlice("exclude", nil, "Glob patterns to exclude from the scan")
	analyzeCmd.Flags().Int("top", 10, "Number of largest files to list")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	f := cmd.Flags()
	depth, _ := f.GetInt("depth")
	top, _ := f.GetInt("top")
	excludes, _ := f.GetStringSlice("exclude")
	var minSize int64
	if s, _ := f.GetString("min-size"); s != "" {
		var err error
		if minSize, err = core.ParseSize(s); err != nil {
			return fmt.Errorf("--min-size: %w", err)
		}
	}

	rep, err := usage.Scan(cmd.Context(), root, walk.Options{Exclude: excludes}, top)
	if err != nil {
		return err
	}

	usage.PrintTree(os.Stdout, rep, depth, minSize)

	fmt.Println("\n  Largest files:")
	for _, e := range rep.Largest {
		fmt.Printf("    %-10s %s\n", core.FormatSize(e.Size), e.Path)
	}

	fmt.Println("\n  Size distribution:")
	for _, b := range rep.Buckets {
		fmt.Printf("    %-18s %d files\n", b.Label, b.Count)
	}

	if len(rep.Warnings) > 0 {
		fmt.Printf("\n  %d paths could not be scanned (run with --debug for details)\n", len(rep.Warnings))
	}
	return nil
}
