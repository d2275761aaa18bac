package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	debug   bool
	dryRun  bool
	cfgFile string

	// Version info populated from main
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets build-time version information.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "cleanigo",
	Short: "Reclaim disk space safely",
	Long: `Cleanigo - reclaim disk space safely.

Finds duplicate files, stale temp files, and oversized directories, and
removes reclaimable content through a recoverable trash - never a
permanent delete by default.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		// When invoked without a subcommand, show usage.
		_ = cmd.Help()
	},
}

// Execute runs the root command under ctx, which carries the process
// signal handling for cooperative cancellation.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Show detailed operation logs")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.config/cleanigo/config.yaml)")

	// Register all subcommands
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(disksCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(versionCmd)
}
