package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cleanigo/cleanigo/internal/config"
	"github.com/cleanigo/cleanigo/internal/core"
	"github.com/cleanigo/cleanigo/internal/dedupe"
	"github.com/cleanigo/cleanigo/internal/dupeui"
	"github.com/cleanigo/cleanigo/internal/trash"
	"github.com/cleanigo/cleanigo/internal/walk"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe [path]",
	Short: "Find and resolve duplicate files",
	Long: `Find duplicate files under a directory and reclaim the wasted space.

Files are grouped by size, then eliminated with cheap partial digests, and
only confirmed duplicates are fully hashed. Resolution moves duplicates to
the recoverable trash, or replaces them with hard links to the keeper.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDedupe,
}

func init() {
	f := dedupeCmd.Flags()
	f.BoolVar(&dryRun, "dry-run", false, "Report sets and intended actions without touching the filesystem")
	f.String("min-size", "1KB", "Minimum file size to consider (e.g. 1KB, 10MB)")
	f.StringSlice("exclude", nil, "Glob patterns to exclude, relative to the root (e.g. 'node_modules/**')")
	f.String("hash", "", "Hash algorithm: sha256, sha1, md5")
	f.String("keep", "", "Keeper strategy: oldest, newest, shortest_path, first_found")
	f.Bool("link", false, "Replace duplicates with hard links to the keeper instead of trashing")
	f.Bool("byte-compare", false, "Confirm duplicates byte-for-byte before acting")
	f.Bool("include-hidden", false, "Scan hidden files and directories")
	f.Bool("one-filesystem", false, "Do not cross filesystem boundaries below the root")
	f.Int("workers", 0, "Concurrent hash workers (default: CPUs, max 8)")
	f.Duration("timeout", 0, "Per-file hash timeout (default 30s)")
	f.BoolP("yes", "y", false, "Resolve without interactive review")
	f.Bool("json", false, "Print duplicate sets as JSON and exit")
}

func runDedupe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	opts, err := cfg.DedupeOptions()
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("min-size") {
		s, _ := f.GetString("min-size")
		if opts.MinFileSize, err = core.ParseSize(s); err != nil {
			return fmt.Errorf("--min-size: %w", err)
		}
	} else if opts.MinFileSize == 0 {
		opts.MinFileSize = 1024
	}
	if f.Changed("hash") {
		s, _ := f.GetString("hash")
		opts.Hash = dedupe.HashAlgorithm(s)
	}
	if f.Changed("keep") {
		s, _ := f.GetString("keep")
		opts.Keeper = dedupe.KeeperStrategy(s)
	}
	if f.Changed("byte-compare") {
		opts.ByteCompare, _ = f.GetBool("byte-compare")
	}
	if f.Changed("workers") {
		opts.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("timeout") {
		opts.FileTimeout, _ = f.GetDuration("timeout")
	}
	if f.Changed("dry-run") {
		opts.DryRun = dryRun
	}
	dryRun = opts.DryRun
	// Malformed configuration fails the whole run here, before any
	// filesystem mutation.
	if err := opts.Validate(); err != nil {
		return err
	}

	excludes, _ := f.GetStringSlice("exclude")
	includeHidden, _ := f.GetBool("include-hidden")
	oneFS, _ := f.GetBool("one-filesystem")
	walker := walk.New(walk.Options{
		Exclude:       append(append([]string(nil), cfg.Exclude...), excludes...),
		IncludeHidden: includeHidden,
		SameDevice:    oneFS,
	})

	slog.Info("scanning for duplicates", "root", root, "hash", string(opts.Hash), "keeper", string(opts.Keeper))
	start := time.Now()

	entries, err := walker.Walk(ctx, root)
	if err != nil {
		return err
	}
	records := make(chan dedupe.FileRecord, 256)
	go func() {
		defer close(records)
		for e := range entries {
			select {
			case records <- dedupe.FileRecord{Path: e.Path, Size: e.Size, ModTime: e.ModTime}:
			case <-ctx.Done():
				return
			}
		}
	}()

	progress := make(chan dedupe.Event, 64)
	go logProgress(progress)

	res, err := dedupe.Find(ctx, records, opts, progress)
	close(progress)
	if err != nil {
		return err
	}
	if n := len(walker.Warnings()); n > 0 {
		slog.Warn("some paths could not be scanned", "count", n)
		for _, w := range walker.Warnings() {
			slog.Debug("walk warning", "warning", w)
		}
	}
	slog.Info("scan complete",
		"files", walker.Seen(), "candidates", res.Candidates,
		"sets", len(res.Sets), "reclaimable", core.FormatSize(res.TotalWastedBytes()),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if asJSON, _ := f.GetBool("json"); asJSON {
		return json.NewEncoder(os.Stdout).Encode(exportResult(res))
	}

	dupeui.PrintSkips(os.Stdout, res.Skipped)
	if len(res.Sets) == 0 {
		fmt.Println("  No duplicate files found.")
		return nil
	}

	action := dedupe.ActionTrash
	if link, _ := f.GetBool("link"); link {
		action = dedupe.ActionHardlink
	}

	sets := res.Sets
	yes, _ := f.GetBool("yes")
	interactive := isatty.IsTerminal(os.Stdout.Fd()) && !yes
	if interactive {
		confirmed := false
		sets, confirmed, err = dupeui.Review(res.Sets)
		if err != nil {
			return err
		}
		if !confirmed || len(sets) == 0 {
			fmt.Println("  Nothing resolved.")
			return nil
		}
	} else {
		dupeui.PrintSets(os.Stdout, res)
		if !yes && !dryRun {
			fmt.Println("  Re-run with --yes to resolve, or --dry-run to preview.")
			return nil
		}
	}

	var trasher dedupe.Trasher
	if action == dedupe.ActionTrash && !dryRun {
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
		trasher = t
	}

	resolver := dedupe.NewResolver(trasher, opts)
	summary, err := resolver.Resolve(ctx, sets, action, nil)
	if err != nil {
		return err
	}
	dupeui.PrintSummary(os.Stdout, summary)
	return nil
}

// logProgress drains pipeline progress events into debug logs. The engine
// publishes without blocking, so a quiet consumer costs nothing.
func logProgress(events <-chan dedupe.Event) {
	for ev := range events {
		slog.Debug("progress", "stage", string(ev.Stage), "done", ev.Done, "total", ev.Total, "path", ev.Path)
	}
}

type exportSet struct {
	Digest string   `json:"digest"`
	Size   int64    `json:"size_bytes"`
	Wasted int64    `json:"wasted_bytes"`
	Keeper string   `json:"keeper"`
	Files  []string `json:"files"`
}

type exportReport struct {
	Sets        []exportSet `json:"sets"`
	SetCount    int         `json:"set_count"`
	WastedBytes int64       `json:"wasted_bytes"`
	Skipped     []string    `json:"skipped,omitempty"`
}

func exportResult(res *dedupe.Result) exportReport {
	rep := exportReport{SetCount: len(res.Sets), WastedBytes: res.TotalWastedBytes()}
	for _, s := range res.Sets {
		es := exportSet{
			Digest: s.Digest,
			Size:   s.Size,
			Wasted: s.WastedBytes(),
			Keeper: s.KeeperRecord().Path,
		}
		for _, f := range s.Files {
			es.Files = append(es.Files, f.Path)
		}
		rep.Sets = append(rep.Sets, es)
	}
	for _, sk := range res.Skipped {
		rep.Skipped = append(rep.Skipped, fmt.Sprintf("%s: %v", sk.Path, sk.Err))
	}
	return rep
}
