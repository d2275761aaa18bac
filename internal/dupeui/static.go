package dupeui

import (
	"fmt"
	"io"
	"strings"

	"github.com/cleanigo/cleanigo/internal/core"
	"github.com/cleanigo/cleanigo/internal/dedupe"
)

// PrintSets writes a plain-text listing of duplicate sets. Used when stdout
// is not a terminal and the interactive review cannot run.
func PrintSets(w io.Writer, res *dedupe.Result) {
	if len(res.Sets) == 0 {
		fmt.Fprintln(w, "  No duplicate files found.")
		return
	}

	fmt.Fprintf(w, "  %d duplicate sets, %s reclaimable\n", len(res.Sets), core.FormatSize(res.TotalWastedBytes()))
	fmt.Fprintln(w, "  "+strings.Repeat("-", 58))
	for i, s := range res.Sets {
		fmt.Fprintf(w, "  #%d  %d files x %s  (%s wasted)\n",
			i+1, len(s.Files), core.FormatSize(s.Size), core.FormatSize(s.WastedBytes()))
		for j, f := range s.Files {
			marker := "dup "
			if j == s.Keeper {
				marker = "keep"
			}
			fmt.Fprintf(w, "      %s  %s\n", marker, f.Path)
		}
	}
	fmt.Fprintln(w, "  "+strings.Repeat("-", 58))
}

// PrintSkips lists every file dropped during scanning with its reason.
func PrintSkips(w io.Writer, skips []dedupe.Skip) {
	if len(skips) == 0 {
		return
	}
	fmt.Fprintf(w, "  %d files skipped during scan:\n", len(skips))
	for _, s := range skips {
		fmt.Fprintf(w, "      %s (%s): %v\n", s.Path, s.Stage, s.Err)
	}
}

// PrintSummary writes the resolution run totals and every non-success
// outcome with its reason. Silent skips are unacceptable for a destructive
// tool, so the listing is exhaustive.
func PrintSummary(w io.Writer, sum *dedupe.Summary) {
	verb := "Reclaimed"
	if sum.DryRun {
		verb = "Would reclaim"
	}
	fmt.Fprintf(w, "  %s %s: %d files via %s, %d skipped, %d failed\n",
		verb, core.FormatSize(sum.BytesReclaimed), sum.Acted, sum.Action, sum.Skipped, sum.Failed)
	for _, o := range sum.Outcomes {
		if o.Status == dedupe.StatusDone {
			continue
		}
		fmt.Fprintf(w, "      %s  %s: %s\n", o.Status, o.Path, o.Reason)
	}
}
