package dedupe

import "context"

// Result is what a detection run hands to the presentation layer: the
// confirmed duplicate sets plus every file dropped along the way and its
// reason.
type Result struct {
	Sets    []DuplicateSet
	Skipped []Skip

	// Candidates is the number of files that survived size grouping and
	// entered fingerprinting.
	Candidates int
}

// TotalWastedBytes is the space reclaimable by resolving every set.
func (r *Result) TotalWastedBytes() int64 {
	var total int64
	for _, s := range r.Sets {
		total += s.WastedBytes()
	}
	return total
}

// Find runs the detection pipeline over a record stream: size grouping,
// partial-digest elimination, full-digest confirmation, set building. Each
// stage processes only the survivors of the previous one, so the bulk of
// the tree is never fully hashed. records is typically fed by a tree
// walker; Find drains it until closed or ctx is cancelled.
//
// progress may be nil. File-scoped errors end up in Result.Skipped; the
// only fatal errors are invalid Options and cancellation.
func Find(ctx context.Context, records <-chan FileRecord, opts Options, progress chan<- Event) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	groups := groupBySize(ctx, records, opts, progress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := 0
	for _, g := range groups {
		candidates += len(g.Files)
	}

	fp := newFingerprinter(opts)
	digestGroups, err := fp.run(ctx, groups, progress)
	if err != nil {
		return nil, err
	}

	return &Result{
		Sets:       buildSets(digestGroups, opts.Keeper),
		Skipped:    fp.skips,
		Candidates: candidates,
	}, nil
}
