package dedupe

import (
	"context"
	"sort"
)

// groupBySize drains the record stream and buckets records by exact byte
// size, discarding sizes seen only once (no duplicate possible). This is
// the one stage that holds the whole scanned population in memory; records
// are metadata only, nothing has been hashed yet.
//
// Group members are ordered by path so downstream stages see a stable order
// regardless of walker scheduling.
func groupBySize(ctx context.Context, records <-chan FileRecord, opts Options, progress chan<- Event) []SizeGroup {
	bySize := make(map[int64][]FileRecord)
	n := 0
	for {
		select {
		case rec, ok := <-records:
			if !ok {
				return finishGroups(bySize, n, progress)
			}
			if opts.SkipZeroByte && rec.Size == 0 {
				continue
			}
			if rec.Size < opts.MinFileSize {
				continue
			}
			bySize[rec.Size] = append(bySize[rec.Size], rec)
			n++
			if n%1024 == 0 {
				publish(progress, Event{Stage: StageClassify, Done: n})
			}
		case <-ctx.Done():
			return finishGroups(bySize, n, progress)
		}
	}
}

func finishGroups(bySize map[int64][]FileRecord, n int, progress chan<- Event) []SizeGroup {
	groups := make([]SizeGroup, 0, len(bySize))
	for size, files := range bySize {
		if len(files) < 2 {
			continue
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		groups = append(groups, SizeGroup{Size: size, Files: files})
	}
	// Largest sizes first: the expensive hashing work with the biggest
	// payoff starts earliest.
	sort.Slice(groups, func(i, j int) bool { return groups[i].Size > groups[j].Size })
	publish(progress, Event{Stage: StageClassify, Done: n, Total: n})
	return groups
}
