package dedupe

import "sort"

// buildSets turns surviving full-digest groups into DuplicateSets with a
// keeper designated by the configured strategy. Output ordering is
// deterministic: sets sorted by reclaimable bytes descending, tie-broken by
// digest, members in stable path order. Repeated runs over an unchanged
// tree therefore produce identical sets and identical keepers.
func buildSets(groups []digestGroup, strategy KeeperStrategy) []DuplicateSet {
	sets := make([]DuplicateSet, 0, len(groups))
	for _, g := range groups {
		files := append([]FileRecord(nil), g.files...)
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		sets = append(sets, DuplicateSet{
			Digest: g.digest,
			Size:   g.size,
			Files:  files,
			Keeper: selectKeeper(files, strategy),
		})
	}
	sort.Slice(sets, func(i, j int) bool {
		wi, wj := sets[i].WastedBytes(), sets[j].WastedBytes()
		if wi != wj {
			return wi > wj
		}
		return sets[i].Digest < sets[j].Digest
	})
	return sets
}

// selectKeeper picks the index of the member to preserve. files must
// already be in stable path order.
func selectKeeper(files []FileRecord, strategy KeeperStrategy) int {
	if strategy == KeepFirstFound {
		return 0
	}
	keeper := 0
	for i := 1; i < len(files); i++ {
		if preferKeeper(files[i], files[keeper], strategy) {
			keeper = i
		}
	}
	return keeper
}

// preferKeeper reports whether a should replace b as keeper candidate.
func preferKeeper(a, b FileRecord, strategy KeeperStrategy) bool {
	switch strategy {
	case KeepOldest:
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.Before(b.ModTime)
		}
	case KeepNewest:
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.After(b.ModTime)
		}
	case KeepShortestPath:
		// fall through to the shared tie-breaks below
	}
	if len(a.Path) != len(b.Path) {
		return len(a.Path) < len(b.Path)
	}
	return a.Path < b.Path
}
