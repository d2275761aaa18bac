// Package usage reports disk and subtree space consumption: mounted
// partition usage, a per-directory size rollup, the largest files, and a
// size distribution.
package usage

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/cleanigo/cleanigo/internal/walk"
)

// Partition is the usage of one mounted filesystem.
type Partition struct {
	Device      string
	Mountpoint  string
	Fstype      string
	Total       uint64
	Used        uint64
	Free        uint64
	UsedPercent float64
}

// Partitions returns usage for all mounted partitions. Partitions that
// cannot be queried (permissions, pseudo-filesystems) are skipped.
func Partitions(ctx context.Context) ([]Partition, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]Partition, 0, len(parts))
	for _, p := range parts {
		u, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		out = append(out, Partition{
			Device:      p.Device,
			Mountpoint:  p.Mountpoint,
			Fstype:      p.Fstype,
			Total:       u.Total,
			Used:        u.Used,
			Free:        u.Free,
			UsedPercent: u.UsedPercent,
		})
	}
	return out, nil
}

// Node is one directory in the rollup tree.
type Node struct {
	Path  string
	Name  string
	Size  int64
	Files int
	Dirs  []*Node
}

// Bucket is one bar of the size distribution histogram.
type Bucket struct {
	Label string
	Max   int64 // upper bound, 0 = unbounded
	Count int
}

// Report is the result of a subtree scan.
type Report struct {
	Root       *Node
	TotalBytes int64
	FileCount  int
	Largest    []walk.Entry
	Buckets    []Bucket
	Warnings   []string
}

func newBuckets() []Bucket {
	return []Bucket{
		{Label: "< 1 KiB", Max: 1 << 10},
		{Label: "1 KiB - 1 MiB", Max: 1 << 20},
		{Label: "1 MiB - 10 MiB", Max: 10 << 20},
		{Label: "10 MiB - 100 MiB", Max: 100 << 20},
		{Label: "100 MiB - 1 GiB", Max: 1 << 30},
		{Label: "> 1 GiB"},
	}
}

// Scan walks root and builds the usage report. topN bounds the largest-file
// list.
func Scan(ctx context.Context, root string, opts walk.Options, topN int) (*Report, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	w := walk.New(opts)
	entries, err := w.Walk(ctx, root)
	if err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = 20
	}

	rep := &Report{
		Root:    &Node{Path: root, Name: filepath.Base(root)},
		Buckets: newBuckets(),
	}
	nodes := map[string]*Node{root: rep.Root}

	for e := range entries {
		rep.TotalBytes += e.Size
		rep.FileCount++
		bucketAdd(rep.Buckets, e.Size)

		// Credit the size to every ancestor directory up to the root.
		dir := filepath.Dir(e.Path)
		node := dirNode(nodes, root, dir)
		node.Files++
		for n := node; n != nil; n = nodes[parentOf(root, n.Path)] {
			n.Size += e.Size
			if n.Path == root {
				break
			}
		}

		rep.Largest = append(rep.Largest, e)
		if len(rep.Largest) > topN*4 {
			trimLargest(&rep.Largest, topN)
		}
	}
	trimLargest(&rep.Largest, topN)
	sortTree(rep.Root)
	rep.Warnings = w.Warnings()
	return rep, ctx.Err()
}

// dirNode returns the Node for dir, creating it and any missing ancestors.
func dirNode(nodes map[string]*Node, root, dir string) *Node {
	if n, ok := nodes[dir]; ok {
		return n
	}
	parent := dirNode(nodes, root, parentOf(root, dir))
	n := &Node{Path: dir, Name: filepath.Base(dir)}
	parent.Dirs = append(parent.Dirs, n)
	nodes[dir] = n
	return n
}

// parentOf returns dir's parent, clamped at root.
func parentOf(root, dir string) string {
	if dir == root {
		return root
	}
	p := filepath.Dir(dir)
	if len(p) < len(root) {
		return root
	}
	return p
}

func bucketAdd(buckets []Bucket, size int64) {
	for i := range buckets {
		if buckets[i].Max == 0 || size < buckets[i].Max {
			buckets[i].Count++
			return
		}
	}
}

func trimLargest(entries *[]walk.Entry, topN int) {
	s := *entries
	sort.Slice(s, func(i, j int) bool { return s[i].Size > s[j].Size })
	if len(s) > topN {
		s = s[:topN]
	}
	*entries = s
}

// sortTree orders every directory level by size descending, matching the
// tree renderer's largest-first display.
func sortTree(n *Node) {
	sort.Slice(n.Dirs, func(i, j int) bool { return n.Dirs[i].Size > n.Dirs[j].Size })
	for _, d := range n.Dirs {
		sortTree(d)
	}
}
