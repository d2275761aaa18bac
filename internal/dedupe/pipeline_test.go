package dedupe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile creates a file with content and a fixed mtime, returning its
// record.
func writeFile(t *testing.T, dir, name, content string, mtime time.Time) FileRecord {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return FileRecord{Path: path, Size: int64(len(content)), ModTime: mtime}
}

func feed(records ...FileRecord) <-chan FileRecord {
	ch := make(chan FileRecord, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return ch
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.MinFileSize = 0
	return opts
}

func TestFindDuplicates(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)

	// Three identical files plus one of the same size but different
	// content: the odd one out must be eliminated by the partial digest.
	a := writeFile(t, dir, "a.txt", "same content here", mtime)
	b := writeFile(t, dir, "b.txt", "same content here", mtime.Add(time.Minute))
	c := writeFile(t, dir, "c.txt", "same content here", mtime.Add(2*time.Minute))
	d := writeFile(t, dir, "d.txt", "diff content here", mtime)
	require.Equal(t, a.Size, d.Size)

	res, err := Find(context.Background(), feed(a, b, c, d), testOptions(), nil)
	require.NoError(t, err)
	require.Len(t, res.Sets, 1)

	set := res.Sets[0]
	assert.Len(t, set.Files, 3)
	assert.Equal(t, a.Size, set.Size)
	paths := []string{set.Files[0].Path, set.Files[1].Path, set.Files[2].Path}
	assert.ElementsMatch(t, []string{a.Path, b.Path, c.Path}, paths)
	// Default strategy keeps the oldest file.
	assert.Equal(t, a.Path, set.KeeperRecord().Path)
	assert.Equal(t, 2*a.Size, set.WastedBytes())
}

func TestFindSetInvariants(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)

	var records []FileRecord
	records = append(records,
		writeFile(t, dir, "x/one.dat", "payload-alpha", mtime),
		writeFile(t, dir, "y/two.dat", "payload-alpha", mtime),
		writeFile(t, dir, "z/three.dat", "payload-alpha", mtime),
		writeFile(t, dir, "p/big1.bin", "other-payload", mtime),
		writeFile(t, dir, "q/big2.bin", "other-payload", mtime),
		writeFile(t, dir, "lonely.txt", "nothing like me", mtime),
	)

	res, err := Find(context.Background(), feed(records...), testOptions(), nil)
	require.NoError(t, err)
	require.Len(t, res.Sets, 2)

	seen := make(map[string]bool)
	for _, set := range res.Sets {
		assert.GreaterOrEqual(t, len(set.Files), 2)
		for _, f := range set.Files {
			assert.Equal(t, set.Size, f.Size, "all members share the set size")
			assert.False(t, seen[f.Path], "no path may appear in two sets")
			seen[f.Path] = true
		}
		assert.GreaterOrEqual(t, set.Keeper, 0)
		assert.Less(t, set.Keeper, len(set.Files))
	}
}

func TestFindIdempotent(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-2 * time.Hour)

	var records []FileRecord
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		records = append(records, writeFile(t, dir, name+".log", "repeated body", mtime))
	}
	records = append(records, writeFile(t, dir, "f.log", "another body!", mtime))
	records = append(records, writeFile(t, dir, "g.log", "another body!", mtime))

	first, err := Find(context.Background(), feed(records...), testOptions(), nil)
	require.NoError(t, err)
	second, err := Find(context.Background(), feed(records...), testOptions(), nil)
	require.NoError(t, err)

	assert.Equal(t, first.Sets, second.Sets, "unchanged tree must yield identical sets and keepers")
}

func TestFindSkipZeroByte(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now()
	empty1 := writeFile(t, dir, "empty1", "", mtime)
	empty2 := writeFile(t, dir, "empty2", "", mtime)

	res, err := Find(context.Background(), feed(empty1, empty2), testOptions(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Sets)

	opts := testOptions()
	opts.SkipZeroByte = false
	res, err = Find(context.Background(), feed(empty1, empty2), opts, nil)
	require.NoError(t, err)
	require.Len(t, res.Sets, 1)
	assert.Len(t, res.Sets[0].Files, 2)
}

func TestFindMinFileSize(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now()
	small1 := writeFile(t, dir, "s1", "tiny", mtime)
	small2 := writeFile(t, dir, "s2", "tiny", mtime)

	opts := testOptions()
	opts.MinFileSize = 1024
	res, err := Find(context.Background(), feed(small1, small2), opts, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Sets)
}

func TestFindUnreadableFileIsSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "a.bin", "duplicate data", mtime)
	b := writeFile(t, dir, "b.bin", "duplicate data", mtime)
	// A record whose file vanished between walk and hash: same size as the
	// group so it enters fingerprinting, then fails to open.
	ghost := FileRecord{Path: filepath.Join(dir, "ghost.bin"), Size: a.Size, ModTime: mtime}

	res, err := Find(context.Background(), feed(a, b, ghost), testOptions(), nil)
	require.NoError(t, err)
	require.Len(t, res.Sets, 1)
	assert.Len(t, res.Sets[0].Files, 2)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, ghost.Path, res.Skipped[0].Path)
	assert.Equal(t, StagePartialHash, res.Skipped[0].Stage)
	assert.Error(t, res.Skipped[0].Err)
}

func TestFindFileTimeoutSkipsNotFatal(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "a.bin", "identical payload", mtime)
	b := writeFile(t, dir, "b.bin", "identical payload", mtime)

	// A deadline this tight expires before the first chunk is read, so
	// every file hits the timeout path.
	opts := testOptions()
	opts.FileTimeout = time.Nanosecond

	res, err := Find(context.Background(), feed(a, b), opts, nil)
	require.NoError(t, err, "a timed-out file must not fail the run")
	assert.Empty(t, res.Sets)

	require.Len(t, res.Skipped, 2)
	for _, sk := range res.Skipped {
		assert.ErrorIs(t, sk.Err, errFileTimeout, sk.Path)
		assert.Equal(t, StagePartialHash, sk.Stage)
	}
}

func TestFindSuffixCatchesTailDifference(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)

	// Two large files that agree for the whole prefix and differ only in
	// the final bytes. The suffix hash must separate them without a full
	// read; either way they must not be reported as duplicates.
	body := make([]byte, 2<<20)
	for i := range body {
		body[i] = byte(i % 251)
	}
	tailA := append(append([]byte(nil), body...), 'A')
	tailB := append(append([]byte(nil), body...), 'B')

	a := writeFile(t, dir, "tail_a.bin", string(tailA), mtime)
	b := writeFile(t, dir, "tail_b.bin", string(tailB), mtime)

	res, err := Find(context.Background(), feed(a, b), testOptions(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Sets)
}

func TestFindByteCompare(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "a", "identical twins", mtime)
	b := writeFile(t, dir, "b", "identical twins", mtime)

	opts := testOptions()
	opts.ByteCompare = true
	res, err := Find(context.Background(), feed(a, b), opts, nil)
	require.NoError(t, err)
	require.Len(t, res.Sets, 1)
	assert.Len(t, res.Sets[0].Files, 2)
}

func TestFindInvalidOptions(t *testing.T) {
	cases := map[string]func(*Options){
		"negative prefix":  func(o *Options) { o.PrefixBytes = -1 },
		"negative suffix":  func(o *Options) { o.SuffixBytes = -1 },
		"zero workers":     func(o *Options) { o.Workers = 0 },
		"bad hash":         func(o *Options) { o.Hash = "crc32" },
		"bad keeper":       func(o *Options) { o.Keeper = "largest" },
		"negative minsize": func(o *Options) { o.MinFileSize = -5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := testOptions()
			mutate(&opts)
			_, err := Find(context.Background(), feed(), opts, nil)
			assert.Error(t, err)
		})
	}
}

func TestFindPublishesProgress(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "a", "progress payload", mtime)
	b := writeFile(t, dir, "b", "progress payload", mtime)

	progress := make(chan Event, 128)
	_, err := Find(context.Background(), feed(a, b), testOptions(), progress)
	require.NoError(t, err)
	close(progress)

	stages := make(map[Stage]bool)
	for ev := range progress {
		stages[ev.Stage] = true
	}
	assert.True(t, stages[StageClassify])
	assert.True(t, stages[StagePartialHash])
	assert.True(t, stages[StageFullHash])
}
