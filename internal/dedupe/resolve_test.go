package dedupe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTrash records trash calls and can fail selected paths.
type fakeTrash struct {
	calls []string
	fail  map[string]error
}

func (f *fakeTrash) Trash(path string) error {
	if err, ok := f.fail[path]; ok {
		return err
	}
	f.calls = append(f.calls, path)
	return os.Remove(path)
}

func findSets(t *testing.T, records ...FileRecord) []DuplicateSet {
	t.Helper()
	res, err := Find(context.Background(), feed(records...), testOptions(), nil)
	require.NoError(t, err)
	return res.Sets
}

func TestResolveTrash(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
	a := writeFile(t, dir, "a", "duplicate payload", mtime)
	b := writeFile(t, dir, "b", "duplicate payload", mtime.Add(time.Minute))
	c := writeFile(t, dir, "c", "duplicate payload", mtime.Add(2*time.Minute))

	sets := findSets(t, a, b, c)
	require.Len(t, sets, 1)

	ft := &fakeTrash{}
	r := NewResolver(ft, testOptions())
	sum, err := r.Resolve(context.Background(), sets, ActionTrash, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Acted)
	assert.Equal(t, 0, sum.Skipped)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 2*a.Size, sum.BytesReclaimed)
	// The keeper (oldest) is never acted on.
	assert.NotContains(t, ft.calls, a.Path)
	assert.FileExists(t, a.Path)
	assert.NoFileExists(t, b.Path)
	assert.NoFileExists(t, c.Path)
}

func TestResolveActedCountProperty(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	records := []FileRecord{
		writeFile(t, dir, "g1/a", "first group!", mtime),
		writeFile(t, dir, "g1/b", "first group!", mtime),
		writeFile(t, dir, "g1/c", "first group!", mtime),
		writeFile(t, dir, "g2/a", "second group", mtime),
		writeFile(t, dir, "g2/b", "second group", mtime),
	}
	sets := findSets(t, records...)
	require.Len(t, sets, 2)

	totalMembers := 0
	for _, s := range sets {
		totalMembers += len(s.Files)
	}

	r := NewResolver(&fakeTrash{}, testOptions())
	sum, err := r.Resolve(context.Background(), sets, ActionTrash, nil)
	require.NoError(t, err)
	assert.Equal(t, totalMembers-len(sets), sum.Acted)
	assert.Len(t, sum.Outcomes, totalMembers-len(sets))
}

func TestResolveDryRunLeavesFilesAndMatchesRealSummary(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "a", "dry run content", mtime)
	b := writeFile(t, dir, "b", "dry run content", mtime)
	sets := findSets(t, a, b)

	dryOpts := testOptions()
	dryOpts.DryRun = true
	ft := &fakeTrash{}
	dry, err := NewResolver(ft, dryOpts).Resolve(context.Background(), sets, ActionTrash, nil)
	require.NoError(t, err)

	assert.Empty(t, ft.calls, "dry run must not touch the filesystem")
	assert.FileExists(t, a.Path)
	assert.FileExists(t, b.Path)

	real, err := NewResolver(&fakeTrash{}, testOptions()).Resolve(context.Background(), sets, ActionTrash, nil)
	require.NoError(t, err)

	assert.Equal(t, real.Acted, dry.Acted)
	assert.Equal(t, real.Skipped, dry.Skipped)
	assert.Equal(t, real.Failed, dry.Failed)
	assert.Equal(t, real.BytesReclaimed, dry.BytesReclaimed)
}

func TestResolveChangedSinceScan(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "a", "stable content!!", mtime)
	b := writeFile(t, dir, "b", "stable content!!", mtime)
	sets := findSets(t, a, b)
	require.Len(t, sets, 1)

	// Truncate the duplicate between scan and resolution.
	dup := sets[0].Duplicates()[0]
	require.NoError(t, os.Truncate(dup.Path, 0))

	ft := &fakeTrash{}
	sum, err := NewResolver(ft, testOptions()).Resolve(context.Background(), sets, ActionTrash, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Acted)
	assert.Equal(t, 1, sum.Skipped)
	require.Len(t, sum.Outcomes, 1)
	assert.Equal(t, StatusSkipped, sum.Outcomes[0].Status)
	assert.Contains(t, sum.Outcomes[0].Reason, "changed since scan")
	assert.Empty(t, ft.calls, "a changed file must never be acted on blindly")
}

func TestResolveHardlinkReplace(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "keeper", "link my content", mtime)
	b := writeFile(t, dir, "extra1", "link my content", mtime.Add(time.Minute))
	sets := findSets(t, a, b)
	require.Len(t, sets, 1)

	sum, err := NewResolver(nil, testOptions()).Resolve(context.Background(), sets, ActionHardlink, nil)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Acted, "outcomes: %+v", sum.Outcomes)

	// The duplicate path survives and now shares storage with the keeper.
	assert.FileExists(t, b.Path)
	content, err := os.ReadFile(b.Path)
	require.NoError(t, err)
	assert.Equal(t, "link my content", string(content))

	ki, err := os.Stat(a.Path)
	require.NoError(t, err)
	di, err := os.Stat(b.Path)
	require.NoError(t, err)
	assert.True(t, os.SameFile(ki, di), "duplicate must be a hard link to the keeper")
}

func TestResolveHardlinkAlreadyLinked(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "keeper", "shared inode data", mtime)
	linked := FileRecord{Path: dir + "/hardlink", Size: a.Size, ModTime: a.ModTime}
	require.NoError(t, os.Link(a.Path, linked.Path))

	sets := findSets(t, a, linked)
	require.Len(t, sets, 1)

	sum, err := NewResolver(nil, testOptions()).Resolve(context.Background(), sets, ActionHardlink, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Acted)
	assert.Equal(t, 1, sum.Skipped)
	assert.Contains(t, sum.Outcomes[0].Reason, "already hard-linked")
}

func TestResolveCrossDeviceFailsOnlyThatFile(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "volA/keeper", "cross device data", mtime)
	b := writeFile(t, dir, "volB/dup", "cross device data", mtime.Add(time.Minute))
	c := writeFile(t, dir, "volA/other1", "unaffected pair!!", mtime)
	d := writeFile(t, dir, "volA/other2", "unaffected pair!!", mtime.Add(time.Minute))

	sets := findSets(t, a, b, c, d)
	require.Len(t, sets, 2)

	// Simulate two volumes: everything under volB reports a different
	// device ID.
	r := NewResolver(nil, testOptions())
	r.deviceID = func(path string) (uint64, error) {
		if strings.Contains(path, string(filepath.Separator)+"volB"+string(filepath.Separator)) {
			return 2, nil
		}
		return 1, nil
	}

	sum, err := r.Resolve(context.Background(), sets, ActionHardlink, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Acted, "the same-volume set must still resolve")
	assert.Equal(t, 1, sum.Failed)
	var failed Outcome
	for _, o := range sum.Outcomes {
		if o.Status == StatusFailed {
			failed = o
		}
	}
	assert.Equal(t, b.Path, failed.Path)
	assert.Contains(t, failed.Reason, "cross-device")
	assert.FileExists(t, b.Path, "a refused action must leave the file untouched")
}

func TestResolveDeviceCheckFailureIsNotCrossDevice(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "a", "stat failure data", mtime)
	b := writeFile(t, dir, "b", "stat failure data", mtime.Add(time.Minute))

	sets := findSets(t, a, b)
	require.Len(t, sets, 1)

	r := NewResolver(nil, testOptions())
	r.deviceID = func(path string) (uint64, error) {
		return 0, errors.New("operation not permitted")
	}

	sum, err := r.Resolve(context.Background(), sets, ActionHardlink, nil)
	require.NoError(t, err)

	require.Equal(t, 1, sum.Failed)
	var failed Outcome
	for _, o := range sum.Outcomes {
		if o.Status == StatusFailed {
			failed = o
		}
	}
	assert.Contains(t, failed.Reason, "operation not permitted")
	assert.NotContains(t, failed.Reason, "cross-device",
		"a stat failure must not masquerade as a device mismatch")
	assert.FileExists(t, b.Path)
}

func TestResolveCancelledSkipsRemaining(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "a", "cancel content", mtime)
	b := writeFile(t, dir, "b", "cancel content", mtime)
	sets := findSets(t, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ft := &fakeTrash{}
	sum, err := NewResolver(ft, testOptions()).Resolve(ctx, sets, ActionTrash, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Acted)
	assert.Equal(t, 1, sum.Skipped)
	assert.Contains(t, sum.Outcomes[0].Reason, "cancelled")
	assert.Empty(t, ft.calls)
}

func TestResolveUnknownAction(t *testing.T) {
	_, err := NewResolver(&fakeTrash{}, testOptions()).Resolve(context.Background(), nil, Action("shred"), nil)
	assert.Error(t, err)
}

func TestResolveTrashFailureIsIsolated(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	a := writeFile(t, dir, "a", "isolate failure", mtime)
	b := writeFile(t, dir, "b", "isolate failure", mtime)
	c := writeFile(t, dir, "c", "isolate failure", mtime)
	sets := findSets(t, a, b, c)
	require.Len(t, sets, 1)

	dups := sets[0].Duplicates()
	ft := &fakeTrash{fail: map[string]error{dups[0].Path: errors.New("device busy")}}
	sum, err := NewResolver(ft, testOptions()).Resolve(context.Background(), sets, ActionTrash, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Acted, "the sibling must still be processed")
	assert.Equal(t, 1, sum.Failed)
	for _, o := range sum.Outcomes {
		if o.Status == StatusFailed {
			assert.Contains(t, o.Reason, "device busy")
		}
	}
}
