package dedupe

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cleanigo/cleanigo/internal/core"
)

// Action is a disposition applied to non-keeper members of a DuplicateSet.
type Action string

const (
	// ActionTrash moves duplicates to the recoverable trash. Never a
	// direct permanent delete.
	ActionTrash Action = "trash"
	// ActionHardlink deletes a duplicate and replaces it with a hard link
	// to the keeper, preserving the path for anything that opens it later.
	ActionHardlink Action = "hardlink-replace"
)

// ErrChangedSinceScan marks a file whose size or mtime no longer matches
// the scan-time snapshot. The action is refused, never forced through.
var ErrChangedSinceScan = errors.New("changed since scan")

// ErrCrossDevice marks a hardlink-replace refused because keeper and
// duplicate live on different filesystem volumes.
var ErrCrossDevice = errors.New("cross-device link: keeper is on a different filesystem")

// Trasher is the recoverable-deletion primitive consumed by the Resolution
// Engine. A nil error means the move is confirmed; the engine never assumes
// success.
type Trasher interface {
	Trash(path string) error
}

// Resolver applies a disposition action to the duplicates in a set, one
// file at a time, continuing past individual failures. The keeper is never
// acted on.
type Resolver struct {
	trash Trasher
	opts  Options

	// deviceID and inodeID are swappable so tests can simulate volumes.
	deviceID func(string) (uint64, error)
	inodeID  func(string) (dev, ino uint64, err error)
}

// NewResolver creates a Resolver. trash may be nil when only
// hardlink-replace or dry-run resolutions are performed.
func NewResolver(trash Trasher, opts Options) *Resolver {
	return &Resolver{
		trash:    trash,
		opts:     opts,
		deviceID: core.DeviceID,
		inodeID:  core.InodeID,
	}
}

// Resolve applies action to every non-keeper member of every set. Each
// file's outcome is recorded; per-file errors never abort siblings. Under
// DryRun the same outcomes and byte totals are produced with no filesystem
// mutation. Cancellation stops issuing new actions between files; the
// remaining candidates are reported as skipped.
func (r *Resolver) Resolve(ctx context.Context, sets []DuplicateSet, action Action, progress chan<- Event) (*Summary, error) {
	if action != ActionTrash && action != ActionHardlink {
		return nil, fmt.Errorf("unknown disposition action %q", string(action))
	}
	if action == ActionTrash && r.trash == nil && !r.opts.DryRun {
		return nil, errors.New("trash action requires a trash backend")
	}

	summary := &Summary{Action: action, DryRun: r.opts.DryRun}
	for _, set := range sets {
		keeper := set.KeeperRecord()
		for _, dup := range set.Duplicates() {
			if ctx.Err() != nil {
				summary.add(Outcome{Path: dup.Path, Action: action, Status: StatusSkipped, Reason: "run cancelled"})
				continue
			}
			o := r.resolveOne(keeper, dup, action)
			summary.add(o)
			publish(progress, Event{Stage: StageResolve, Path: dup.Path, Done: len(summary.Outcomes)})
		}
	}
	return summary, nil
}

func (r *Resolver) resolveOne(keeper, dup FileRecord, action Action) Outcome {
	o := Outcome{Path: dup.Path, Action: action}

	// Guard the time-of-check/time-of-use gap: the file may have been
	// modified or replaced between scan and action.
	if reason, ok := r.changedSinceScan(dup); !ok {
		o.Status = StatusSkipped
		o.Reason = reason
		return o
	}

	switch action {
	case ActionTrash:
		if r.opts.DryRun {
			o.Status = StatusDone
			o.Bytes = dup.Size
			o.Reason = "dry-run"
			return o
		}
		if err := r.trash.Trash(dup.Path); err != nil {
			o.Status = StatusFailed
			o.Reason = err.Error()
			return o
		}
		o.Status = StatusDone
		o.Bytes = dup.Size

	case ActionHardlink:
		if kDev, kIno, err := r.inodeID(keeper.Path); err == nil {
			if dDev, dIno, err := r.inodeID(dup.Path); err == nil && kDev == dDev && kIno == dIno {
				o.Status = StatusSkipped
				o.Reason = "already hard-linked to keeper"
				return o
			}
		}
		// Hard links cannot cross volumes; refuse before touching anything.
		// Checked under dry-run too so both summaries match.
		same, err := r.sameVolume(keeper.Path, dup.Path)
		if err != nil {
			o.Status = StatusFailed
			o.Reason = err.Error()
			return o
		}
		if !same {
			o.Status = StatusFailed
			o.Reason = ErrCrossDevice.Error()
			return o
		}
		if reason, ok := r.changedSinceScan(keeper); !ok {
			o.Status = StatusSkipped
			o.Reason = "keeper " + reason
			return o
		}
		if r.opts.DryRun {
			o.Status = StatusDone
			o.Bytes = dup.Size
			o.Reason = "dry-run"
			return o
		}
		if err := linkReplace(keeper.Path, dup.Path); err != nil {
			o.Status = StatusFailed
			if core.IsCrossDevice(err) {
				o.Reason = ErrCrossDevice.Error()
			} else {
				o.Reason = err.Error()
			}
			return o
		}
		o.Status = StatusDone
		o.Bytes = dup.Size
	}
	return o
}

// changedSinceScan re-verifies that rec still matches its scan-time size
// and mtime. Returns ok=false with a reason when the action must not run.
func (r *Resolver) changedSinceScan(rec FileRecord) (reason string, ok bool) {
	info, err := os.Lstat(rec.Path)
	if err != nil {
		return fmt.Sprintf("%s: %v", ErrChangedSinceScan, err), false
	}
	if !info.Mode().IsRegular() || info.Size() != rec.Size || !info.ModTime().Equal(rec.ModTime) {
		return ErrChangedSinceScan.Error(), false
	}
	return "", true
}

// sameVolume compares the device IDs of both paths. A stat failure is an
// error of its own, never reported as a device mismatch.
func (r *Resolver) sameVolume(a, b string) (bool, error) {
	da, err := r.deviceID(a)
	if err != nil {
		return false, fmt.Errorf("device of %s: %w", a, err)
	}
	db, err := r.deviceID(b)
	if err != nil {
		return false, fmt.Errorf("device of %s: %w", b, err)
	}
	return da == db, nil
}

// linkReplace swaps dup for a hard link to keeper without a window where
// the path is missing: link to a temporary name in the same directory, then
// rename over the duplicate.
func linkReplace(keeper, dup string) error {
	tmp := fmt.Sprintf("%s.cleanigo-%d.tmp", dup, os.Getpid())
	if err := os.Link(keeper, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dup); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
