// Package dedupe implements the duplicate-file detection and resolution
// engine: a staged pipeline that groups files by size, eliminates
// non-duplicates with cheap partial digests, confirms duplicates with full
// content digests, and resolves confirmed sets through a recoverable trash
// or hardlink-replace action.
package dedupe

import "time"

// FileRecord is an immutable snapshot of a file's metadata at scan time.
// The engine never assumes the underlying file is unchanged by the time it
// acts on the record; the Resolution Engine re-verifies before acting.
type FileRecord struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// SizeGroup is a set of records sharing an exact byte size. Groups with a
// single member are pruned before fingerprinting.
type SizeGroup struct {
	Size  int64
	Files []FileRecord
}

// DuplicateSet is a confirmed group of identical files: every member shares
// the same size and full-content digest. Keeper indexes the one member the
// Resolution Engine must never act on.
type DuplicateSet struct {
	Digest string
	Size   int64
	Files  []FileRecord
	Keeper int
}

// KeeperRecord returns the designated keeper.
func (s DuplicateSet) KeeperRecord() FileRecord {
	return s.Files[s.Keeper]
}

// Duplicates returns the non-keeper members, the candidates for resolution.
func (s DuplicateSet) Duplicates() []FileRecord {
	dups := make([]FileRecord, 0, len(s.Files)-1)
	for i, f := range s.Files {
		if i != s.Keeper {
			dups = append(dups, f)
		}
	}
	return dups
}

// WastedBytes is the space reclaimable by resolving every duplicate.
func (s DuplicateSet) WastedBytes() int64 {
	return int64(len(s.Files)-1) * s.Size
}

// Skip records a file dropped from consideration during scanning or
// fingerprinting. Skips never abort processing of sibling files.
type Skip struct {
	Path  string
	Stage Stage
	Err   error
}

// Status classifies the result of one resolution attempt.
type Status int

const (
	// StatusDone means the action was applied (or would be, under dry-run).
	StatusDone Status = iota
	// StatusSkipped means the action was deliberately not attempted.
	StatusSkipped
	// StatusFailed means the action was attempted and failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the per-file result of one resolution attempt.
type Outcome struct {
	Path   string
	Action Action
	Status Status
	Reason string
	Bytes  int64
}

// Summary aggregates the outcomes of a resolution run. Every skipped or
// failed file appears in Outcomes with its reason; silent skips are never
// acceptable for a destructive tool.
type Summary struct {
	Action         Action
	DryRun         bool
	BytesReclaimed int64
	Acted          int
	Skipped        int
	Failed         int
	Outcomes       []Outcome
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusDone:
		s.Acted++
		s.BytesReclaimed += o.Bytes
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}
