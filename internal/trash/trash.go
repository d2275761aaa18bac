// Package trash implements the recoverable holding area used instead of
// permanent deletion. Trashed files keep a JSON sidecar with their original
// path so they can be restored, and the trash directory is flock-guarded so
// two instances cannot interleave moves.
package trash

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/cleanigo/cleanigo/internal/core"
)

// ErrLocked means another instance holds the trash lock.
var ErrLocked = errors.New("trash is in use by another instance")

// Entry describes one trashed file.
type Entry struct {
	ID           string    `json:"id"`
	OriginalPath string    `json:"original_path"`
	Size         int64     `json:"size"`
	TrashedAt    time.Time `json:"trashed_at"`
}

// Trash is a directory-backed recoverable deletion target. Layout:
//
//	<dir>/files/<id>      the trashed content
//	<dir>/info/<id>.json  sidecar with the original path
type Trash struct {
	dir  string
	lock *flock.Flock

	// remove is swappable so tests can simulate undeletable entries.
	remove func(string) error
}

// DefaultDir returns the per-user trash location.
func DefaultDir() (string, error) {
	if runtime.GOOS == "windows" {
		if d := os.Getenv("LOCALAPPDATA"); d != "" {
			return filepath.Join(d, "cleanigo", "trash"), nil
		}
	}
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return filepath.Join(d, "cleanigo", "trash"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "cleanigo", "trash"), nil
}

// Open prepares the trash directory and acquires its lock.
func Open(dir string) (*Trash, error) {
	for _, sub := range []string{"files", "info"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, err
		}
	}
	lock := flock.New(filepath.Join(dir, ".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Trash{dir: dir, lock: lock, remove: os.RemoveAll}, nil
}

// Close releases the trash lock.
func (t *Trash) Close() error {
	return t.lock.Unlock()
}

// Trash moves path into the holding area. A nil return confirms the move;
// any error means the file was not (fully) trashed.
func (t *Trash) Trash(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	entry := Entry{ID: id, OriginalPath: abs, Size: info.Size(), TrashedAt: time.Now().UTC()}

	// Sidecar first: if the move below succeeds the entry is already
	// recorded, so a crash in between never strands an unlisted file.
	if err := t.writeEntry(entry); err != nil {
		return err
	}
	dest := filepath.Join(t.dir, "files", id)
	if err := movePath(abs, dest, info); err != nil {
		os.Remove(t.entryPath(id))
		return err
	}
	return nil
}

// List returns all trashed entries, newest first.
func (t *Trash) List() ([]Entry, error) {
	names, err := os.ReadDir(filepath.Join(t.dir, "info"))
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, n := range names {
		if n.IsDir() || filepath.Ext(n.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(t.dir, "info", n.Name()))
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TrashedAt.After(entries[j].TrashedAt) })
	return entries, nil
}

// Restore moves an entry back to its original path. It refuses to
// overwrite a file that has appeared at that path in the meantime.
func (t *Trash) Restore(id string) error {
	entry, err := t.readEntry(id)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(entry.OriginalPath); err == nil {
		return fmt.Errorf("restore %s: %s already exists", id, entry.OriginalPath)
	}
	if err := os.MkdirAll(filepath.Dir(entry.OriginalPath), 0o755); err != nil {
		return err
	}
	src := filepath.Join(t.dir, "files", id)
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if err := movePath(src, entry.OriginalPath, info); err != nil {
		return err
	}
	return os.Remove(t.entryPath(id))
}

// Empty permanently removes entries older than olderThan (0 = everything).
// Returns the bytes freed and entries removed. An entry whose content
// cannot be removed keeps its sidecar, stays listed, and is reported in the
// joined error alongside the successes.
func (t *Trash) Empty(olderThan time.Duration) (freed int64, removed int, err error) {
	entries, err := t.List()
	if err != nil {
		return 0, 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	var failures []error
	for _, e := range entries {
		if olderThan > 0 && e.TrashedAt.After(cutoff) {
			continue
		}
		if rmErr := t.remove(filepath.Join(t.dir, "files", e.ID)); rmErr != nil {
			failures = append(failures, fmt.Errorf("empty %s (%s): %w", e.ID, e.OriginalPath, rmErr))
			continue
		}
		os.Remove(t.entryPath(e.ID))
		freed += e.Size
		removed++
	}
	return freed, removed, errors.Join(failures...)
}

func (t *Trash) entryPath(id string) string {
	return filepath.Join(t.dir, "info", id+".json")
}

func (t *Trash) writeEntry(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(t.entryPath(e.ID), data, 0o644)
}

func (t *Trash) readEntry(id string) (Entry, error) {
	var e Entry
	data, err := os.ReadFile(t.entryPath(id))
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(data, &e)
	return e, err
}

// movePath renames src to dest, falling back to copy+remove for regular
// files when the trash lives on a different filesystem.
func movePath(src, dest string, info os.FileInfo) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	if !core.IsCrossDevice(err) || !info.Mode().IsRegular() {
		return err
	}
	if err := copyFile(src, dest, info.Mode().Perm()); err != nil {
		os.Remove(dest)
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dest string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
