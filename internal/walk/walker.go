// Package walk streams file entries under a root directory for the analysis
// pipelines. It never follows symlinks and isolates per-entry errors as
// warnings so one unreadable directory cannot abort a scan.
package walk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cleanigo/cleanigo/internal/core"
)

// Entry is one regular file discovered during a walk: a snapshot of its
// metadata at scan time.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Options controls what a Walker visits.
type Options struct {
	// Exclude holds doublestar glob patterns matched against the path
	// relative to the walk root (e.g. "node_modules/**", "*.iso").
	Exclude []string

	// IncludeHidden visits dot-files and dot-directories. Default false.
	IncludeHidden bool

	// SameDevice restricts the walk to the filesystem holding the root,
	// skipping mount points underneath it.
	SameDevice bool

	// Concurrency bounds parallel directory reads. Defaults to 8.
	Concurrency int
}

// Walker performs a parallel recursive walk, emitting regular files over a
// channel. A Walker is good for one Walk call.
type Walker struct {
	opts    Options
	sem     chan struct{}
	visited mapset.Set[string] // "dev:ino" of visited directories, cycle guard

	mu       sync.Mutex
	warnings []string
	seen     atomic.Int64
}

const maxWarnings = 500

// New creates a Walker with the given options.
func New(opts Options) *Walker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Walker{
		opts:    opts,
		sem:     make(chan struct{}, opts.Concurrency),
		visited: mapset.NewSet[string](),
	}
}

// Warnings returns warnings accumulated so far. Complete once the entry
// channel has closed.
func (w *Walker) Warnings() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.warnings...)
}

// Seen returns the number of directory entries examined so far.
func (w *Walker) Seen() int64 {
	return w.seen.Load()
}

func (w *Walker) warn(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.warnings) < maxWarnings {
		w.warnings = append(w.warnings, fmt.Sprintf(format, args...))
	}
}

// Walk starts walking root and returns a channel of file entries. The
// channel is closed when the walk finishes or ctx is cancelled. Symlinks are
// never followed; excluded and hidden entries are skipped silently.
func (w *Walker) Walk(ctx context.Context, root string) (<-chan Entry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("walk root %s: not a directory", root)
	}

	var rootDev uint64
	if w.opts.SameDevice {
		if rootDev, err = core.DeviceID(root); err != nil {
			return nil, fmt.Errorf("walk root %s: %w", root, err)
		}
	}

	out := make(chan Entry, 256)
	go func() {
		defer close(out)
		var wg sync.WaitGroup
		wg.Add(1)
		w.walkDir(ctx, &wg, root, root, rootDev, out)
		wg.Done()
		// walkDir adds to wg for each subdirectory goroutine it spawns.
		wg.Wait()
	}()
	return out, nil
}

func (w *Walker) walkDir(ctx context.Context, wg *sync.WaitGroup, root, dir string, rootDev uint64, out chan<- Entry) {
	if ctx.Err() != nil {
		return
	}

	if dev, ino, err := core.InodeID(dir); err == nil {
		key := fmt.Sprintf("%d:%d", dev, ino)
		if !w.visited.Add(key) {
			w.warn("skipping already-visited directory: %s", dir)
			return
		}
	}

	// Hold the semaphore only during the ReadDir I/O so nested goroutines
	// cannot deadlock on it.
	w.sem <- struct{}{}
	entries, err := os.ReadDir(dir)
	<-w.sem
	if err != nil {
		w.warn("cannot read %s: %v", dir, err)
		return
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		w.seen.Add(1)
		name := e.Name()
		path := filepath.Join(dir, name)

		if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if w.excluded(root, path) {
			continue
		}
		// Never traverse symlinks, in either direction.
		if e.Type()&os.ModeSymlink != 0 {
			continue
		}

		if e.IsDir() {
			if w.opts.SameDevice {
				if dev, err := core.DeviceID(path); err != nil || dev != rootDev {
					if err == nil {
						w.warn("skipping mount point: %s", path)
					}
					continue
				}
			}
			wg.Add(1)
			go func(sub string) {
				defer wg.Done()
				w.walkDir(ctx, wg, root, sub, rootDev, out)
			}(path)
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			// Permission denied or vanished between readdir and stat.
			w.warn("cannot stat %s: %v", path, err)
			continue
		}
		select {
		case out <- Entry{Path: path, Size: info.Size(), ModTime: info.ModTime()}:
		case <-ctx.Done():
			return
		}
	}
}

// excluded reports whether path matches any exclusion pattern.
func (w *Walker) excluded(root, path string) bool {
	if len(w.opts.Exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pat := range w.opts.Exclude {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}
