// Package tempclean finds and removes stale temporary files from the
// platform's temp directories. Removal goes through the recoverable trash,
// never a direct permanent delete.
package tempclean

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cleanigo/cleanigo/internal/walk"
)

// Item is one stale temp file candidate.
type Item struct {
	Path    string
	Size    int64
	ModTime time.Time
	Source  string // the temp dir it was found under
}

// junkPatterns are file names that are junk at any age.
var junkPatterns = []string{"*.tmp", "*.temp", "~$*", ".DS_Store", "Thumbs.db"}

// TempDirs returns the platform's temp directory candidates, deduplicated
// and limited to directories that exist.
func TempDirs() []string {
	candidates := []string{os.TempDir()}
	switch runtime.GOOS {
	case "windows":
		candidates = append(candidates,
			os.Getenv("TEMP"),
			os.Getenv("TMP"),
			filepath.Join(os.Getenv("WINDIR"), "Temp"),
		)
	case "darwin":
		home, _ := os.UserHomeDir()
		candidates = append(candidates, "/tmp", "/var/tmp", filepath.Join(home, "Library", "Caches"))
	default:
		candidates = append(candidates, "/tmp", "/var/tmp", "/var/cache")
	}

	// %TEMP% frequently resolves to the same directory as os.TempDir().
	seen := make(map[string]bool)
	var dirs []string
	for _, d := range candidates {
		if d == "" {
			continue
		}
		cleaned := filepath.Clean(d)
		key := cleaned
		if runtime.GOOS == "windows" {
			key = strings.ToLower(cleaned)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if info, err := os.Stat(cleaned); err == nil && info.IsDir() {
			dirs = append(dirs, cleaned)
		}
	}
	return dirs
}

// Scan collects files under dirs that are older than olderThan, plus junk
// files of any age. Unreadable entries become warnings, never failures.
func Scan(ctx context.Context, dirs []string, olderThan time.Duration) (items []Item, total int64, warnings []string) {
	cutoff := time.Now().Add(-olderThan)
	for _, dir := range dirs {
		w := walk.New(walk.Options{IncludeHidden: true})
		entries, err := w.Walk(ctx, dir)
		if err != nil {
			warnings = append(warnings, dir+": "+err.Error())
			continue
		}
		for e := range entries {
			if !e.ModTime.Before(cutoff) && !isJunk(filepath.Base(e.Path)) {
				continue
			}
			items = append(items, Item{Path: e.Path, Size: e.Size, ModTime: e.ModTime, Source: dir})
			total += e.Size
		}
		warnings = append(warnings, w.Warnings()...)
	}
	return items, total, warnings
}

func isJunk(name string) bool {
	for _, pat := range junkPatterns {
		if ok, err := filepath.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Mover is the deletion primitive used by Clean; satisfied by the trash.
type Mover interface {
	Trash(path string) error
}

// Result summarizes a cleaning pass.
type Result struct {
	Freed    int64
	Cleaned  int
	Failed   int
	Failures []string
}

// Clean sends every item to the trash, continuing past individual
// failures. In dry-run mode it reports what would be freed without moving
// anything.
func Clean(ctx context.Context, items []Item, mover Mover, dryRun bool) *Result {
	res := &Result{}
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if dryRun {
			res.Freed += item.Size
			res.Cleaned++
			continue
		}
		if err := mover.Trash(item.Path); err != nil {
			res.Failed++
			res.Failures = append(res.Failures, item.Path+": "+err.Error())
			continue
		}
		res.Freed += item.Size
		res.Cleaned++
	}
	return res
}
