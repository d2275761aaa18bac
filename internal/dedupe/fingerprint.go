package dedupe

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// hashChunkSize is the read granularity for full-content digests. Memory
// use is bounded by this regardless of file size, and cancellation and
// timeouts are observed between chunks.
const hashChunkSize = 64 * 1024

// digestCacheSize bounds the in-process full-digest cache. The cache lets a
// rescan within the same process (e.g. after resolving from the TUI) avoid
// re-hashing unchanged files; nothing is persisted across runs.
const digestCacheSize = 4096

// errFileTimeout marks a per-file hashing deadline hit. The file is
// skipped, never fatal to siblings.
var errFileTimeout = errors.New("file read timed out")

type cacheKey struct {
	path  string
	size  int64
	mtime int64
}

// digestGroup is a set of same-size records sharing a full-content digest.
// Groups of ≥2 members become DuplicateSets.
type digestGroup struct {
	size   int64
	digest string
	files  []FileRecord
}

type fingerprinter struct {
	opts  Options
	cache *lru.Cache[cacheKey, string]

	mu    sync.Mutex
	skips []Skip
}

func newFingerprinter(opts Options) *fingerprinter {
	cache, _ := lru.New[cacheKey, string](digestCacheSize)
	return &fingerprinter{opts: opts, cache: cache}
}

func (f *fingerprinter) skip(path string, stage Stage, err error) {
	f.mu.Lock()
	f.skips = append(f.skips, Skip{Path: path, Stage: stage, Err: err})
	f.mu.Unlock()
}

// run fingerprints every size group and returns the surviving full-digest
// groups. Partial digests eliminate; only size plus full digest confirms.
func (f *fingerprinter) run(ctx context.Context, groups []SizeGroup, progress chan<- Event) ([]digestGroup, error) {
	candidates, err := f.partialStage(ctx, groups, progress)
	if err != nil {
		return nil, err
	}
	return f.fullStage(ctx, candidates, progress)
}

// partialStage computes partial digests for every member of every size
// group, regroups by (size, partial digest), and drops singletons: those
// are proven non-duplicates without a full read.
func (f *fingerprinter) partialStage(ctx context.Context, groups []SizeGroup, progress chan<- Event) ([]SizeGroup, error) {
	total := 0
	for _, g := range groups {
		total += len(g.Files)
	}

	// Each worker writes only its own slot; no slice locking needed. The
	// empty string marks a file that failed and must drop out.
	partials := make([][]string, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(f.opts.Workers)
	done := 0
	var doneMu sync.Mutex

	for gi := range groups {
		partials[gi] = make([]string, len(groups[gi].Files))
		for fi := range groups[gi].Files {
			gi, fi := gi, fi
			eg.Go(func() error {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				rec := groups[gi].Files[fi]
				digest, err := f.partialDigest(egCtx, rec)
				if err != nil {
					f.skip(rec.Path, StagePartialHash, err)
				} else {
					partials[gi][fi] = digest
				}
				doneMu.Lock()
				done++
				d := done
				doneMu.Unlock()
				publish(progress, Event{Stage: StagePartialHash, Path: rec.Path, Done: d, Total: total})
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Regroup survivors by partial digest within each size group. Members
	// keep their stable path order.
	var out []SizeGroup
	for gi, g := range groups {
		byPartial := make(map[string][]FileRecord)
		for fi, rec := range g.Files {
			if p := partials[gi][fi]; p != "" {
				byPartial[p] = append(byPartial[p], rec)
			}
		}
		for _, files := range byPartial {
			if len(files) >= 2 {
				out = append(out, SizeGroup{Size: g.Size, Files: files})
			}
		}
	}
	return out, nil
}

// fullStage streams full-content digests for partial-digest survivors and
// groups confirmed duplicates.
func (f *fingerprinter) fullStage(ctx context.Context, groups []SizeGroup, progress chan<- Event) ([]digestGroup, error) {
	total := 0
	for _, g := range groups {
		total += len(g.Files)
	}

	fulls := make([][]string, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(f.opts.Workers)
	done := 0
	var doneMu sync.Mutex

	for gi := range groups {
		fulls[gi] = make([]string, len(groups[gi].Files))
		for fi := range groups[gi].Files {
			gi, fi := gi, fi
			eg.Go(func() error {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				rec := groups[gi].Files[fi]
				digest, err := f.fullDigest(egCtx, rec)
				if err != nil {
					f.skip(rec.Path, StageFullHash, err)
				} else {
					fulls[gi][fi] = digest
				}
				doneMu.Lock()
				done++
				d := done
				doneMu.Unlock()
				publish(progress, Event{Stage: StageFullHash, Path: rec.Path, Done: d, Total: total})
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []digestGroup
	for gi, g := range groups {
		byDigest := make(map[string][]FileRecord)
		for fi, rec := range g.Files {
			if d := fulls[gi][fi]; d != "" {
				byDigest[d] = append(byDigest[d], rec)
			}
		}
		for digest, files := range byDigest {
			if len(files) < 2 {
				continue
			}
			if f.opts.ByteCompare {
				files = f.byteConfirm(ctx, files)
				if len(files) < 2 {
					continue
				}
			}
			out = append(out, digestGroup{size: g.Size, digest: digest, files: files})
		}
	}
	return out, nil
}

// partialDigest hashes a fixed-size prefix and, for files above the
// configured threshold, a fixed-size suffix. Cost is bounded regardless of
// file size. Strictly an elimination heuristic.
func (f *fingerprinter) partialDigest(ctx context.Context, rec FileRecord) (string, error) {
	ctx, cancel := f.fileContext(ctx)
	defer cancel()

	file, err := os.Open(rec.Path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h, err := f.opts.Hash.New()
	if err != nil {
		return "", err
	}
	if err := hashChunks(ctx, h, io.LimitReader(file, f.opts.PrefixBytes)); err != nil {
		return "", err
	}
	if f.opts.SuffixBytes > 0 && rec.Size > f.opts.SuffixThreshold && rec.Size > f.opts.SuffixBytes {
		if _, err := file.Seek(rec.Size-f.opts.SuffixBytes, io.SeekStart); err != nil {
			return "", err
		}
		if err := hashChunks(ctx, h, io.LimitReader(file, f.opts.SuffixBytes)); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// fullDigest streams the entire file through the hash in fixed-size chunks.
func (f *fingerprinter) fullDigest(ctx context.Context, rec FileRecord) (string, error) {
	key := cacheKey{path: rec.Path, size: rec.Size, mtime: rec.ModTime.UnixNano()}
	if digest, ok := f.cache.Get(key); ok {
		return digest, nil
	}

	ctx, cancel := f.fileContext(ctx)
	defer cancel()

	file, err := os.Open(rec.Path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h, err := f.opts.Hash.New()
	if err != nil {
		return "", err
	}
	if err := hashChunks(ctx, h, file); err != nil {
		return "", err
	}
	digest := hex.EncodeToString(h.Sum(nil))
	f.cache.Add(key, digest)
	return digest, nil
}

func (f *fingerprinter) fileContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.opts.FileTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.opts.FileTimeout)
}

// hashChunks copies r into w in hashChunkSize chunks, observing ctx between
// chunks so a stalled read surfaces as a timeout instead of hanging the run.
func hashChunks(ctx context.Context, w io.Writer, r io.Reader) error {
	buf := make([]byte, hashChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return errFileTimeout
			}
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// byteConfirm keeps only members byte-identical to the group's first
// member. A member that differs despite the matching digest is recorded as
// a skipped file; a collision is noteworthy, not silent.
func (f *fingerprinter) byteConfirm(ctx context.Context, files []FileRecord) []FileRecord {
	ref := files[0]
	out := files[:1]
	for _, rec := range files[1:] {
		same, err := sameContent(ctx, ref.Path, rec.Path)
		switch {
		case err != nil:
			f.skip(rec.Path, StageFullHash, err)
		case !same:
			f.skip(rec.Path, StageFullHash, fmt.Errorf("digest collision: content differs from %s", ref.Path))
		default:
			out = append(out, rec)
		}
	}
	return out
}

func sameContent(ctx context.Context, a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	bufA := make([]byte, hashChunkSize)
	bufB := make([]byte, hashChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA == io.EOF || errA == io.ErrUnexpectedEOF {
			return errB == io.EOF || errB == io.ErrUnexpectedEOF, nil
		}
		if errA != nil {
			return false, errA
		}
		if errB != nil {
			return false, errB
		}
	}
}
