package dedupe

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"runtime"
	"time"
)

// HashAlgorithm selects the digest function used for partial and full
// fingerprints. Collisions are accepted as a deliberate trade-off; enable
// Options.ByteCompare to add an exact byte-for-byte confirmation.
type HashAlgorithm string

const (
	HashSHA256 HashAlgorithm = "sha256"
	HashSHA1   HashAlgorithm = "sha1"
	HashMD5    HashAlgorithm = "md5"
)

// New returns a fresh hash.Hash for the algorithm.
func (a HashAlgorithm) New() (hash.Hash, error) {
	switch a {
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA1:
		return sha1.New(), nil
	case HashMD5:
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", string(a))
	}
}

// KeeperStrategy selects which member of a duplicate set survives
// resolution. Every strategy is deterministic so repeated runs over an
// unchanged tree pick identical keepers.
type KeeperStrategy string

const (
	// KeepOldest keeps the earliest-modified file, tie-broken by shortest
	// path length, then lexicographic path order. The default.
	KeepOldest KeeperStrategy = "oldest"
	// KeepNewest keeps the latest-modified file, same tie-breaks.
	KeepNewest KeeperStrategy = "newest"
	// KeepShortestPath keeps the file with the shortest path, tie-broken
	// lexicographically.
	KeepShortestPath KeeperStrategy = "shortest_path"
	// KeepFirstFound keeps the first member in the set's stable
	// (lexicographic) order.
	KeepFirstFound KeeperStrategy = "first_found"
)

func (k KeeperStrategy) valid() bool {
	switch k {
	case KeepOldest, KeepNewest, KeepShortestPath, KeepFirstFound:
		return true
	}
	return false
}

// Options configures a detection/resolution run. The zero value is not
// usable; start from DefaultOptions.
type Options struct {
	// PrefixBytes is the size of the file prefix hashed for the partial
	// digest.
	PrefixBytes int64
	// SuffixBytes is the size of the file suffix added to the partial
	// digest for files larger than SuffixThreshold, to catch files that
	// differ only near the end.
	SuffixBytes int64
	// SuffixThreshold is the file size above which the suffix is hashed.
	SuffixThreshold int64

	Hash   HashAlgorithm
	Keeper KeeperStrategy

	// SkipZeroByte drops zero-byte files before grouping. They are
	// trivially identical but reclaim nothing.
	SkipZeroByte bool
	// MinFileSize drops files smaller than this before grouping. 0 keeps
	// everything.
	MinFileSize int64

	// Workers bounds concurrent fingerprint computation.
	Workers int
	// FileTimeout caps the time spent hashing a single file so a hung
	// network mount cannot stall the run. A timed-out file is skipped,
	// not fatal.
	FileTimeout time.Duration

	// ByteCompare adds an exact byte-for-byte comparison before a file is
	// admitted to a duplicate set, guarding against digest collisions at
	// the cost of a second full read.
	ByteCompare bool

	// DryRun computes sets and intended actions without any filesystem
	// mutation. The summary is identical to a real run.
	DryRun bool
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	return Options{
		PrefixBytes:     4096,
		SuffixBytes:     4096,
		SuffixThreshold: 1 << 20, // 1 MiB
		Hash:            HashSHA256,
		Keeper:          KeepOldest,
		SkipZeroByte:    true,
		Workers:         workers,
		FileTimeout:     30 * time.Second,
	}
}

// Validate rejects malformed configuration. Validation failures are fatal
// to the whole run and happen before any filesystem mutation.
func (o Options) Validate() error {
	if o.PrefixBytes <= 0 {
		return fmt.Errorf("prefix bytes must be positive, got %d", o.PrefixBytes)
	}
	if o.SuffixBytes < 0 {
		return fmt.Errorf("suffix bytes must not be negative, got %d", o.SuffixBytes)
	}
	if o.SuffixThreshold < 0 {
		return fmt.Errorf("suffix threshold must not be negative, got %d", o.SuffixThreshold)
	}
	if o.MinFileSize < 0 {
		return fmt.Errorf("min file size must not be negative, got %d", o.MinFileSize)
	}
	if o.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", o.Workers)
	}
	if o.FileTimeout < 0 {
		return fmt.Errorf("file timeout must not be negative, got %s", o.FileTimeout)
	}
	if _, err := o.Hash.New(); err != nil {
		return err
	}
	if !o.Keeper.valid() {
		return fmt.Errorf("unknown keeper strategy %q", string(o.Keeper))
	}
	return nil
}
