package core

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatSize formats a byte count as a human-readable string using binary
// units ("4.0 KiB", "1.2 GiB").
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// ParseSize parses a human-readable size string ("100MB", "4 KiB", "2g")
// into a byte count. Both SI and binary unit suffixes are accepted.
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}
