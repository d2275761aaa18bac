//go:build !windows

package core

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// DeviceID returns an identifier for the filesystem volume holding path.
// Two paths with equal device IDs can be hard-linked to each other.
func DeviceID(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Dev), nil
}

// InodeID returns the (device, inode) pair for path. Used to detect
// directory cycles and files already hard-linked together.
func InodeID(path string) (dev, ino uint64, err error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, 0, err
	}
	return uint64(st.Dev), uint64(st.Ino), nil
}

// IsCrossDevice reports whether err is the kernel's refusal to rename or
// link across filesystem boundaries (EXDEV).
func IsCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV) || errors.Is(err, syscall.EXDEV)
}
