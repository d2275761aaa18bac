//go:build windows

package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

// DeviceID returns an identifier for the volume holding path. On Windows the
// drive letter is the volume boundary for hard links.
func DeviceID(path string) (uint64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	vol := strings.ToUpper(filepath.VolumeName(abs))
	if vol == "" {
		return 0, os.ErrInvalid
	}
	var id uint64
	for _, c := range vol {
		id = id*131 + uint64(c)
	}
	return id, nil
}

// InodeID approximates a (device, inode) pair using the volume and file
// index reported by GetFileInformationByHandle.
func InodeID(path string) (dev, ino uint64, err error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, err
	}
	h, err := windows.CreateFile(p, windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return 0, 0, err
	}
	defer windows.CloseHandle(h)

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &info); err != nil {
		return 0, 0, err
	}
	return uint64(info.VolumeSerialNumber),
		uint64(info.FileIndexHigh)<<32 | uint64(info.FileIndexLow), nil
}

// IsCrossDevice reports whether err means the operation crossed volumes.
func IsCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}
