//go:build windows

package config

import (
	"os"

	"golang.org/x/sys/windows"
)

// lockExclusive blocks until the first byte of f is locked with LockFileEx.
func lockExclusive(f *os.File) (unlock func(), err error) {
	h := windows.Handle(f.Fd())
	ol := new(windows.Overlapped)
	if err := windows.LockFileEx(h, windows.LOCKFILE_EXCLUSIVE_LOCK, 0, 1, 0, ol); err != nil {
		return nil, err
	}
	return func() { _ = windows.UnlockFileEx(h, 0, 1, 0, ol) }, nil
}
