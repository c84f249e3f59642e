//go:build unix

package lockfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFileMode is rw for the owner, read for group and other.
const lockFileMode = unix.S_IRUSR | unix.S_IWUSR | unix.S_IRGRP | unix.S_IROTH

// createExclusive atomically creates path, failing with an os.IsExist error
// when it is already present.
func createExclusive(path string) (*os.File, error) {
	for {
		fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_WRONLY|unix.O_CLOEXEC, lockFileMode)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: path, Err: err}
		}
		return os.NewFile(uintptr(fd), path), nil
	}
}
