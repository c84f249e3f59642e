//go:build !unix

package lockfile

import "os"

const lockFileMode = 0o644

func createExclusive(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFileMode)
}
