package core

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// makeDevice creates a character or block device node
func makeDevice(path string, flag TypeFlag, perm, major, minor uint32) error {
	kind := uint32(unix.S_IFCHR)
	if flag == TypeBlock {
		kind = unix.S_IFBLK
	}
	dev := unix.Mkdev(major, minor)
	if err := unix.Mknod(path, kind|perm, int(dev)); err != nil {
		return &os.PathError{Op: "mknod", Path: path, Err: err}
	}
	return os.Chmod(path, os.FileMode(perm))
}

// makeFifo creates a named pipe
func makeFifo(path string, perm uint32) error {
	if err := unix.Mkfifo(path, perm); err != nil {
		return &os.PathError{Op: "mkfifo", Path: path, Err: err}
	}
	return os.Chmod(path, os.FileMode(perm))
}

// isPrivilegeError reports whether err means the caller lacks the
// privilege for an operation
func isPrivilegeError(err error) bool {
	return errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES)
}
