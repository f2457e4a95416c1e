package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFileType is returned when an entry has no header
	// representation (sockets, for example). It aborts the build.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrMalformedHeader marks a numeric header field that could not be
	// parsed. Decoding substitutes zero and carries on.
	ErrMalformedHeader = errors.New("malformed header field")

	// ErrNameTooLong is returned when a path cannot be split across the
	// prefix and name fields, or a link target, user name or group name
	// does not fit its field.
	ErrNameTooLong = errors.New("name too long for ustar header")

	// ErrFieldOverflow is returned when a numeric value does not fit its
	// octal field.
	ErrFieldOverflow = errors.New("value overflows header field")

	// ErrPrivilege marks a device node or FIFO that could not be created,
	// usually for lack of privilege. Extraction continues.
	ErrPrivilege = errors.New("insufficient privilege to create node")

	// ErrUnknownTypeFlag marks a header with a type flag outside 0..6.
	// Extraction skips the entry and continues.
	ErrUnknownTypeFlag = errors.New("unknown type flag")

	// ErrDirectoryExists is returned when a directory entry collides with an
	// existing path and the overwrite policy is OverwriteFail.
	ErrDirectoryExists = errors.New("directory already exists")

	// ErrUnsafePath marks an entry or hard-link name that is absolute,
	// leaves the destination, or lies below a symlink inside it. Extraction
	// skips the entry and continues.
	ErrUnsafePath = errors.New("unsafe path in archive")

	// ErrUnsupportedArchive is returned for archive paths whose suffix does
	// not name a known archive format.
	ErrUnsupportedArchive = errors.New("unsupported archive type")
)

// Warning is a recoverable per-entry anomaly recorded during extraction
type Warning struct {
	Path string // Archive path of the affected entry
	Err  error  // Cause, wrapping ErrPrivilege, ErrUnknownTypeFlag or ErrUnsafePath
}

// Error implements error so a Warning can be passed around as one
func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

// Unwrap exposes the underlying cause to errors.Is
func (w Warning) Unwrap() error {
	return w.Err
}
