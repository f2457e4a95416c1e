package core

import (
	"golang.org/x/sys/unix"
)

// Metadata is the subset of lstat(2) output the header codec needs
type Metadata struct {
	Mode       uint32 // Raw st_mode, file type bits included
	UID        uint32
	GID        uint32
	Size       int64
	ModTime    int64  // Seconds since the epoch
	Dev        uint64 // Device holding the inode
	Ino        uint64
	Rdev       uint64 // Device number for character and block nodes
	LinkTarget string // Symlink target, empty otherwise
}

func (m Metadata) IsDir() bool     { return m.Mode&unix.S_IFMT == unix.S_IFDIR }
func (m Metadata) IsRegular() bool { return m.Mode&unix.S_IFMT == unix.S_IFREG }
func (m Metadata) IsSymlink() bool { return m.Mode&unix.S_IFMT == unix.S_IFLNK }
