package core

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lstat reads the metadata of path without following a final symlink
func Lstat(path string) (Metadata, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Metadata{}, &os.PathError{Op: "lstat", Path: path, Err: err}
	}
	md := Metadata{
		Mode:    uint32(st.Mode),
		UID:     st.Uid,
		GID:     st.Gid,
		Size:    st.Size,
		ModTime: int64(st.Mtim.Sec),
		Dev:     uint64(st.Dev),
		Ino:     uint64(st.Ino),
		Rdev:    uint64(st.Rdev),
	}
	if md.IsSymlink() {
		target, err := os.Readlink(path)
		if err != nil {
			return Metadata{}, fmt.Errorf("read link %s: %w", path, err)
		}
		md.LinkTarget = target
	}
	return md, nil
}
