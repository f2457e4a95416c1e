package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Byte offset of the checksum field within a header record
const (
	checksumOffset = 148
	checksumSize   = 8
)

// Header is one 512-byte USTAR header record. Every field is a fixed-width
// byte array laid out in wire order; see fields.
type Header struct {
	name        [nameSize]byte
	mode        [8]byte
	uid         [8]byte
	gid         [8]byte
	size        [12]byte
	mtime       [12]byte
	checksum    [checksumSize]byte
	typeFlag    [1]byte
	linkName    [linkNameSize]byte
	magic       [6]byte
	version     [2]byte
	userName    [accountSize]byte
	groupName   [accountSize]byte
	deviceMajor [8]byte
	deviceMinor [8]byte
	prefix      [prefixSize]byte
	padding     [12]byte
}

// fields returns the header fields in wire order. Their lengths sum to
// BlockSize.
func (h *Header) fields() [][]byte {
	return [][]byte{
		h.name[:], h.mode[:], h.uid[:], h.gid[:], h.size[:], h.mtime[:],
		h.checksum[:], h.typeFlag[:], h.linkName[:], h.magic[:], h.version[:],
		h.userName[:], h.groupName[:], h.deviceMajor[:], h.deviceMinor[:],
		h.prefix[:], h.padding[:],
	}
}

// Bytes returns the 512-byte wire form of the header
func (h *Header) Bytes() []byte {
	out := make([]byte, 0, BlockSize)
	for _, f := range h.fields() {
		out = append(out, f...)
	}
	return out
}

// DecodeHeader deserializes a header record. Numeric fields are not
// validated here; the accessors fall back to zero on malformed input.
func DecodeHeader(b []byte) (*Header, error) {
	if len(b) != BlockSize {
		return nil, fmt.Errorf("decode header: got %d bytes, want %d", len(b), BlockSize)
	}
	h := &Header{}
	for _, f := range h.fields() {
		n := copy(f, b)
		b = b[n:]
	}
	return h, nil
}

// EncodeHeader builds the header for one filesystem entry. name is the
// archive-relative path, md its lstat metadata. inodes may be nil, in which
// case no hard links are detected. accounts may be nil.
func EncodeHeader(name string, md Metadata, inodes *InodeMap, accounts AccountResolver) (*Header, error) {
	h := &Header{}

	if md.IsDir() && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	if err := h.setName(name); err != nil {
		return nil, err
	}

	if first, ok := inodes.Lookup(md); ok {
		h.typeFlag[0] = byte(TypeLink)
		if err := setString(h.linkName[:], first); err != nil {
			return nil, fmt.Errorf("link name for %s: %w", name, err)
		}
	} else {
		switch md.Mode & unix.S_IFMT {
		case unix.S_IFREG:
			h.typeFlag[0] = byte(TypeRegular)
		case unix.S_IFLNK:
			h.typeFlag[0] = byte(TypeSymlink)
			if err := setString(h.linkName[:], md.LinkTarget); err != nil {
				return nil, fmt.Errorf("link target for %s: %w", name, err)
			}
		case unix.S_IFCHR, unix.S_IFBLK:
			h.typeFlag[0] = byte(TypeChar)
			if md.Mode&unix.S_IFMT == unix.S_IFBLK {
				h.typeFlag[0] = byte(TypeBlock)
			}
			if err := formatOctal(h.deviceMajor[:], int64(unix.Major(md.Rdev))); err != nil {
				return nil, fmt.Errorf("device major for %s: %w", name, err)
			}
			if err := formatOctal(h.deviceMinor[:], int64(unix.Minor(md.Rdev))); err != nil {
				return nil, fmt.Errorf("device minor for %s: %w", name, err)
			}
		case unix.S_IFDIR:
			h.typeFlag[0] = byte(TypeDir)
		case unix.S_IFIFO:
			h.typeFlag[0] = byte(TypeFifo)
		default:
			return nil, fmt.Errorf("encode %s: %w (mode %#o)", name, ErrUnsupportedFileType, md.Mode&unix.S_IFMT)
		}
	}

	var size int64
	if flag := h.Typeflag(); flag == TypeRegular || flag == TypeDir {
		size = md.Size
	}
	numeric := []struct {
		field string
		dst   []byte
		val   int64
	}{
		{"mode", h.mode[:], int64(md.Mode & 0o777)},
		{"uid", h.uid[:], int64(md.UID)},
		{"gid", h.gid[:], int64(md.GID)},
		{"size", h.size[:], size},
		{"mtime", h.mtime[:], md.ModTime},
	}
	for _, n := range numeric {
		if err := formatOctal(n.dst, n.val); err != nil {
			return nil, fmt.Errorf("%s for %s: %w", n.field, name, err)
		}
	}

	if accounts != nil {
		uname, gname := accounts.LookupNames(md.UID, md.GID)
		if err := setString(h.userName[:], uname); err != nil {
			return nil, fmt.Errorf("user name for %s: %w", name, err)
		}
		if err := setString(h.groupName[:], gname); err != nil {
			return nil, fmt.Errorf("group name for %s: %w", name, err)
		}
	}

	copy(h.magic[:], Magic)
	copy(h.version[:], Version)

	h.updateChecksum()
	return h, nil
}

// setName stores name, splitting it across prefix and name when it does not
// fit the name field alone.
func (h *Header) setName(name string) error {
	prefix, base, err := splitName(name)
	if err != nil {
		return err
	}
	copy(h.prefix[:], prefix)
	copy(h.name[:], base)
	return nil
}

// splitName splits a long path at a slash so that the leading part fits the
// prefix field and the rest fits the name field. A directory's trailing
// slash is never used as the split point.
func splitName(name string) (prefix, base string, err error) {
	if len(name) <= nameSize {
		return "", name, nil
	}
	lo := len(name) - nameSize - 1
	if lo < 1 {
		lo = 1
	}
	hi := min(prefixSize, len(name)-2)
	for i := lo; i <= hi; i++ {
		if name[i] == '/' {
			return name[:i], name[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("%q (%d bytes): %w", name, len(name), ErrNameTooLong)
}

// setString copies s into a NUL-padded field, failing if it does not fit
func setString(dst []byte, s string) error {
	if len(s) > len(dst) {
		return fmt.Errorf("%q (%d bytes): %w", s, len(s), ErrNameTooLong)
	}
	copy(dst, s)
	return nil
}

// formatOctal writes v as zero-padded octal digits followed by a NUL,
// filling the whole field
func formatOctal(dst []byte, v int64) error {
	width := len(dst) - 1
	s := fmt.Sprintf("%0*o", width, v)
	if v < 0 || len(s) > width {
		return fmt.Errorf("%d in %d-byte field: %w", v, len(dst), ErrFieldOverflow)
	}
	copy(dst, s)
	dst[width] = 0
	return nil
}

// updateChecksum computes the checksum over the finished record and stores
// it as six octal digits, a NUL and a space
func (h *Header) updateChecksum() {
	sum := h.ComputeChecksum()
	copy(h.checksum[:], fmt.Sprintf("%06o\x00 ", sum))
}

// ComputeChecksum sums all 512 unsigned bytes of the record, counting the
// checksum field itself as eight spaces
func (h *Header) ComputeChecksum() int64 {
	var sum int64
	for i, c := range h.Bytes() {
		if i >= checksumOffset && i < checksumOffset+checksumSize {
			c = ' '
		}
		sum += int64(c)
	}
	return sum
}

// StoredChecksum parses the checksum field. Decoding never checks it.
func (h *Header) StoredChecksum() (int64, error) {
	return parseOctal(h.checksum[:])
}

// cString returns the bytes up to the first NUL as a string
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// parseOctal parses a NUL- or space-terminated octal field. An empty field
// is zero.
func parseOctal(b []byte) (int64, error) {
	s := cString(bytes.Trim(b, " \x00"))
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedHeader, s)
	}
	return v, nil
}

// octalOrZero parses a numeric field, returning zero when it is malformed
func octalOrZero(b []byte) int64 {
	v, _ := parseOctal(b)
	return v
}

// FileName returns prefix + "/" + name, or name alone when prefix is empty
func (h *Header) FileName() string {
	name := cString(h.name[:])
	if prefix := cString(h.prefix[:]); prefix != "" {
		return prefix + "/" + name
	}
	return name
}

// Typeflag returns the entry type
func (h *Header) Typeflag() TypeFlag {
	return TypeFlag(h.typeFlag[0])
}

// LinkName returns the link target of a hard or symbolic link
func (h *Header) LinkName() string {
	return cString(h.linkName[:])
}

// ParseSize parses the size field
func (h *Header) ParseSize() (int64, error) {
	return parseOctal(h.size[:])
}

// FileSize returns the content size, or zero if the field is malformed
func (h *Header) FileSize() int64 {
	return octalOrZero(h.size[:])
}

// ParseMode parses the mode field into permission bits
func (h *Header) ParseMode() (uint32, error) {
	v, err := parseOctal(h.mode[:])
	return uint32(v) & 0o777, err
}

// Mode returns the permission bits, or zero if the field is malformed
func (h *Header) Mode() uint32 {
	m, _ := h.ParseMode()
	return m
}

func (h *Header) UID() int { return int(octalOrZero(h.uid[:])) }
func (h *Header) GID() int { return int(octalOrZero(h.gid[:])) }

func (h *Header) UserName() string  { return cString(h.userName[:]) }
func (h *Header) GroupName() string { return cString(h.groupName[:]) }

// ModTime returns the modification time with second precision
func (h *Header) ModTime() time.Time {
	return time.Unix(octalOrZero(h.mtime[:]), 0)
}

func (h *Header) DevMajor() uint32 { return uint32(octalOrZero(h.deviceMajor[:])) }
func (h *Header) DevMinor() uint32 { return uint32(octalOrZero(h.deviceMinor[:])) }

// IsUSTAR reports whether the magic and version fields carry the USTAR
// literals
func (h *Header) IsUSTAR() bool {
	return string(h.magic[:]) == Magic && string(h.version[:]) == Version
}
