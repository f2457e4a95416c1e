package core

import "time"

// Constants for archive format
const (
	Magic   = "ustar\x00" // Magic field of every header record
	Version = "00"        // Version field following the magic

	BlockSize  = 512           // Size of every record in the archive
	FooterSize = BlockSize * 2 // End-of-archive marker: two zero blocks
)

// Header field widths
const (
	nameSize     = 100
	prefixSize   = 155
	linkNameSize = 100
	accountSize  = 32
)

// TypeFlag identifies what kind of filesystem entity a header describes
type TypeFlag byte

const (
	TypeRegular TypeFlag = '0' // Regular file with content following the header
	TypeLink    TypeFlag = '1' // Hard link to a previously archived path
	TypeSymlink TypeFlag = '2' // Symbolic link
	TypeChar    TypeFlag = '3' // Character device node
	TypeBlock   TypeFlag = '4' // Block device node
	TypeDir     TypeFlag = '5' // Directory
	TypeFifo    TypeFlag = '6' // Named pipe
)

// String returns a short human-readable name for the flag
func (t TypeFlag) String() string {
	switch t {
	case TypeRegular:
		return "file"
	case TypeLink:
		return "hardlink"
	case TypeSymlink:
		return "symlink"
	case TypeChar:
		return "chardev"
	case TypeBlock:
		return "blockdev"
	case TypeDir:
		return "dir"
	case TypeFifo:
		return "fifo"
	default:
		return "unknown(" + string(rune(t)) + ")"
	}
}

// Known reports whether the flag is one of the seven supported entry types
func (t TypeFlag) Known() bool {
	return t >= TypeRegular && t <= TypeFifo
}

// block is one archive record
type block [BlockSize]byte

var zeroBlock block

// paddingSize returns the number of zero bytes that follow size content
// bytes to reach the next block boundary
func paddingSize(size int64) int64 {
	return -size & (BlockSize - 1)
}

// ListEntry describes one archive member as reported by List
type ListEntry struct {
	Name     string   // Path stored in the archive
	Type     TypeFlag // Entry type flag
	Size     int64    // Content size from the header
	Mode     uint32   // Permission bits
	LinkName string   // Link target for hard and symbolic links
	Owner    string   // User name, empty when the archive carries none
	Group    string
	ModTime  time.Time
}
