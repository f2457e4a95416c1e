// Package lib provides archive packing and unpacking for the ustar format.
// This package re-exports the functionality from the core package as a
// stable surface for callers outside this module.
package lib

import (
	"log/slog"

	"ustar/pkg/compress"
	"ustar/pkg/core"
	"ustar/pkg/progress"
)

// Constants for archive format re-exported from core
const (
	Magic     = core.Magic     // Magic field of every header
	Version   = core.Version   // Version field of every header
	BlockSize = core.BlockSize // Record size
)

// TypeFlag re-exported from core
type TypeFlag = core.TypeFlag

// Re-export entry types
const (
	TypeRegular = core.TypeRegular
	TypeLink    = core.TypeLink
	TypeSymlink = core.TypeSymlink
	TypeChar    = core.TypeChar
	TypeBlock   = core.TypeBlock
	TypeDir     = core.TypeDir
	TypeFifo    = core.TypeFifo
)

// OverwritePolicy re-exported from core
type OverwritePolicy = core.OverwritePolicy

// Re-export overwrite policies
const (
	OverwriteSkip     = core.OverwriteSkip
	OverwriteRecreate = core.OverwriteRecreate
	OverwriteFail     = core.OverwriteFail
)

// Scheme re-exported from compress
type Scheme = compress.Scheme

// Re-export compression schemes
const (
	None = compress.None
	Gzip = compress.Gzip
	LZ4  = compress.LZ4
	Zstd = compress.Zstd
)

// Re-exported result and option types
type (
	ListEntry     = core.ListEntry
	Warning       = core.Warning
	PackOptions   = core.PackOptions
	PackResult    = core.PackResult
	UnpackOptions = core.UnpackOptions
)

// SetProgressLogger routes progress records from Pack and Unpack to l. A
// nil logger discards them.
func SetProgressLogger(l *slog.Logger) {
	progress.SetLogger(l)
}

// Pack is a wrapper around core.Pack
func Pack(input, archiveName string, opts PackOptions) (PackResult, error) {
	return core.Pack(input, archiveName, opts)
}

// Unpack is a wrapper around core.Unpack
func Unpack(archivePath, dest string, opts UnpackOptions) ([]Warning, error) {
	return core.Unpack(archivePath, dest, opts)
}

// List is a wrapper around core.List
func List(archivePath string) ([]ListEntry, error) {
	return core.List(archivePath)
}

// Build archives root in memory with system owner and group names
func Build(root string) ([]byte, error) {
	return core.NewBuilder(core.WithAccountResolver(core.NewSystemAccounts())).Build(root)
}
