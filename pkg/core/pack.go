package core

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"ustar/pkg/compress"
	"ustar/pkg/progress"
)

// PackOptions controls Pack
type PackOptions struct {
	Compression compress.Scheme // Stream transform applied to the archive
	Accounts    AccountResolver // Owner/group lookup; nil leaves names empty
	Sorted      bool            // Visit directory entries in name order
	Logger      *slog.Logger
}

// PackResult describes a written archive
type PackResult struct {
	Path        string // Archive file written
	ArchiveSize int64  // Uncompressed archive size
	Written     int64  // Bytes on disk after compression
	Digest      string // BLAKE3-256 of the uncompressed archive, hex
}

// ArchivePath returns the file name Pack writes for name: name with any
// known archive suffix replaced by the scheme's extension
func ArchivePath(name string, scheme compress.Scheme) string {
	return compress.TrimExtension(name) + scheme.Extension()
}

// Pack archives the tree at input into ArchivePath(archiveName, ...). The
// whole archive is built in memory first.
func Pack(input, archiveName string, opts PackOptions) (PackResult, error) {
	if _, err := os.Lstat(input); err != nil {
		return PackResult{}, fmt.Errorf("stat input: %w", err)
	}
	if archiveName == "" {
		archiveName = "archive"
	}

	progress.Init(TreeSize(input))
	defer progress.Stop()

	builderOpts := []BuildOption{WithSortedEntries(opts.Sorted), WithBuildLogger(opts.Logger)}
	if opts.Accounts != nil {
		builderOpts = append(builderOpts, WithAccountResolver(opts.Accounts))
	}
	data, err := NewBuilder(builderOpts...).Build(input)
	if err != nil {
		return PackResult{}, fmt.Errorf("build archive: %w", err)
	}

	output := ArchivePath(archiveName, opts.Compression)
	if err := writeArchive(output, data, opts.Compression); err != nil {
		return PackResult{}, err
	}
	info, err := os.Stat(output)
	if err != nil {
		return PackResult{}, fmt.Errorf("stat output: %w", err)
	}

	sum := blake3.Sum256(data)
	return PackResult{
		Path:        output,
		ArchiveSize: int64(len(data)),
		Written:     info.Size(),
		Digest:      hex.EncodeToString(sum[:]),
	}, nil
}

// writeArchive writes data to output through the compression transform
func writeArchive(output string, data []byte, scheme compress.Scheme) error {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	zw, err := compress.NewWriter(f, scheme)
	if err != nil {
		return fmt.Errorf("open %s writer: %w", scheme, err)
	}
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush %s writer: %w", scheme, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
