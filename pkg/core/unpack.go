package core

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"ustar/pkg/compress"
	"ustar/pkg/progress"
)

// UnpackOptions controls Unpack
type UnpackOptions struct {
	Overwrite OverwritePolicy // Policy for existing directories
	Decide    DecideFunc      // Per-directory decision; overrides Overwrite
	Logger    *slog.Logger
}

// openArchive opens archivePath and returns a reader over the uncompressed
// archive stream, the compression scheme inferred from its name, and the
// on-disk size
func openArchive(archivePath string) (io.ReadCloser, compress.Scheme, int64, error) {
	scheme, ok := compress.FromFileName(archivePath)
	if !ok {
		return nil, compress.None, 0, fmt.Errorf("%s: %w", archivePath, ErrUnsupportedArchive)
	}
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, scheme, 0, fmt.Errorf("open input: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, scheme, 0, fmt.Errorf("stat input: %w", err)
	}
	zr, err := compress.NewReader(bufio.NewReader(f), scheme)
	if err != nil {
		f.Close()
		return nil, scheme, 0, fmt.Errorf("open %s reader: %w", scheme, err)
	}
	return &archiveReadCloser{ReadCloser: zr, file: f}, scheme, info.Size(), nil
}

// archiveReadCloser closes the decompressor and then the file under it
type archiveReadCloser struct {
	io.ReadCloser
	file *os.File
}

func (a *archiveReadCloser) Close() error {
	err := a.ReadCloser.Close()
	if ferr := a.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// Unpack extracts the archive at archivePath below dest ("." when empty).
// The compression scheme is inferred from the file name. Recoverable
// per-entry anomalies are returned as warnings alongside a nil error.
func Unpack(archivePath, dest string, opts UnpackOptions) ([]Warning, error) {
	r, scheme, size, err := openArchive(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if dest == "" {
		dest = "."
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", dest, err)
	}

	// Extracted bytes only match the file size for plain archives.
	var total uint64
	if scheme == compress.None {
		total = uint64(size)
	}
	progress.Init(total)
	defer progress.Stop()

	extractOpts := []ExtractOption{
		WithOverwritePolicy(opts.Overwrite),
		WithExtractLogger(opts.Logger),
	}
	if opts.Decide != nil {
		extractOpts = append(extractOpts, WithOverwriteDecider(opts.Decide))
	}
	x := NewExtractor(dest, extractOpts...)
	if err := x.Extract(r); err != nil {
		return x.Warnings(), fmt.Errorf("extract %s: %w", archivePath, err)
	}
	return x.Warnings(), nil
}

// List returns the entries of the archive at archivePath
func List(archivePath string) ([]ListEntry, error) {
	r, _, _, err := openArchive(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	entries, err := ListArchive(r)
	if err != nil {
		return entries, fmt.Errorf("list %s: %w", archivePath, err)
	}
	return entries, nil
}
