package core

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"ustar/pkg/progress"
)

type buildOptionData struct {
	accounts AccountResolver
	sorted   bool
	logger   *slog.Logger
}

// BuildOption configures a Builder
type BuildOption func(*buildOptionData)

// WithAccountResolver sets the owner and group name lookup. The default
// leaves both names empty.
func WithAccountResolver(r AccountResolver) BuildOption {
	return func(o *buildOptionData) {
		o.accounts = r
	}
}

// WithSortedEntries makes the builder visit directory entries in name order
// instead of the order the filesystem returns them, so that the same tree
// always produces the same archive.
func WithSortedEntries(sorted bool) BuildOption {
	return func(o *buildOptionData) {
		o.sorted = sorted
	}
}

// WithBuildLogger sets the logger for per-entry debug records
func WithBuildLogger(l *slog.Logger) BuildOption {
	return func(o *buildOptionData) {
		if l != nil {
			o.logger = l
		}
	}
}

// Builder encodes filesystem subtrees into in-memory archives
type Builder struct {
	opts buildOptionData
}

// NewBuilder returns a Builder configured by options
func NewBuilder(options ...BuildOption) *Builder {
	opts := buildOptionData{
		accounts: NoAccounts,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range options {
		o(&opts)
	}
	return &Builder{opts: opts}
}

// buildState is owned by a single Build call
type buildState struct {
	opts   *buildOptionData
	out    *bytes.Buffer
	inodes *InodeMap
	base   string
}

// Build archives the subtree at root. Entry names are relative to the
// parent of root, so the first entry is root's own base name. The returned
// slice ends with the two-block end marker.
func (b *Builder) Build(root string) ([]byte, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	s := &buildState{
		opts:   &b.opts,
		out:    new(bytes.Buffer),
		inodes: NewInodeMap(),
		base:   filepath.Dir(root),
	}
	if err := s.add(root); err != nil {
		return nil, err
	}
	s.out.Write(zeroBlock[:])
	s.out.Write(zeroBlock[:])
	return s.out.Bytes(), nil
}

// archiveName returns the slash-separated path of p relative to the build
// base
func (s *buildState) archiveName(p string) (string, error) {
	rel, err := filepath.Rel(s.base, p)
	if err != nil {
		return "", fmt.Errorf("relative path for %s: %w", p, err)
	}
	return filepath.ToSlash(rel), nil
}

// add appends the entry at path and, for directories, everything below it
func (s *buildState) add(path string) error {
	md, err := Lstat(path)
	if err != nil {
		return err
	}
	name, err := s.archiveName(path)
	if err != nil {
		return err
	}

	switch {
	case md.IsRegular():
		return s.addFile(path, name, md)
	case md.IsDir():
		return s.addDir(path, name, md)
	default:
		_, err := s.writeHeader(name, md)
		return err
	}
}

// writeHeader encodes and appends one header record
func (s *buildState) writeHeader(name string, md Metadata) (*Header, error) {
	hdr, err := EncodeHeader(name, md, s.inodes, s.opts.accounts)
	if err != nil {
		return nil, err
	}
	s.out.Write(hdr.Bytes())
	s.opts.logger.Debug("added entry", "name", hdr.FileName(), "type", hdr.Typeflag().String(), "size", hdr.FileSize())
	return hdr, nil
}

// addFile appends a regular file's header and, on first sight of its inode,
// its padded content
func (s *buildState) addFile(path, name string, md Metadata) error {
	hdr, err := s.writeHeader(name, md)
	if err != nil {
		return err
	}
	if hdr.Typeflag() == TypeLink {
		return nil
	}
	s.inodes.Record(md, name)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.CopyN(&progress.Writer{W: s.out}, f, md.Size); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	s.out.Write(zeroBlock[:paddingSize(md.Size)])
	return nil
}

// addDir appends a directory header and then recurses into its entries
func (s *buildState) addDir(path, name string, md Metadata) error {
	if _, err := s.writeHeader(name, md); err != nil {
		return err
	}

	d, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open directory %s: %w", path, err)
	}
	entries, err := d.ReadDir(-1)
	d.Close()
	if err != nil {
		return fmt.Errorf("read directory %s: %w", path, err)
	}
	if s.opts.sorted {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	}

	for _, e := range entries {
		if err := s.add(filepath.Join(path, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// TreeSize returns the total content size of the regular files under root.
// Unreadable entries are skipped; the result only feeds progress reporting.
func TreeSize(root string) uint64 {
	var total uint64
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += uint64(info.Size())
			}
		}
		return nil
	})
	return total
}
