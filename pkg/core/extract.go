package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ustar/pkg/progress"
)

// OverwritePolicy decides what happens when a directory entry names a path
// that already exists
type OverwritePolicy int

// Valid values of OverwritePolicy
const (
	// Leave the existing directory in place and extract into it.
	OverwriteSkip OverwritePolicy = iota

	// Remove the existing path and everything below it, then create the
	// directory afresh.
	OverwriteRecreate

	// Abort the extraction with ErrDirectoryExists.
	OverwriteFail
)

// String returns the policy name used in configuration and flags
func (p OverwritePolicy) String() string {
	switch p {
	case OverwriteSkip:
		return "skip"
	case OverwriteRecreate:
		return "recreate"
	case OverwriteFail:
		return "fail"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParseOverwritePolicy parses a policy name
func ParseOverwritePolicy(name string) (OverwritePolicy, error) {
	switch name {
	case "skip":
		return OverwriteSkip, nil
	case "recreate", "overwrite":
		return OverwriteRecreate, nil
	case "fail":
		return OverwriteFail, nil
	default:
		return OverwriteSkip, fmt.Errorf("unknown overwrite policy: %q", name)
	}
}

// DecideFunc chooses a policy for one existing directory. name is the
// archive path of the entry.
type DecideFunc func(name string) (OverwritePolicy, error)

type extractOptionData struct {
	policy OverwritePolicy
	decide DecideFunc
	logger *slog.Logger
}

// ExtractOption configures an Extractor
type ExtractOption func(*extractOptionData)

// WithOverwritePolicy sets the policy for existing directories. Defaults to
// OverwriteSkip.
func WithOverwritePolicy(p OverwritePolicy) ExtractOption {
	return func(o *extractOptionData) {
		o.policy = p
	}
}

// WithOverwriteDecider asks f about every existing directory instead of
// applying a fixed policy
func WithOverwriteDecider(f DecideFunc) ExtractOption {
	return func(o *extractOptionData) {
		o.decide = f
	}
}

// WithExtractLogger sets the logger for warnings and per-entry records
func WithExtractLogger(l *slog.Logger) ExtractOption {
	return func(o *extractOptionData) {
		if l != nil {
			o.logger = l
		}
	}
}

// dirMeta is applied to a created directory once the scan is over
type dirMeta struct {
	path  string
	mode  os.FileMode
	mtime time.Time
}

// Extractor recreates archive entries below a destination directory
type Extractor struct {
	dest     string
	opts     extractOptionData
	warnings []Warning
	dirs     []dirMeta
}

// NewExtractor returns an Extractor writing below dest
func NewExtractor(dest string, options ...ExtractOption) *Extractor {
	opts := extractOptionData{
		policy: OverwriteSkip,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range options {
		o(&opts)
	}
	return &Extractor{dest: dest, opts: opts}
}

// Warnings returns the recoverable anomalies of the last Extract call
func (x *Extractor) Warnings() []Warning {
	return x.warnings
}

// Extract reads r until the end marker or the end of the stream and
// recreates every entry. Device nodes and FIFOs that cannot be created for
// lack of privilege, and entries with unknown type flags, are recorded as
// warnings and skipped. Any other failure aborts.
func (x *Extractor) Extract(r io.Reader) error {
	x.warnings = nil
	x.dirs = nil

	tr := NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := x.extractEntry(tr, hdr); err != nil {
			return err
		}
	}
	if tr.Truncated() {
		x.opts.logger.Warn("archive ended without end marker", "dest", x.dest)
	}
	return x.finishDirs()
}

// warn records a recoverable anomaly
func (x *Extractor) warn(name string, err error) {
	x.warnings = append(x.warnings, Warning{Path: name, Err: err})
	x.opts.logger.Warn("skipped entry", "path", name, "error", err)
}

// extractEntry dispatches one header to the action for its type
func (x *Extractor) extractEntry(tr *Reader, hdr *Header) error {
	name := hdr.FileName()
	flag := hdr.Typeflag()
	target, err := x.resolve(name, flag == TypeDir)
	if errors.Is(err, ErrUnsafePath) {
		x.warn(name, err)
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := hdr.ParseSize(); err != nil {
		x.opts.logger.Warn("malformed size field", "path", name, "error", err)
	}
	mode, err := hdr.ParseMode()
	if err != nil {
		x.opts.logger.Warn("malformed mode field", "path", name, "error", err)
	}
	x.opts.logger.Debug("extracting", "path", name, "type", flag.String())

	if flag.Known() && flag != TypeDir {
		if err := prepareNode(target); err != nil {
			return err
		}
	}

	switch flag {
	case TypeRegular:
		return x.writeFile(tr, hdr, target, mode)

	case TypeLink:
		linkTarget, err := x.resolve(hdr.LinkName(), false)
		if errors.Is(err, ErrUnsafePath) {
			x.warn(name, fmt.Errorf("link target: %w", err))
			return nil
		}
		if err != nil {
			return err
		}
		if err := os.Link(linkTarget, target); err != nil {
			return fmt.Errorf("hard link %s -> %s: %w", name, hdr.LinkName(), err)
		}

	case TypeSymlink:
		if err := os.Symlink(hdr.LinkName(), target); err != nil {
			return fmt.Errorf("symlink %s -> %s: %w", name, hdr.LinkName(), err)
		}

	case TypeChar, TypeBlock:
		if err := makeDevice(target, flag, mode, hdr.DevMajor(), hdr.DevMinor()); err != nil {
			x.warn(name, fmt.Errorf("%w: %v", ErrPrivilege, err))
		}

	case TypeDir:
		return x.makeDir(name, target, mode, hdr.ModTime())

	case TypeFifo:
		if err := makeFifo(target, mode); err != nil {
			if !isPrivilegeError(err) {
				return fmt.Errorf("create fifo %s: %w", name, err)
			}
			x.warn(name, fmt.Errorf("%w: %v", ErrPrivilege, err))
		}

	default:
		x.warn(name, fmt.Errorf("%w %q", ErrUnknownTypeFlag, byte(flag)))
	}
	return nil
}

// resolve maps an archive path to its location below dest. Absolute paths,
// paths that climb out of dest and paths below a symlink inside dest are
// rejected with ErrUnsafePath. Only directories may name dest itself.
func (x *Extractor) resolve(name string, dir bool) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	sep := string(filepath.Separator)
	switch {
	case filepath.IsAbs(rel), rel == "..", strings.HasPrefix(rel, ".."+sep):
		return "", fmt.Errorf("%w: %q leaves the destination", ErrUnsafePath, name)
	case rel == "." && !dir:
		return "", fmt.Errorf("%w: %q names the destination", ErrUnsafePath, name)
	}

	parent := x.dest
	for _, part := range strings.Split(filepath.Dir(rel), sep) {
		if part == "." {
			continue
		}
		parent = filepath.Join(parent, part)
		fi, err := os.Lstat(parent)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", parent, err)
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("%w: %q is below symlink %s", ErrUnsafePath, name, parent)
		}
	}
	return filepath.Join(x.dest, rel), nil
}

// prepareNode creates the parents of target and removes a non-directory
// already sitting at target, so the new node replaces it instead of writing
// through it
func prepareNode(target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	fi, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", target, err)
	}
	if fi.IsDir() {
		return nil
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("replace %s: %w", target, err)
	}
	return nil
}

// writeFile copies the entry content into target and applies its mode and
// modification time
func (x *Extractor) writeFile(tr *Reader, hdr *Header, target string, mode uint32) error {
	size := hdr.FileSize()
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer f.Close()

	n, err := io.CopyN(&progress.Writer{W: f}, tr, size)
	if err != nil {
		return fmt.Errorf("write %s: expected %d bytes, got %d: %w", target, size, n, err)
	}
	if err := f.Chmod(os.FileMode(mode)); err != nil {
		return fmt.Errorf("chmod %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	mtime := hdr.ModTime()
	if err := os.Chtimes(target, mtime, mtime); err != nil {
		return fmt.Errorf("set times %s: %w", target, err)
	}
	return nil
}

// makeDir creates a directory entry, consulting the overwrite policy when
// a directory already exists at the path. A non-directory in the way is
// replaced regardless of the policy. An entry naming dest itself only
// ensures dest exists.
func (x *Extractor) makeDir(name, target string, mode uint32, mtime time.Time) error {
	if target == filepath.Clean(x.dest) {
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("create destination %s: %w", target, err)
		}
		return nil
	}

	fi, err := os.Lstat(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("stat %s: %w", target, err)
	case !fi.IsDir():
		x.opts.logger.Info("replacing non-directory", "path", name)
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("replace %s: %w", target, err)
		}
	default:
		policy := x.opts.policy
		if x.opts.decide != nil {
			if policy, err = x.opts.decide(name); err != nil {
				return fmt.Errorf("overwrite decision for %s: %w", name, err)
			}
		}
		switch policy {
		case OverwriteSkip:
			x.opts.logger.Info("keeping existing directory", "path", name)
			return nil
		case OverwriteRecreate:
			x.opts.logger.Info("overwriting directory", "path", name)
			if err := os.RemoveAll(target); err != nil {
				return fmt.Errorf("remove %s: %w", target, err)
			}
		default:
			return fmt.Errorf("create directory %s: %w", name, ErrDirectoryExists)
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	if err := os.Mkdir(target, 0700); err != nil {
		return fmt.Errorf("create directory %s: %w", target, err)
	}
	x.dirs = append(x.dirs, dirMeta{path: target, mode: os.FileMode(mode), mtime: mtime})
	return nil
}

// finishDirs applies directory modes and times, deepest first, once nothing
// more will be written into them
func (x *Extractor) finishDirs() error {
	for i := len(x.dirs) - 1; i >= 0; i-- {
		d := x.dirs[i]
		if _, err := os.Lstat(d.path); errors.Is(err, fs.ErrNotExist) {
			// removed again by a later recreate of a parent
			continue
		}
		if err := os.Chmod(d.path, d.mode); err != nil {
			return fmt.Errorf("chmod %s: %w", d.path, err)
		}
		if err := os.Chtimes(d.path, d.mtime, d.mtime); err != nil {
			return fmt.Errorf("set times %s: %w", d.path, err)
		}
	}
	return nil
}
