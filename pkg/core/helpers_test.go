package core

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

const testMtime = 1700000000

// regularMetadata returns metadata for a synthetic regular file
func regularMetadata(size int64, perm uint32) Metadata {
	return Metadata{
		Mode:    unix.S_IFREG | perm,
		UID:     1000,
		GID:     1000,
		Size:    size,
		ModTime: testMtime,
		Dev:     1,
		Ino:     uint64(size) + 100,
	}
}

// mustEncode encodes a header or fails the test
func mustEncode(t *testing.T, name string, md Metadata) *Header {
	t.Helper()
	h, err := EncodeHeader(name, md, nil, nil)
	if err != nil {
		t.Fatalf("Failed to encode header for %s: %v", name, err)
	}
	return h
}

// appendEntry writes a header, its content and padding to buf
func appendEntry(buf *bytes.Buffer, h *Header, content []byte) {
	buf.Write(h.Bytes())
	buf.Write(content)
	buf.Write(zeroBlock[:paddingSize(int64(len(content)))])
}

// appendFile writes a complete regular file entry to buf
func appendFile(t *testing.T, buf *bytes.Buffer, name string, content []byte) {
	t.Helper()
	appendEntry(buf, mustEncode(t, name, regularMetadata(int64(len(content)), 0644)), content)
}

// appendEndMarker writes the two zero blocks to buf
func appendEndMarker(buf *bytes.Buffer) {
	buf.Write(zeroBlock[:])
	buf.Write(zeroBlock[:])
}

// countingReader counts the bytes read through it
type countingReader struct {
	r *bytes.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// symlinkMetadata returns metadata for a synthetic symlink
func symlinkMetadata(target string) Metadata {
	return Metadata{
		Mode:       unix.S_IFLNK | 0777,
		Size:       int64(len(target)),
		ModTime:    testMtime,
		LinkTarget: target,
	}
}

// makeTempDir creates a temporary directory removed when the test ends
func makeTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ustar-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		// Read-only directories from mode round trips would block removal.
		filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				os.Chmod(path, 0755)
			}
			return nil
		})
		os.RemoveAll(dir)
	})
	return dir
}

// makeTree creates root/{a.txt, sub/b.txt, link -> a.txt} below dir and
// returns the path of root
func makeTree(t *testing.T, dir string) string {
	t.Helper()
	root := filepath.Join(dir, "root")
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatalf("Failed to create tree: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hi"), 0644); err != nil {
		t.Fatalf("Failed to write a.txt: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("content of b\n"), 0600); err != nil {
		t.Fatalf("Failed to write b.txt: %v", err)
	}
	if err := os.Symlink("a.txt", filepath.Join(root, "link")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	return root
}

// mustBuild archives root with sorted entries
func mustBuild(t *testing.T, root string, options ...BuildOption) []byte {
	t.Helper()
	options = append([]BuildOption{WithSortedEntries(true)}, options...)
	data, err := NewBuilder(options...).Build(root)
	if err != nil {
		t.Fatalf("Failed to build archive: %v", err)
	}
	return data
}

// entryNames returns the names listed in an archive
func entryNames(t *testing.T, data []byte) []string {
	t.Helper()
	entries, err := ListArchive(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to list archive: %v", err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
