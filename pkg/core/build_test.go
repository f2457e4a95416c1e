package core

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// TestBuildTree tests the archive of a small tree with a file, a nested
// file and a symlink
func TestBuildTree(t *testing.T) {
	root := makeTree(t, makeTempDir(t))
	data := mustBuild(t, root)

	if len(data)%BlockSize != 0 {
		t.Fatalf("archive length %d is not a multiple of %d", len(data), BlockSize)
	}
	if !bytes.Equal(data[len(data)-FooterSize:], make([]byte, FooterSize)) {
		t.Errorf("archive does not end with %d zero bytes", FooterSize)
	}
	// root, a.txt + 1 block, link, sub, b.txt + 1 block, footer
	if want := 7*BlockSize + FooterSize; len(data) != want {
		t.Errorf("archive length = %d, want %d", len(data), want)
	}

	entries, err := ListArchive(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to list archive: %v", err)
	}
	want := []ListEntry{
		{Name: "root/", Type: TypeDir},
		{Name: "root/a.txt", Type: TypeRegular, Size: 2, Mode: 0644},
		{Name: "root/link", Type: TypeSymlink, LinkName: "a.txt"},
		{Name: "root/sub/", Type: TypeDir},
		{Name: "root/sub/b.txt", Type: TypeRegular, Size: 13, Mode: 0600},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, w := range want {
		e := entries[i]
		if e.Name != w.Name || e.Type != w.Type || e.LinkName != w.LinkName {
			t.Errorf("entry %d = %+v, want %+v", i, e, w)
		}
		if w.Type == TypeRegular && (e.Size != w.Size || e.Mode != w.Mode) {
			t.Errorf("entry %d size/mode = %d/%o, want %d/%o", i, e.Size, e.Mode, w.Size, w.Mode)
		}
	}

	// Content follows its header directly.
	if got := string(data[2*BlockSize : 2*BlockSize+2]); got != "hi" {
		t.Errorf("content of a.txt = %q, want \"hi\"", got)
	}
}

// TestBuildReadableByArchiveTar tests that the standard tar reader accepts
// the archive, checksums included
func TestBuildReadableByArchiveTar(t *testing.T) {
	root := makeTree(t, makeTempDir(t))
	data := mustBuild(t, root)

	tr := tar.NewReader(bytes.NewReader(data))
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("archive/tar rejected archive: %v", err)
		}
		names = append(names, hdr.Name)
		if hdr.Name == "root/a.txt" {
			content, err := io.ReadAll(tr)
			if err != nil {
				t.Fatalf("Failed to read a.txt: %v", err)
			}
			if string(content) != "hi" {
				t.Errorf("a.txt = %q", content)
			}
		}
		if hdr.Name == "root/link" && (hdr.Typeflag != tar.TypeSymlink || hdr.Linkname != "a.txt") {
			t.Errorf("link = %c -> %q", hdr.Typeflag, hdr.Linkname)
		}
	}
	want := []string{"root/", "root/a.txt", "root/link", "root/sub/", "root/sub/b.txt"}
	if !slices.Equal(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

// TestBuildUnsorted tests that filesystem order still yields every entry,
// each directory before its children
func TestBuildUnsorted(t *testing.T) {
	root := makeTree(t, makeTempDir(t))
	data, err := NewBuilder().Build(root)
	if err != nil {
		t.Fatalf("Failed to build archive: %v", err)
	}
	names := entryNames(t, data)
	if len(names) != 5 || names[0] != "root/" {
		t.Fatalf("names = %v", names)
	}
	sub := slices.Index(names, "root/sub/")
	b := slices.Index(names, "root/sub/b.txt")
	if sub < 0 || b < sub {
		t.Errorf("sub at %d, b.txt at %d", sub, b)
	}
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	if !slices.Equal(sorted, []string{"root/", "root/a.txt", "root/link", "root/sub/", "root/sub/b.txt"}) {
		t.Errorf("names = %v", names)
	}
}

// TestBuildDeterministic tests that sorted builds of the same tree are
// byte-identical
func TestBuildDeterministic(t *testing.T) {
	root := makeTree(t, makeTempDir(t))
	for i := 0; i < 10; i++ {
		name := filepath.Join(root, "sub", string(rune('c'+i))+".txt")
		if err := os.WriteFile(name, []byte{byte(i)}, 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	first := mustBuild(t, root)
	second := mustBuild(t, root)
	if !bytes.Equal(first, second) {
		t.Errorf("two sorted builds differ")
	}
}

// TestBuildHardLinks tests that the second path of an inode is stored as a
// hard link without content
func TestBuildHardLinks(t *testing.T) {
	root := filepath.Join(makeTempDir(t), "root")
	if err := os.Mkdir(root, 0755); err != nil {
		t.Fatalf("Failed to create root: %v", err)
	}
	content := bytes.Repeat([]byte("shared"), 200)
	if err := os.WriteFile(filepath.Join(root, "h1"), content, 0644); err != nil {
		t.Fatalf("Failed to write h1: %v", err)
	}
	if err := os.Link(filepath.Join(root, "h1"), filepath.Join(root, "h2")); err != nil {
		t.Fatalf("Failed to link h2: %v", err)
	}

	data := mustBuild(t, root)
	entries, err := ListArchive(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to list archive: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	h1, h2 := entries[1], entries[2]
	if h1.Type != TypeRegular || h1.Size != int64(len(content)) {
		t.Errorf("h1 = %+v, want regular file", h1)
	}
	if h2.Type != TypeLink || h2.LinkName != "root/h1" || h2.Size != 0 {
		t.Errorf("h2 = %+v, want hard link to root/h1", h2)
	}
	// root, h1 + 3 content blocks, h2, footer
	if want := 6*BlockSize + FooterSize; len(data) != want {
		t.Errorf("archive length = %d, want %d", len(data), want)
	}
}

// TestBuildSocket tests that an unsupported file type aborts the build
func TestBuildSocket(t *testing.T) {
	root := filepath.Join(makeTempDir(t), "root")
	if err := os.Mkdir(root, 0755); err != nil {
		t.Fatalf("Failed to create root: %v", err)
	}
	l, err := net.Listen("unix", filepath.Join(root, "sock"))
	if err != nil {
		t.Skipf("cannot create unix socket: %v", err)
	}
	defer l.Close()

	_, err = NewBuilder().Build(root)
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Errorf("Build() error = %v, want ErrUnsupportedFileType", err)
	}
}

// TestBuildFifo tests that named pipes are stored without content
func TestBuildFifo(t *testing.T) {
	root := filepath.Join(makeTempDir(t), "root")
	if err := os.Mkdir(root, 0755); err != nil {
		t.Fatalf("Failed to create root: %v", err)
	}
	if err := makeFifo(filepath.Join(root, "pipe"), 0640); err != nil {
		t.Skipf("cannot create fifo: %v", err)
	}
	entries, err := ListArchive(bytes.NewReader(mustBuild(t, root)))
	if err != nil {
		t.Fatalf("Failed to list archive: %v", err)
	}
	if len(entries) != 2 || entries[1].Type != TypeFifo || entries[1].Mode != 0640 {
		t.Errorf("entries = %+v", entries)
	}
}

// TestBuildSingleFile tests archiving a file given as the root
func TestBuildSingleFile(t *testing.T) {
	root := makeTree(t, makeTempDir(t))
	names := entryNames(t, mustBuild(t, filepath.Join(root, "a.txt")))
	if !slices.Equal(names, []string{"a.txt"}) {
		t.Errorf("names = %v, want [a.txt]", names)
	}
}

// TestBuildMissingRoot tests that a nonexistent root fails
func TestBuildMissingRoot(t *testing.T) {
	_, err := NewBuilder().Build(filepath.Join(makeTempDir(t), "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Build() error = %v, want not-exist", err)
	}
}

// TestBuildAccountNames tests that the resolver fills owner and group names
func TestBuildAccountNames(t *testing.T) {
	root := makeTree(t, makeTempDir(t))
	resolver := AccountResolverFunc(func(uid, gid uint32) (string, string) {
		return "alice", "staff"
	})
	data := mustBuild(t, root, WithAccountResolver(resolver))
	hdr, err := DecodeHeader(data[:BlockSize])
	if err != nil {
		t.Fatalf("Failed to decode header: %v", err)
	}
	if hdr.UserName() != "alice" || hdr.GroupName() != "staff" {
		t.Errorf("names = %q/%q, want alice/staff", hdr.UserName(), hdr.GroupName())
	}

	hdr, _ = DecodeHeader(mustBuild(t, root)[:BlockSize])
	if hdr.UserName() != "" || hdr.GroupName() != "" {
		t.Errorf("default resolver produced %q/%q", hdr.UserName(), hdr.GroupName())
	}
}

// TestTreeSize tests the content total used for progress
func TestTreeSize(t *testing.T) {
	root := makeTree(t, makeTempDir(t))
	if got := TreeSize(root); got != 2+13 {
		t.Errorf("TreeSize() = %d, want 15", got)
	}
}
