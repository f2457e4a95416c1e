package core

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"ustar/pkg/compress"
)

// TestPackUnpackRoundTrip tests pack and unpack through every compression
// scheme
func TestPackUnpackRoundTrip(t *testing.T) {
	tmpDir := makeTempDir(t)
	root := makeTree(t, filepath.Join(tmpDir, "src"))

	var digest string
	for _, scheme := range []compress.Scheme{compress.None, compress.Gzip, compress.LZ4, compress.Zstd} {
		t.Run(scheme.String(), func(t *testing.T) {
			res, err := Pack(root, filepath.Join(tmpDir, "out", scheme.String()), PackOptions{
				Compression: scheme,
				Sorted:      true,
			})
			if err != nil {
				t.Fatalf("Failed to pack: %v", err)
			}
			if want := filepath.Join(tmpDir, "out", scheme.String()) + scheme.Extension(); res.Path != want {
				t.Errorf("Path = %q, want %q", res.Path, want)
			}
			if res.ArchiveSize%BlockSize != 0 || res.Written <= 0 {
				t.Errorf("ArchiveSize = %d, Written = %d", res.ArchiveSize, res.Written)
			}
			if scheme == compress.None && res.Written != res.ArchiveSize {
				t.Errorf("plain archive wrote %d bytes for %d", res.Written, res.ArchiveSize)
			}
			if len(res.Digest) != 64 {
				t.Errorf("Digest = %q", res.Digest)
			}
			// The digest covers the uncompressed archive.
			if digest == "" {
				digest = res.Digest
			} else if res.Digest != digest {
				t.Errorf("digest %s differs from plain archive digest %s", res.Digest, digest)
			}

			entries, err := List(res.Path)
			if err != nil {
				t.Fatalf("Failed to list: %v", err)
			}
			if len(entries) != 5 || entries[0].Name != "root/" {
				t.Errorf("entries = %+v", entries)
			}

			dest := filepath.Join(tmpDir, "dst-"+scheme.String())
			warnings, err := Unpack(res.Path, dest, UnpackOptions{})
			if err != nil {
				t.Fatalf("Failed to unpack: %v", err)
			}
			if len(warnings) != 0 {
				t.Errorf("warnings = %v", warnings)
			}
			compareTrees(t, root, filepath.Join(dest, "root"))
		})
	}
}

// TestPackDefaultName tests that an empty archive name falls back to
// "archive"
func TestPackDefaultName(t *testing.T) {
	tmpDir := makeTempDir(t)
	root := makeTree(t, tmpDir)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to chdir: %v", err)
	}
	defer os.Chdir(wd)

	res, err := Pack(root, "", PackOptions{})
	if err != nil {
		t.Fatalf("Failed to pack: %v", err)
	}
	if res.Path != "archive.tar" {
		t.Errorf("Path = %q, want archive.tar", res.Path)
	}
}

// TestPackErrors tests pack failures
func TestPackErrors(t *testing.T) {
	tmpDir := makeTempDir(t)
	if _, err := Pack(filepath.Join(tmpDir, "missing"), filepath.Join(tmpDir, "out"), PackOptions{}); err == nil {
		t.Errorf("Pack() of missing input succeeded")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "out.tar")); err == nil {
		t.Errorf("failed pack left an archive behind")
	}
}

// TestUnpackUnsupported tests archive names without a known suffix
func TestUnpackUnsupported(t *testing.T) {
	tmpDir := makeTempDir(t)
	name := filepath.Join(tmpDir, "data.zip")
	if err := os.WriteFile(name, []byte("PK"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := Unpack(name, tmpDir, UnpackOptions{}); !errors.Is(err, ErrUnsupportedArchive) {
		t.Errorf("Unpack() error = %v, want ErrUnsupportedArchive", err)
	}
	if _, err := List(name); !errors.Is(err, ErrUnsupportedArchive) {
		t.Errorf("List() error = %v, want ErrUnsupportedArchive", err)
	}
	if _, err := Unpack(filepath.Join(tmpDir, "missing.tar"), tmpDir, UnpackOptions{}); err == nil {
		t.Errorf("Unpack() of missing archive succeeded")
	}
}

// TestUnpackCorruptCompressed tests that a damaged compressed stream fails
func TestUnpackCorruptCompressed(t *testing.T) {
	tmpDir := makeTempDir(t)
	name := filepath.Join(tmpDir, "bad.tar.gz")
	if err := os.WriteFile(name, []byte("definitely not gzip"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := Unpack(name, filepath.Join(tmpDir, "dst"), UnpackOptions{}); err == nil {
		t.Errorf("Unpack() of corrupt gzip succeeded")
	}
}

// TestUnpackDecider tests that Decide is wired through Unpack
func TestUnpackDecider(t *testing.T) {
	tmpDir := makeTempDir(t)
	root := makeTree(t, filepath.Join(tmpDir, "src"))
	res, err := Pack(root, filepath.Join(tmpDir, "out"), PackOptions{Sorted: true})
	if err != nil {
		t.Fatalf("Failed to pack: %v", err)
	}
	dest := filepath.Join(tmpDir, "dst")
	if _, err := Unpack(res.Path, dest, UnpackOptions{}); err != nil {
		t.Fatalf("Failed to unpack: %v", err)
	}

	var asked []string
	opts := UnpackOptions{
		Overwrite: OverwriteFail,
		Decide: func(name string) (OverwritePolicy, error) {
			asked = append(asked, name)
			return OverwriteRecreate, nil
		},
	}
	if _, err := Unpack(res.Path, dest, opts); err != nil {
		t.Fatalf("Failed to unpack again: %v", err)
	}
	if !slices.Equal(asked, []string{"root/"}) {
		t.Errorf("asked about %v, want [root/]", asked)
	}
}

// TestArchivePath tests suffix handling
func TestArchivePath(t *testing.T) {
	testCases := []struct {
		name   string
		scheme compress.Scheme
		want   string
	}{
		{"backup", compress.None, "backup.tar"},
		{"backup.tar", compress.None, "backup.tar"},
		{"backup", compress.Gzip, "backup.tar.gz"},
		{"backup.tar.gz", compress.Gzip, "backup.tar.gz"},
		{"backup.tar", compress.Zstd, "backup.tar.zst"},
		{"foo.tar", compress.Gzip, "foo.tar.gz"},
		{"foo.tgz", compress.Gzip, "foo.tar.gz"},
		{"foo.TAR.GZ", compress.None, "foo.tar"},
		{"foo.zip", compress.None, "foo.zip.tar"},
		{"dir/backup", compress.LZ4, "dir/backup.tar.lz4"},
	}
	for _, tc := range testCases {
		if got := ArchivePath(tc.name, tc.scheme); got != tc.want {
			t.Errorf("ArchivePath(%q, %v) = %q, want %q", tc.name, tc.scheme, got, tc.want)
		}
	}
}
