package wacz

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// fixtureFile is one entry for mustCreateZip; slice order becomes
// central-directory order.
type fixtureFile struct {
	name string
	data []byte
	// store writes the entry uncompressed instead of deflated.
	store bool
}

func mustCreateZip(t *testing.T, path string, files []fixtureFile) {
	t.Helper()

	//nolint:gosec // G304: path comes from test helpers, not user input
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", path, err)
	}
	defer func() { _ = f.Close() }()

	w := zip.NewWriter(f)
	for _, ff := range files {
		hdr := &zip.FileHeader{Name: ff.name, Method: zip.Deflate}
		if ff.store {
			hdr.Method = zip.Store
		}
		fw, err := w.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("zip.CreateHeader(%q) error = %v", ff.name, err)
		}
		if _, err := fw.Write(ff.data); err != nil {
			t.Fatalf("zip write %q error = %v", ff.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip.Close() error = %v", err)
	}
}

func TestOpenContainer_EntriesInDirectoryOrder(t *testing.T) {
	t.Parallel()

	zipPath := filepath.Join(t.TempDir(), "c.zip")
	mustCreateZip(t, zipPath, []fixtureFile{
		{name: "zzz.txt", data: []byte("last name, first entry")},
		{name: "aaa.txt", data: []byte("first name, second entry"), store: true},
		{name: "dir/", data: nil},
		{name: "dir/nested.bin", data: []byte{0x01, 0x02}},
	})

	c, err := openContainer(zipPath, nil)
	if err != nil {
		t.Fatalf("openContainer() error = %v", err)
	}
	defer func() { _ = c.close() }()

	files := c.fileInfos()
	wantOrder := []string{"zzz.txt", "aaa.txt", "dir/nested.bin"}
	if len(files) != len(wantOrder) {
		t.Fatalf("fileInfos() = %d entries, want %d (directories skipped)", len(files), len(wantOrder))
	}
	for i, want := range wantOrder {
		if files[i].Path != want {
			t.Errorf("fileInfos()[%d].Path = %q, want %q", i, files[i].Path, want)
		}
	}
	if files[0].Size != uint64(len("last name, first entry")) {
		t.Errorf("Size = %d, want uncompressed length", files[0].Size)
	}
}

func TestOpenContainer_BadMagic(t *testing.T) {
	t.Parallel()

	zipPath := filepath.Join(t.TempDir(), "bad.zip")
	if err := os.WriteFile(zipPath, []byte("not-a-zip"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := openContainer(zipPath, nil)
	if !errors.Is(err, ErrContainer) {
		t.Fatalf("openContainer() error = %v, want ErrContainer", err)
	}
}

func TestOpenContainer_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := openContainer(filepath.Join(t.TempDir(), "absent.zip"), nil)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("openContainer() error = %v, want ErrIO", err)
	}
}

func TestContainerReader_OpenEntry(t *testing.T) {
	t.Parallel()

	zipPath := filepath.Join(t.TempDir(), "c.zip")
	mustCreateZip(t, zipPath, []fixtureFile{
		{name: "stored.txt", data: []byte("stored bytes"), store: true},
		{name: "deflated.txt", data: bytes.Repeat([]byte("deflate me "), 100)},
	})

	c, err := openContainer(zipPath, nil)
	if err != nil {
		t.Fatalf("openContainer() error = %v", err)
	}
	defer func() { _ = c.close() }()

	for _, name := range []string{"stored.txt", "deflated.txt"} {
		rc, err := c.openEntry(context.Background(), name)
		if err != nil {
			t.Fatalf("openEntry(%q) error = %v", name, err)
		}
		got, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("ReadAll(%q) error = %v", name, err)
		}
		zf, _ := c.lookup(name)
		if uint64(len(got)) != zf.UncompressedSize64 {
			t.Errorf("entry %q drained %d bytes, want %d", name, len(got), zf.UncompressedSize64)
		}
	}
}

func TestContainerReader_OpenEntry_NotFound(t *testing.T) {
	t.Parallel()

	zipPath := filepath.Join(t.TempDir(), "c.zip")
	mustCreateZip(t, zipPath, []fixtureFile{{name: "present.txt", data: []byte("x")}})

	c, err := openContainer(zipPath, nil)
	if err != nil {
		t.Fatalf("openContainer() error = %v", err)
	}
	defer func() { _ = c.close() }()

	if _, err := c.openEntry(context.Background(), "absent.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("openEntry() error = %v, want ErrNotFound", err)
	}

	// Paths are case-sensitive.
	if _, err := c.openEntry(context.Background(), "Present.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("openEntry() error = %v, want ErrNotFound for case mismatch", err)
	}
}

func TestContainerReader_OpenEntry_CancelledContext(t *testing.T) {
	t.Parallel()

	zipPath := filepath.Join(t.TempDir(), "c.zip")
	mustCreateZip(t, zipPath, []fixtureFile{{name: "a.txt", data: []byte("x")}})

	c, err := openContainer(zipPath, nil)
	if err != nil {
		t.Fatalf("openContainer() error = %v", err)
	}
	defer func() { _ = c.close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.openEntry(ctx, "a.txt"); !errors.Is(err, context.Canceled) {
		t.Fatalf("openEntry() error = %v, want context.Canceled", err)
	}
}

func TestContainerReader_CloseIdempotent(t *testing.T) {
	t.Parallel()

	zipPath := filepath.Join(t.TempDir(), "c.zip")
	mustCreateZip(t, zipPath, []fixtureFile{{name: "a.txt", data: []byte("x")}})

	c, err := openContainer(zipPath, nil)
	if err != nil {
		t.Fatalf("openContainer() error = %v", err)
	}
	if err := c.close(); err != nil {
		t.Fatalf("close() error = %v", err)
	}
	if err := c.close(); err != nil {
		t.Fatalf("second close() error = %v, want nil", err)
	}
}
