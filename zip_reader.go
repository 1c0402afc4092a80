package wacz

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"
)

// FileInfo describes one file entry inside the container.
// Derived from the ZIP central directory; immutable.
type FileInfo struct {
	Path string
	Size uint64
}

// containerReader owns the open ZIP handle and the entry index for one
// container. The central directory is parsed and every entry enumerated
// once at open; per-entry data streams are opened on demand.
//
// Supported entry compression methods are stored and deflate. Directory
// entries (names ending in "/") are skipped from listings and lookups.
type containerReader struct {
	f       *os.File
	zr      *zip.Reader
	entries map[string]*zip.File // entry path -> entry, directories excluded
	files   []FileInfo           // central-directory order
	closed  bool
}

// openContainer opens the ZIP at path and parses its central directory.
//
// Errors:
// - ErrIO when the file cannot be opened or stat'd
// - ErrContainer on bad magic or a truncated/corrupt central directory
func openContainer(path string, logger *slog.Logger) (*containerReader, error) {
	//nolint:gosec // G304: path is the caller-supplied container location
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open container: %w", ErrIO, err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat container: %w", ErrIO, err)
	}

	zr, err := zip.NewReader(f, st.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: read central directory: %w", ErrContainer, err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	c := &containerReader{
		f:       f,
		zr:      zr,
		entries: make(map[string]*zip.File, len(zr.File)),
	}
	for _, zf := range zr.File {
		if strings.HasSuffix(zf.Name, "/") {
			continue
		}
		if _, ok := c.entries[zf.Name]; ok {
			// Duplicate entry names: first one wins, matching lookup order.
			continue
		}
		c.entries[zf.Name] = zf
		c.files = append(c.files, FileInfo{Path: zf.Name, Size: zf.UncompressedSize64})
	}

	if logger != nil {
		logger.Debug("container opened", "path", path, "entries", len(c.files))
	}

	return c, nil
}

// fileInfos returns the entry listing in central-directory order.
// The returned slice is shared; callers must not modify it.
func (c *containerReader) fileInfos() []FileInfo {
	return c.files
}

// lookup returns the ZIP entry for the given path, or false if absent.
// Paths are case-sensitive.
func (c *containerReader) lookup(path string) (*zip.File, bool) {
	zf, ok := c.entries[path]
	return zf, ok
}

// openEntry opens a read stream yielding the uncompressed bytes of one entry.
//
// Errors:
// - ErrNotFound when no entry has the given path
// - ErrContainer when the entry's local header or compressed data is unusable
func (c *containerReader) openEntry(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	zf, ok := c.lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: entry %q", ErrNotFound, path)
	}

	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open entry %q: %w", ErrContainer, path, err)
	}

	return &ctxReadCloser{ctx: ctx, rc: rc}, nil
}

// close releases the file handle; idempotent.
func (c *containerReader) close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.f.Close(); err != nil {
		return fmt.Errorf("%w: close container: %w", ErrIO, err)
	}
	return nil
}

// ctxReadCloser aborts an in-flight entry read when the context is cancelled.
// The context is checked between Read calls; a cancelled context surfaces
// ctx.Err() on the next Read.
type ctxReadCloser struct {
	ctx context.Context
	rc  io.ReadCloser
}

func (r *ctxReadCloser) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	//nolint:wrapcheck // io.Reader.Read is a low-level interface method, pass-through
	return r.rc.Read(p)
}

func (r *ctxReadCloser) Close() error {
	//nolint:wrapcheck // io.Closer.Close is a low-level interface method, pass-through
	return r.rc.Close()
}

var _ io.ReadCloser = (*ctxReadCloser)(nil)
