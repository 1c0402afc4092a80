// Package wacz provides read-only access to Web Archive Collection Zipped
// (WACZ) containers: file listing and search, capture lookup through the
// container's CDX/CDXJ index, and resolution of a capture to its archived
// HTTP response.
package wacz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/encoding/ianaindex"
)

// IndexPreference selects which index file the archive loads.
type IndexPreference string

const (
	// IndexCDXJ tries indexes/index.cdxj, then falls back to
	// indexes/index.cdx when the CDXJ file is absent. Default.
	IndexCDXJ IndexPreference = "cdxj"
	// IndexCDX loads only indexes/index.cdx.
	IndexCDX IndexPreference = "cdx"
	// IndexNone behaves as IndexCDX; the library requires at least one
	// index file and does not fall back to scanning WARCs.
	IndexNone IndexPreference = "none"
)

const (
	cdxjIndexPath = "indexes/index.cdxj"
	cdxIndexPath  = "indexes/index.cdx"

	// defaultWARCPath is the last-resort WARC entry for descriptors that
	// carry no path, e.g. synthetic descriptors built by callers. Index
	// rows with a filename always resolve their own path.
	defaultWARCPath = "archive/data.warc.gz"

	defaultWARCCacheBytes = 256 << 20
)

// Archive is a handle bound to one WACZ container. It owns the open ZIP
// handle, the lazily loaded capture index, and a bounded cache of parsed
// WARC entries.
//
// An Archive is designed for single-task cooperative use: one logical
// operation at a time. Internal state is guarded so that accidental
// concurrent use does not corrupt the caches, but concurrent entry streams
// on one handle are not supported; open a second Archive for parallelism.
type Archive struct {
	path      string
	container *containerReader
	logger    *slog.Logger
	metrics   *Metrics
	prefer    IndexPreference

	mu             sync.Mutex
	closed         bool
	captures       []CaptureDescriptor
	capturesLoaded bool
	cache          *warcCache

	// group deduplicates concurrent index loads and per-entry WARC parses.
	group singleflight.Group
}

type settings struct {
	prefer         IndexPreference
	logger         *slog.Logger
	metrics        *Metrics
	warcCacheBytes int64
}

// Option configures an Archive at Open.
type Option func(*settings) error

// WithPreferIndex sets the index loading policy. Default IndexCDXJ.
func WithPreferIndex(pref IndexPreference) Option {
	return func(s *settings) error {
		switch pref {
		case IndexCDXJ, IndexCDX, IndexNone:
			s.prefer = pref
			return nil
		default:
			return fmt.Errorf("%w: unknown index preference %q", ErrUsage, pref)
		}
	}
}

// WithLogger attaches a logger for debug tracing of index and WARC loads.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) error {
		s.metrics = m
		return nil
	}
}

// WithWARCCacheBytes bounds the parsed-WARC cache. Values <= 0 disable
// caching, so every capture open re-drains and re-frames its WARC entry.
// Default 256 MiB.
func WithWARCCacheBytes(n int64) Option {
	return func(s *settings) error {
		s.warcCacheBytes = n
		return nil
	}
}

// Open opens the WACZ container at path. The ZIP central directory is
// parsed eagerly, so a corrupt or truncated container fails here rather
// than on first use; the capture index and WARC entries load lazily.
func Open(ctx context.Context, path string, opts ...Option) (*Archive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := settings{
		prefer:         IndexCDXJ,
		warcCacheBytes: defaultWARCCacheBytes,
	}
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return nil, err
		}
	}

	container, err := openContainer(path, s.logger)
	if err != nil {
		return nil, err
	}

	return &Archive{
		path:      path,
		container: container,
		logger:    s.logger,
		metrics:   s.metrics,
		prefer:    s.prefer,
		cache:     newWARCCache(s.warcCacheBytes, s.metrics),
	}, nil
}

// Close releases the container's file handle and clears the caches.
// Idempotent. Byte slices previously handed out (response bodies, cached
// record payloads) must not be read after Close.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.captures = nil
	a.capturesLoaded = false
	a.cache.clear()
	return a.container.close()
}

func (a *Archive) checkOpen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	return nil
}

// ListFiles returns a snapshot of the container's file entries in
// central-directory order. Directory entries are excluded.
func (a *Archive) ListFiles() ([]FileInfo, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	files := a.container.fileInfos()
	out := make([]FileInfo, len(files))
	copy(out, files)
	return out, nil
}

// SearchFiles returns the entries whose path matches m, in listing order.
// Plain-string matchers match by substring containment.
func (a *Archive) SearchFiles(m *Matcher) ([]FileInfo, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	var out []FileInfo
	for _, fi := range a.container.fileInfos() {
		if m.matchPath(fi.Path) {
			out = append(out, fi)
		}
	}
	return out, nil
}

// HasFile reports whether any entry path matches m.
func (a *Archive) HasFile(m *Matcher) (bool, error) {
	if err := a.checkOpen(); err != nil {
		return false, err
	}
	for _, fi := range a.container.fileInfos() {
		if m.matchPath(fi.Path) {
			return true, nil
		}
	}
	return false, nil
}

// GetFile returns the entry with exactly the given path.
func (a *Archive) GetFile(path string) (FileInfo, error) {
	if err := a.checkOpen(); err != nil {
		return FileInfo{}, err
	}
	zf, ok := a.container.lookup(path)
	if !ok {
		return FileInfo{}, fmt.Errorf("%w: entry %q", ErrNotFound, path)
	}
	return FileInfo{Path: zf.Name, Size: zf.UncompressedSize64}, nil
}

// StreamFile opens a stream over the uncompressed bytes of one entry.
// The caller owns the returned ReadCloser and must close it before the
// archive is closed.
func (a *Archive) StreamFile(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	return a.container.openEntry(ctx, path)
}

// readEntry drains one entry into memory.
func (a *Archive) readEntry(ctx context.Context, path string) ([]byte, error) {
	rc, err := a.StreamFile(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, classifyReadError(path, err)
	}
	return data, nil
}

// classifyReadError maps an entry-stream read failure onto the library's
// error kinds: decompression corruption is a container fault, cancellation
// passes through, anything else is I/O.
func classifyReadError(path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var corrupt flate.CorruptInputError
	if errors.As(err, &corrupt) ||
		errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, gzip.ErrChecksum) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: entry %q: %w", ErrContainer, path, err)
	}
	return fmt.Errorf("%w: entry %q: %w", ErrIO, path, err)
}

// GetText reads an entry and decodes it as text. An empty encoding name
// means UTF-8; UTF-8 input is passed through byte-for-byte. Other names
// resolve through the IANA registry.
func (a *Archive) GetText(ctx context.Context, path, encoding string) (string, error) {
	data, err := a.readEntry(ctx, path)
	if err != nil {
		return "", err
	}

	name := strings.ToLower(encoding)
	if name == "" || name == "utf-8" || name == "utf8" {
		return string(data), nil
	}

	enc, err := ianaindex.IANA.Encoding(encoding)
	if err != nil || enc == nil {
		return "", fmt.Errorf("%w: unknown encoding %q", ErrDecode, encoding)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: decode %q as %q: %w", ErrDecode, path, encoding, err)
	}
	return string(decoded), nil
}

// GetJSON reads an entry as UTF-8 text and unmarshals it into v.
func (a *Archive) GetJSON(ctx context.Context, path string, v any) error {
	text, err := a.GetText(ctx, path, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: entry %q: %w", ErrParse, path, err)
	}
	return nil
}

// loadCaptures returns the memoized capture index, loading it on first
// use. Concurrent callers share one load via singleflight; a failed or
// cancelled load publishes nothing, so the next call retries.
func (a *Archive) loadCaptures(ctx context.Context) ([]CaptureDescriptor, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	if a.capturesLoaded {
		captures := a.captures
		a.mu.Unlock()
		return captures, nil
	}
	a.mu.Unlock()

	v, err, _ := a.group.Do("cdx-index", func() (interface{}, error) {
		// Re-check under the lock; another caller may have completed.
		a.mu.Lock()
		if a.capturesLoaded {
			captures := a.captures
			a.mu.Unlock()
			return captures, nil
		}
		a.mu.Unlock()

		start := time.Now()
		text, indexPath, err := a.readIndexText(ctx)
		if err != nil {
			return nil, err
		}

		captures := parseCDX(text, a.logger)
		a.metrics.ObserveIndexLoad(len(captures), time.Since(start))
		if a.logger != nil {
			a.logger.Debug("capture index loaded", "index", indexPath, "captures", len(captures))
		}

		a.mu.Lock()
		if !a.closed {
			a.captures = captures
			a.capturesLoaded = true
		}
		a.mu.Unlock()
		return captures, nil
	})
	if err != nil {
		return nil, err
	}

	captures, ok := v.([]CaptureDescriptor)
	if !ok {
		return nil, errors.New("capture index: unexpected singleflight result type")
	}
	return captures, nil
}

// readIndexText locates and drains the index entry per the archive's
// preference. A present-but-unreadable index propagates its error; the
// CDXJ -> CDX fallback fires only when the CDXJ entry is absent.
func (a *Archive) readIndexText(ctx context.Context) (string, string, error) {
	var candidates []string
	switch a.prefer {
	case IndexCDXJ:
		candidates = []string{cdxjIndexPath, cdxIndexPath}
	default:
		candidates = []string{cdxIndexPath}
	}

	for _, path := range candidates {
		if _, ok := a.container.lookup(path); !ok {
			continue
		}
		data, err := a.readEntry(ctx, path)
		if err != nil {
			return "", "", err
		}
		return string(data), path, nil
	}

	return "", "", fmt.Errorf("%w: no index file (looked for %s)", ErrContainer, strings.Join(candidates, ", "))
}

// FindCaptures returns the captures matching url and opts, in index order.
// Plain-string matchers match capture URLs by exact equality.
func (a *Archive) FindCaptures(ctx context.Context, url *Matcher, opts FindOptions) ([]CaptureDescriptor, error) {
	var out []CaptureDescriptor
	for c, err := range a.IterateCaptures(ctx, url, opts) {
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// IterateCaptures lazily yields the captures matching url and opts, in
// index order. The first yield carries any index loading error. When
// opts.Limit is set, iteration stops after that many matches.
func (a *Archive) IterateCaptures(ctx context.Context, url *Matcher, opts FindOptions) iter.Seq2[CaptureDescriptor, error] {
	return func(yield func(CaptureDescriptor, error) bool) {
		captures, err := a.loadCaptures(ctx)
		if err != nil {
			yield(CaptureDescriptor{}, err)
			return
		}
		a.metrics.IncCaptureQueries()

		matched := 0
		for _, c := range captures {
			if !url.matchURL(c.URL) || !opts.matches(c) {
				continue
			}
			if !yield(c, nil) {
				return
			}
			matched++
			if opts.Limit > 0 && matched >= opts.Limit {
				return
			}
		}
	}
}

// GetCapture resolves url to the capture nearest opts.At under
// opts.Strategy. The candidate set is computed with every find filter
// reset, so captures outside any earlier time window still qualify.
// Returns (nil, nil) when no capture survives the strategy filter.
func (a *Archive) GetCapture(ctx context.Context, url *Matcher, opts CaptureOptions) (*CaptureDescriptor, error) {
	if opts.At.IsZero() {
		return nil, fmt.Errorf("%w: GetCapture requires At", ErrUsage)
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyClosest
	}
	switch strategy {
	case StrategyClosest, StrategyBefore, StrategyAfter:
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrUsage, strategy)
	}

	candidates, err := a.FindCaptures(ctx, url, FindOptions{})
	if err != nil {
		return nil, err
	}

	best := nearestCapture(candidates, opts.At, strategy)
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

// loadWARC returns the parsed form of one WARC entry, draining, inflating
// and framing it on first touch. Parses are cached under a byte budget and
// deduplicated per entry path.
func (a *Archive) loadWARC(ctx context.Context, entryPath string) (*parsedWARC, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	if pw, ok := a.cache.get(entryPath); ok {
		a.mu.Unlock()
		return pw, nil
	}
	a.mu.Unlock()

	v, err, _ := a.group.Do("warc:"+entryPath, func() (interface{}, error) {
		a.mu.Lock()
		if pw, ok := a.cache.get(entryPath); ok {
			a.mu.Unlock()
			return pw, nil
		}
		a.mu.Unlock()

		start := time.Now()
		buf, err := a.readWARCEntry(ctx, entryPath)
		if err != nil {
			return nil, err
		}

		pw := parseWARC(buf)
		a.metrics.ObserveWARCParse(time.Since(start))
		if a.logger != nil {
			a.logger.Debug("warc parsed", "entry", entryPath, "records", len(pw.records), "bytes", pw.size)
		}

		a.mu.Lock()
		if !a.closed {
			a.cache.put(entryPath, pw)
		}
		a.mu.Unlock()
		return pw, nil
	})
	if err != nil {
		return nil, err
	}

	pw, ok := v.(*parsedWARC)
	if !ok {
		return nil, errors.New("warc cache: unexpected singleflight result type")
	}
	return pw, nil
}

// readWARCEntry drains one WARC entry, gunzipping entries named *.gz.
func (a *Archive) readWARCEntry(ctx context.Context, entryPath string) ([]byte, error) {
	rc, err := a.StreamFile(ctx, entryPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var src io.Reader = rc
	if strings.HasSuffix(entryPath, ".gz") {
		gz, err := gzip.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: gunzip %q: %w", ErrContainer, entryPath, err)
		}
		defer func() { _ = gz.Close() }()
		// A gzip member may be followed by further members; Multistream is
		// the default, so the whole entry inflates in one drain.
		src = gz
	}

	buf, err := io.ReadAll(src)
	if err != nil {
		return nil, classifyReadError(entryPath, err)
	}
	return buf, nil
}
