package wacz

import (
	"context"
	"fmt"
)

// Capture is a lightweight handle over one capture descriptor, bound to
// the archive it came from.
type Capture struct {
	archive *Archive
	desc    CaptureDescriptor
}

// OpenCapture wraps a descriptor in a handle for response resolution. The
// descriptor is usually one returned by FindCaptures or GetCapture, but a
// caller-built descriptor works as long as its URL and Timestamp key a
// record in the resolved WARC.
func (a *Archive) OpenCapture(desc CaptureDescriptor) *Capture {
	return &Capture{archive: a, desc: desc}
}

// Descriptor returns the capture's descriptor.
func (c *Capture) Descriptor() CaptureDescriptor {
	return c.desc
}

// OpenResponse resolves the capture to its archived HTTP response: the
// WARC entry is drained (gunzipped when the path ends in .gz), framed into
// records, and the record keyed by the capture's URL and timestamp is
// parsed as an HTTP response.
//
// A descriptor without a WARC path falls back to archive/data.warc.gz.
// A capture whose key matches no record in the WARC, for example when the
// record's WARC-Date does not normalize to the indexed timestamp, returns
// ErrNotFound.
func (c *Capture) OpenResponse(ctx context.Context) (*Response, error) {
	warcPath := c.desc.WARCPath
	if warcPath == "" {
		warcPath = defaultWARCPath
	}

	pw, err := c.archive.loadWARC(ctx, warcPath)
	if err != nil {
		return nil, err
	}

	rec, ok := pw.byKey[c.desc.URL+"|"+c.desc.Timestamp]
	if !ok {
		return nil, fmt.Errorf("%w: no record for %s @ %s in %s", ErrNotFound, c.desc.URL, c.desc.Timestamp, warcPath)
	}

	c.archive.metrics.IncCaptureOpens()
	return parseHTTPResponse(rec.Payload), nil
}
