package wacz

import "errors"

// ErrContainer indicates the container itself is unusable: corrupt or
// truncated ZIP structure, a failed inflate, a WARC that cannot be framed,
// or a missing index file.
var ErrContainer = errors.New("container malformed")

// ErrNotFound indicates the requested entry path or capture does not exist.
var ErrNotFound = errors.New("not found")

// ErrIO indicates an underlying I/O failure while reading the container.
var ErrIO = errors.New("i/o failure")

// ErrDecode indicates a text decoding failure for a non-UTF-8 encoding.
var ErrDecode = errors.New("text decode failure")

// ErrParse indicates a JSON parse failure.
var ErrParse = errors.New("parse failure")

// ErrUsage indicates a required option was missing or invalid.
var ErrUsage = errors.New("invalid usage")

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("archive is closed")
