package wacz

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// CaptureDescriptor is one capture row parsed from a CDX/CDXJ index.
//
// URL and Timestamp are always non-empty; rows missing either are skipped
// at parse time. Status is 0 when the index carries none. Offset and
// Length describe the byte span within the uncompressed WARC and are
// informational; the resolution path looks records up by key instead.
type CaptureDescriptor struct {
	URL       string
	Timestamp string // normalized; see normalizeTimestamp
	Status    int
	MIME      string
	Digest    string
	WARCPath  string // path of the WARC entry inside the container
	Offset    int64
	Length    int64
}

// cdxRow is the JSON object carried on each CDXJ line. Unknown keys are
// ignored.
type cdxRow struct {
	URL      string `json:"url"`
	Status   int    `json:"status"`
	MIME     string `json:"mime"`
	Digest   string `json:"digest"`
	Filename string `json:"filename"`
	Offset   int64  `json:"offset"`
	Length   int64  `json:"length"`
}

// parseCDX parses the decoded text of a CDX/CDXJ index file into capture
// descriptors, preserving line order.
//
// Each non-empty line is "<searchable-key> SP <timestamp> SP <json>", where
// the JSON part is everything after the second space. Lines with fewer than
// three fields, lines whose JSON does not parse, and lines without a url are
// skipped silently; real-world indexes carry such rows and queries should
// survive them.
func parseCDX(text string, logger *slog.Logger) []CaptureDescriptor {
	var captures []CaptureDescriptor
	skipped := 0

	for line := range strings.Lines(text) {
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		parts := strings.Split(line, " ")
		if len(parts) < 3 {
			skipped++
			continue
		}

		var row cdxRow
		if err := json.Unmarshal([]byte(strings.Join(parts[2:], " ")), &row); err != nil {
			skipped++
			continue
		}

		ts := normalizeTimestamp(parts[1])
		if row.URL == "" || ts == "" {
			skipped++
			continue
		}

		desc := CaptureDescriptor{
			URL:       row.URL,
			Timestamp: ts,
			Status:    row.Status,
			MIME:      row.MIME,
			Digest:    row.Digest,
			Offset:    row.Offset,
			Length:    row.Length,
		}
		if row.Filename != "" {
			desc.WARCPath = "archive/" + row.Filename
		}
		captures = append(captures, desc)
	}

	if logger != nil {
		logger.Debug("index parsed", "captures", len(captures), "skipped_lines", skipped)
	}

	return captures
}

// normalizeTimestamp rewrites a 17-digit CDX timestamp (YYYYMMDDhhmmssSSS)
// to ISO-8601 "YYYY-MM-DDThh:mm:ss.SSSZ". Any other value passes through
// verbatim. The normalized string is also used in WARC lookup keys, so a
// record's WARC-Date must normalize to the same string as its index row.
func normalizeTimestamp(ts string) string {
	if len(ts) != 17 {
		return ts
	}
	for i := 0; i < len(ts); i++ {
		if ts[i] < '0' || ts[i] > '9' {
			return ts
		}
	}
	var b strings.Builder
	b.Grow(24)
	b.WriteString(ts[0:4])
	b.WriteByte('-')
	b.WriteString(ts[4:6])
	b.WriteByte('-')
	b.WriteString(ts[6:8])
	b.WriteByte('T')
	b.WriteString(ts[8:10])
	b.WriteByte(':')
	b.WriteString(ts[10:12])
	b.WriteByte(':')
	b.WriteString(ts[12:14])
	b.WriteByte('.')
	b.WriteString(ts[14:17])
	b.WriteByte('Z')
	return b.String()
}

// captureTime parses a normalized capture timestamp. RFC 3339 with or
// without fractional seconds is accepted; anything else (for example a
// 14-digit classic CDX timestamp left verbatim by normalization) reports
// false and is excluded by temporal filters.
func captureTime(ts string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
