package flatfile

import (
	"context"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// decodeText strips a leading BOM (UTF-8 or UTF-16) and replaces invalid
// UTF-8 sequences with U+FFFD while streaming.
func decodeText(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// normalizeHeader trims and NFC-normalizes header names so that visually
// identical names compare equal.
func normalizeHeader(h []string) []string {
	out := make([]string, len(h))
	for i, name := range h {
		out[i] = norm.NFC.String(strings.TrimSpace(name))
	}
	return out
}

// countingReader tracks bytes read and stops once limit is exceeded or ctx
// ends.
type countingReader struct {
	ctx       context.Context
	reader    io.Reader
	limit     int64
	BytesRead int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.limit > 0 && r.BytesRead > r.limit {
		return n, errTooLarge
	}
	return n, err
}
