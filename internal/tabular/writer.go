package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrInvalidDelimiter is returned for delimiters encoding/csv cannot use.
var ErrInvalidDelimiter = errors.New("invalid delimiter")

// Writer encodes rows as delimited UTF-8 text. Nothing reaches the
// underlying writer until the first row (or header) is written.
type Writer struct {
	csv    *csv.Writer
	bom    *transform.Writer
	record []string
	rows   int64
}

// NewWriter returns a Writer using delim as the field separator. When
// withBOM is set, output starts with a UTF-8 byte order mark.
func NewWriter(w io.Writer, delim rune, withBOM bool) (*Writer, error) {
	if !ValidDelimiter(delim) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDelimiter, delim)
	}

	out := &Writer{}
	if withBOM {
		out.bom = transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
		w = out.bom
	}
	out.csv = csv.NewWriter(w)
	out.csv.Comma = delim
	return out, nil
}

// ValidDelimiter reports whether r can separate fields.
func ValidDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError
}

// WriteHeader writes the column names.
func (w *Writer) WriteHeader(cols []string) error {
	return w.csv.Write(cols)
}

// WriteRow formats and writes one row.
func (w *Writer) WriteRow(vals []any) error {
	w.record = FormatRow(w.record, vals)
	if err := w.csv.Write(w.record); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows returns the number of data rows written.
func (w *Writer) Rows() int64 { return w.rows }

// Close flushes buffered output. It does not close the underlying writer.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	if w.bom != nil {
		return w.bom.Close()
	}
	return nil
}

// Copy writes a header of cols followed by every row from it, then flushes.
// The iterator is always closed.
func Copy(w *Writer, cols []string, it RowIterator) (int64, error) {
	defer it.Close()

	if err := w.WriteHeader(cols); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for it.Next() {
		if err := w.WriteRow(it.Values()); err != nil {
			return w.rows, fmt.Errorf("write row %d: %w", w.rows+1, err)
		}
	}
	if err := it.Err(); err != nil {
		return w.rows, err
	}
	if err := w.Close(); err != nil {
		return w.rows, fmt.Errorf("flush: %w", err)
	}
	return w.rows, nil
}
