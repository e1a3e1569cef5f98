// Package tabular holds the row iteration contract shared by the database
// and flat-file gateways, and the delimited-text encoder used for both
// persisted output files and streamed downloads.
package tabular

// RowIterator is a lazy, finite, non-restartable producer of rows.
//
// Usage mirrors database/sql.Rows:
//
//	for it.Next() {
//	    vals := it.Values()
//	}
//	if err := it.Err(); err != nil { ... }
//
// Values is only valid until the next call to Next. Close must always be
// called and is safe to call more than once.
type RowIterator interface {
	Columns() []string
	Next() bool
	Values() []any
	Err() error
	Close() error
}

// SliceRows is an in-memory RowIterator, mostly useful in tests and for
// already-materialized preview results.
type SliceRows struct {
	cols []string
	rows [][]any
	pos  int
}

// NewSliceRows wraps rows. It does not copy them.
func NewSliceRows(cols []string, rows [][]any) *SliceRows {
	return &SliceRows{cols: cols, rows: rows, pos: -1}
}

func (s *SliceRows) Columns() []string { return s.cols }

func (s *SliceRows) Next() bool {
	if s.pos+1 >= len(s.rows) {
		s.pos = len(s.rows)
		return false
	}
	s.pos++
	return true
}

func (s *SliceRows) Values() []any {
	if s.pos < 0 || s.pos >= len(s.rows) {
		return nil
	}
	return s.rows[s.pos]
}

func (s *SliceRows) Err() error   { return nil }
func (s *SliceRows) Close() error { return nil }

// Collect drains up to limit rows (all rows when limit <= 0) and closes it.
// Each collected row is copied, so iterators may reuse their buffers.
func Collect(it RowIterator, limit int) ([][]any, error) {
	defer it.Close()

	var out [][]any
	for (limit <= 0 || len(out) < limit) && it.Next() {
		vals := it.Values()
		row := make([]any, len(vals))
		copy(row, vals)
		out = append(out, row)
	}
	if err := it.Err(); err != nil {
		return out, err
	}
	return out, nil
}
