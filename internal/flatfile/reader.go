package flatfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/chflat/internal/core"
)

// recordReader yields raw records, header first.
type recordReader interface {
	Read() ([]string, error)
	Close() error
}

type csvRecords struct {
	file *os.File
	r    *csv.Reader
}

func (c *csvRecords) Read() ([]string, error) { return c.r.Read() }
func (c *csvRecords) Close() error            { return c.file.Close() }

type xlsxRecords struct {
	file *excelize.File
	rows *excelize.Rows
}

func (x *xlsxRecords) Read() ([]string, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return x.rows.Columns()
}

func (x *xlsxRecords) Close() error {
	rerr := x.rows.Close()
	if err := x.file.Close(); err != nil {
		return err
	}
	return rerr
}

// openRecords opens path with the reader ref's extension calls for.
func openRecords(op, path string, ref core.FileRef) (recordReader, error) {
	f, delim, err := detect(op, ref)
	if err != nil {
		return nil, err
	}

	if f == formatXLSX {
		book, err := excelize.OpenFile(path)
		if err != nil {
			return nil, openError(op, ref.Name, err)
		}
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			book.Close()
			return nil, core.Invalid(op, "empty file: %s has no sheets", ref.Name)
		}
		rows, err := book.Rows(sheets[0])
		if err != nil {
			book.Close()
			return nil, core.Invalid(op, "read %s: %v", ref.Name, err)
		}
		return &xlsxRecords{file: book, rows: rows}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, openError(op, ref.Name, err)
	}
	r := csv.NewReader(decodeText(file))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true
	return &csvRecords{file: file, r: r}, nil
}

func openError(op, name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return core.Errorf(core.KindNotFound, op, "file not found: %s", name)
	}
	return core.E(core.KindInternal, op, err)
}

// readHeader reads and normalizes the first record.
func readHeader(op, name string, src recordReader) ([]string, error) {
	rec, err := src.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.Invalid(op, "empty file: %s", name)
	}
	if err != nil {
		return nil, core.Invalid(op, "read header of %s: %v", name, err)
	}
	return normalizeHeader(rec), nil
}

// projection maps requested columns onto header positions. An empty
// request selects every column.
func projection(op string, header, columns []string) ([]string, []int, error) {
	if len(columns) == 0 {
		idx := make([]int, len(header))
		for i := range idx {
			idx[i] = i
		}
		return header, idx, nil
	}

	pos := make(map[string]int, len(header))
	for i := len(header) - 1; i >= 0; i-- {
		pos[header[i]] = i
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, ok := pos[c]
		if !ok {
			return nil, nil, core.Invalid(op, "unknown column %q", c)
		}
		idx[i] = j
	}
	return columns, idx, nil
}

// fileRows is a lazy RowIterator over a stored file.
type fileRows struct {
	ctx   context.Context
	src   recordReader
	cols  []string
	idx   []int
	limit int
	read  int
	vals  []any
	err   error
	done  bool
}

func (it *fileRows) Columns() []string { return it.cols }

func (it *fileRows) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if it.limit > 0 && it.read >= it.limit {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}

	rec, err := it.src.Read()
	if errors.Is(err, io.EOF) {
		it.done = true
		return false
	}
	if err != nil {
		it.err = fmt.Errorf("read row %d: %w", it.read+1, err)
		return false
	}

	for i, j := range it.idx {
		if j < len(rec) {
			it.vals[i] = rec[j]
		} else {
			it.vals[i] = ""
		}
	}
	it.read++
	return true
}

func (it *fileRows) Values() []any { return it.vals }
func (it *fileRows) Err() error    { return it.err }

func (it *fileRows) Close() error {
	if it.src == nil {
		return nil
	}
	err := it.src.Close()
	it.src = nil
	it.done = true
	return err
}
