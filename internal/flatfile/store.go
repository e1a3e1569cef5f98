// Package flatfile stores uploaded files under a single root directory and
// reads and writes them as tabular data. It implements core.FileStore.
//
// Supported inputs are delimited text (.csv, .txt, .tsv) and .xlsx
// workbooks, of which only the first sheet is read. Output is always
// delimited text.
package flatfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JonMunkholm/chflat/internal/core"
	"github.com/JonMunkholm/chflat/internal/identifier"
	"github.com/JonMunkholm/chflat/internal/schema"
	"github.com/JonMunkholm/chflat/internal/tabular"
)

// DefaultRoot is the storage root used when none is configured.
const DefaultRoot = "Uploads"

var errTooLarge = errors.New("file too large")

// Config configures a Store.
type Config struct {
	Root             string
	MaxFileSize      int64 // bytes, 0 means unlimited
	DetectTimestamps bool
}

// Store reads and writes files under one root directory. Names are
// validated before they are joined onto the root.
type Store struct {
	root             string
	maxSize          int64
	detectTimestamps bool
}

// NewStore creates a Store. The root directory is created lazily.
func NewStore(cfg Config) *Store {
	if cfg.Root == "" {
		cfg.Root = DefaultRoot
	}
	return &Store{root: cfg.Root, maxSize: cfg.MaxFileSize, detectTimestamps: cfg.DetectTimestamps}
}

// Root returns the storage directory.
func (s *Store) Root() string { return s.root }

func (s *Store) path(op, name string) (string, string, error) {
	clean, err := identifier.Filename(name)
	if err != nil {
		return "", "", core.E(core.KindInvalidInput, op, err)
	}
	return clean, filepath.Join(s.root, clean), nil
}

// Save copies r into the root under name. An existing file with the same
// name is replaced once the copy completes.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) (core.StoredFile, error) {
	const op = "upload"
	clean, target, err := s.path(op, name)
	if err != nil {
		return core.StoredFile{}, err
	}

	cr := &countingReader{ctx: ctx, reader: r, limit: s.maxSize}
	if err := s.writeAtomic(op, target, func(w io.Writer) error {
		_, err := io.Copy(w, cr)
		return err
	}); err != nil {
		if errors.Is(err, errTooLarge) {
			return core.StoredFile{}, core.Invalid(op, "file too large: limit is %d bytes", s.maxSize)
		}
		return core.StoredFile{}, err
	}

	return core.StoredFile{Name: clean, Path: target, Size: cr.BytesRead}, nil
}

// Columns returns the normalized header of ref.
func (s *Store) Columns(ctx context.Context, ref core.FileRef) ([]string, error) {
	const op = "columns"
	_, path, err := s.path(op, ref.Name)
	if err != nil {
		return nil, err
	}
	src, err := openRecords(op, path, ref)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return readHeader(op, ref.Name, src)
}

// Open returns a lazy iterator over columns of ref (all columns when none
// are given), stopping after limit rows when limit > 0.
func (s *Store) Open(ctx context.Context, ref core.FileRef, columns []string, limit int) (tabular.RowIterator, error) {
	return s.open(ctx, "open", ref, columns, limit)
}

func (s *Store) open(ctx context.Context, op string, ref core.FileRef, columns []string, limit int) (*fileRows, error) {
	_, path, err := s.path(op, ref.Name)
	if err != nil {
		return nil, err
	}
	src, err := openRecords(op, path, ref)
	if err != nil {
		return nil, err
	}

	header, err := readHeader(op, ref.Name, src)
	if err != nil {
		src.Close()
		return nil, err
	}
	cols, idx, err := projection(op, header, columns)
	if err != nil {
		src.Close()
		return nil, err
	}

	return &fileRows{
		ctx:   ctx,
		src:   src,
		cols:  cols,
		idx:   idx,
		limit: limit,
		vals:  make([]any, len(cols)),
	}, nil
}

// InferSchema types every requested column from all of its values.
func (s *Store) InferSchema(ctx context.Context, ref core.FileRef, columns []string) (schema.Schema, error) {
	const op = "infer schema"
	it, err := s.open(ctx, op, ref, columns, 0)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	inf := schema.NewInferrer(it.Columns(), s.detectTimestamps)
	var rec []string
	for it.Next() {
		rec = tabular.FormatRow(rec, it.Values())
		inf.Observe(rec)
	}
	if err := it.Err(); err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}
	return inf.Schema(), nil
}

// WriteRows writes a header and every row of rows to out. The file only
// appears under its final name once all rows are written.
func (s *Store) WriteRows(ctx context.Context, out core.FileRef, columns []string, rows tabular.RowIterator) (int64, error) {
	const op = "write"
	_, target, err := s.path(op, out.Name)
	if err != nil {
		return 0, err
	}
	delim, err := outputDelimiter(op, out)
	if err != nil {
		return 0, err
	}

	var n int64
	err = s.writeAtomic(op, target, func(w io.Writer) error {
		tw, err := tabular.NewWriter(w, delim, false)
		if err != nil {
			return core.E(core.KindInvalidInput, op, err)
		}
		n, err = tabular.Copy(tw, columns, rows)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// writeAtomic writes through a temporary file in the root and renames it
// over target on success.
func (s *Store) writeAtomic(op, target string, write func(io.Writer) error) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return core.E(core.KindInternal, op, fmt.Errorf("create storage root: %w", err))
	}

	tmp, err := os.CreateTemp(s.root, "."+uuid.NewString()+"-*.tmp")
	if err != nil {
		return core.E(core.KindInternal, op, fmt.Errorf("create temp file: %w", err))
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		if core.KindOf(err) != core.KindInternal || errors.Is(err, errTooLarge) {
			return err
		}
		return core.E(core.KindInternal, op, err)
	}
	if err := tmp.Close(); err != nil {
		return core.E(core.KindInternal, op, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return core.E(core.KindInternal, op, fmt.Errorf("rename: %w", err))
	}
	return nil
}
