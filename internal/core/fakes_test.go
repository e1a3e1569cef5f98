package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/JonMunkholm/chflat/internal/schema"
	"github.com/JonMunkholm/chflat/internal/tabular"
)

// fakeWarehouse hands out a single shared in-memory session.
type fakeWarehouse struct {
	mu      sync.Mutex
	dials   int
	dialErr error
	sess    *fakeSession
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{sess: newFakeSession()}
}

func (w *fakeWarehouse) Dial(_ context.Context, _ ConnectionParams) (WarehouseSession, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dials++
	if w.dialErr != nil {
		return nil, w.dialErr
	}
	return w.sess, nil
}

type fakeSession struct {
	mu       sync.Mutex
	schemas  map[string]schema.Schema
	rows     map[string][][]string
	batches  []int
	failOn   int // 1-based batch number that fails, 0 never
	lastSpec SelectSpec
	closed   int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		schemas: make(map[string]schema.Schema),
		rows:    make(map[string][][]string),
	}
}

func (s *fakeSession) ListTables(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for t := range s.schemas {
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeSession) ListColumns(_ context.Context, table string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schemas[table]
	if !ok {
		return nil, Errorf(KindNotFound, "columns", "table not found: %s", table)
	}
	return sc.Names(), nil
}

func (s *fakeSession) Select(_ context.Context, spec SelectSpec) (tabular.RowIterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSpec = spec

	table := spec.Tables[0]
	sc, ok := s.schemas[table]
	if !ok {
		return nil, Errorf(KindNotFound, "select", "table not found: %s", table)
	}
	idx := make([]int, len(spec.Columns))
	for i, c := range spec.Columns {
		idx[i] = -1
		for j, name := range sc.Names() {
			if name == c {
				idx[i] = j
			}
		}
		if idx[i] < 0 {
			return nil, fmt.Errorf("unknown column %s", c)
		}
	}

	var out [][]any
	for _, row := range s.rows[table] {
		vals := make([]any, len(idx))
		for i, j := range idx {
			vals[i] = row[j]
		}
		out = append(out, vals)
	}
	return tabular.NewSliceRows(spec.Columns, out), nil
}

func (s *fakeSession) CreateTable(_ context.Context, table string, sc schema.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schemas[table]; !ok {
		s.schemas[table] = sc
	}
	return nil
}

func (s *fakeSession) InsertBatch(ctx context.Context, table string, _ schema.Schema, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failOn == len(s.batches)+1 {
		return errors.New("connection reset by peer")
	}
	s.batches = append(s.batches, len(rows))
	s.rows[table] = append(s.rows[table], rows...)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// memFiles is an in-memory FileStore for comma-delimited text.
type memFiles struct {
	mu     sync.Mutex
	files  map[string][][]string // header is the first record
	opened []FileRef
}

func newMemFiles() *memFiles {
	return &memFiles{files: make(map[string][][]string)}
}

func (m *memFiles) put(name string, records [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = records
}

func (m *memFiles) get(name string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs, ok := m.files[name]
	if !ok {
		return nil, Errorf(KindNotFound, "open", "file not found: %s", name)
	}
	return recs, nil
}

func (m *memFiles) Save(_ context.Context, name string, r io.Reader) (StoredFile, error) {
	recs, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return StoredFile{}, err
	}
	m.put(name, recs)
	return StoredFile{Name: name, Path: "mem/" + name}, nil
}

func (m *memFiles) Columns(_ context.Context, ref FileRef) ([]string, error) {
	recs, err := m.get(ref.Name)
	if err != nil {
		return nil, err
	}
	return recs[0], nil
}

func (m *memFiles) project(ref FileRef, columns []string) ([]string, [][]string, error) {
	recs, err := m.get(ref.Name)
	if err != nil {
		return nil, nil, err
	}
	header := recs[0]
	if len(columns) == 0 {
		columns = header
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = -1
		for j, h := range header {
			if h == c {
				idx[i] = j
			}
		}
		if idx[i] < 0 {
			return nil, nil, Invalid("open", "unknown column %q", c)
		}
	}
	var out [][]string
	for _, rec := range recs[1:] {
		row := make([]string, len(idx))
		for i, j := range idx {
			row[i] = rec[j]
		}
		out = append(out, row)
	}
	return columns, out, nil
}

func (m *memFiles) InferSchema(_ context.Context, ref FileRef, columns []string) (schema.Schema, error) {
	cols, rows, err := m.project(ref, columns)
	if err != nil {
		return nil, err
	}
	inf := schema.NewInferrer(cols, false)
	for _, r := range rows {
		inf.Observe(r)
	}
	return inf.Schema(), nil
}

func (m *memFiles) Open(_ context.Context, ref FileRef, columns []string, limit int) (tabular.RowIterator, error) {
	m.mu.Lock()
	m.opened = append(m.opened, ref)
	m.mu.Unlock()

	cols, rows, err := m.project(ref, columns)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = make([]any, len(r))
		for j, v := range r {
			vals[i][j] = v
		}
	}
	return tabular.NewSliceRows(cols, vals), nil
}

func (m *memFiles) WriteRows(_ context.Context, out FileRef, columns []string, rows tabular.RowIterator) (int64, error) {
	all, err := tabular.Collect(rows, 0)
	if err != nil {
		return 0, err
	}
	recs := [][]string{columns}
	for _, r := range all {
		recs = append(recs, tabular.FormatRow(nil, r))
	}
	m.put(out.Name, recs)
	return int64(len(all)), nil
}

// memJournal records entries in memory.
type memJournal struct {
	mu   sync.Mutex
	recs []TransferRecord
	err  error
}

func (j *memJournal) Record(_ context.Context, rec TransferRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.recs = append(j.recs, rec)
	return nil
}

func (j *memJournal) Recent(_ context.Context, limit int) ([]TransferRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []TransferRecord
	for i := len(j.recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.recs[i])
	}
	return out, nil
}

func (j *memJournal) last() TransferRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.recs[len(j.recs)-1]
}
