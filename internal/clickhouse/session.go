package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/JonMunkholm/chflat/internal/core"
	"github.com/JonMunkholm/chflat/internal/schema"
	"github.com/JonMunkholm/chflat/internal/tabular"
)

// Session is one verified connection. It is not safe for concurrent use.
type Session struct {
	db *sql.DB
}

// ListTables returns the tables of the session database in server order.
func (s *Session) ListTables(ctx context.Context) ([]string, error) {
	return s.firstColumn(ctx, "tables", "SHOW TABLES")
}

// ListColumns returns the column names of table.
func (s *Session) ListColumns(ctx context.Context, table string) ([]string, error) {
	info, err := s.describe(ctx, "columns", table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(info))
	for i, c := range info {
		names[i] = c.Name
	}
	return names, nil
}

// ColumnInfo is one row of DESCRIBE TABLE.
type ColumnInfo struct {
	Name string
	Type string
}

// Describe returns the name and declared type of every column of table.
func (s *Session) Describe(ctx context.Context, table string) ([]ColumnInfo, error) {
	return s.describe(ctx, "describe", table)
}

func (s *Session) describe(ctx context.Context, op, table string) ([]ColumnInfo, error) {
	q, err := buildDescribe(table)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	n, err := columnCount(rows)
	if err != nil {
		return nil, classify(op, err)
	}

	out := []ColumnInfo{}
	for rows.Next() {
		vals, err := scanRow(rows, n)
		if err != nil {
			return nil, classify(op, err)
		}
		info := ColumnInfo{Name: tabular.FormatValue(vals[0])}
		if n > 1 {
			info.Type = tabular.FormatValue(vals[1])
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// firstColumn runs a metadata query and keeps the first column of every row.
// SHOW TABLES and DESCRIBE TABLE return differing column sets across server
// versions, so rows are scanned generically.
func (s *Session) firstColumn(ctx context.Context, op, q string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	n, err := columnCount(rows)
	if err != nil {
		return nil, classify(op, err)
	}

	out := []string{}
	for rows.Next() {
		vals, err := scanRow(rows, n)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, tabular.FormatValue(vals[0]))
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// Select runs a query built from spec and returns a lazy iterator over it.
func (s *Session) Select(ctx context.Context, spec core.SelectSpec) (tabular.RowIterator, error) {
	const op = "select"
	q, err := buildSelect(spec)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(op, err)
	}
	n, err := columnCount(rows)
	if err != nil {
		rows.Close()
		return nil, classify(op, err)
	}
	return &rowIterator{rows: rows, cols: spec.Columns, vals: make([]any, n)}, nil
}

// CreateTable creates table when it does not exist yet.
func (s *Session) CreateTable(ctx context.Context, table string, sc schema.Schema) error {
	q, err := buildCreateTable(table, sc)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return classify("create table", err)
	}
	return nil
}

// InsertBatch writes rows in a single transaction: one prepared INSERT, one
// Exec per row, then commit. Nothing is written when any row fails.
func (s *Session) InsertBatch(ctx context.Context, table string, sc schema.Schema, rows [][]string) (err error) {
	const op = "insert"
	q, err := buildInsert(table, sc)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return classify(op, fmt.Errorf("prepare: %w", err))
	}
	defer stmt.Close()

	for i, row := range rows {
		vals, err := typecastRow(row, sc)
		if err != nil {
			return core.E(core.KindInvalidInput, op, fmt.Errorf("batch row %d: %w", i+1, err))
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			return classify(op, fmt.Errorf("batch row %d: %w", i+1, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Close releases the connection.
func (s *Session) Close() error {
	return s.db.Close()
}

func columnCount(rows *sql.Rows) (int, error) {
	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	return len(cols), nil
}

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	vals := make([]any, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, nil
}

// rowIterator adapts *sql.Rows to tabular.RowIterator.
type rowIterator struct {
	rows *sql.Rows
	cols []string
	vals []any
	err  error
	once sync.Once
}

func (it *rowIterator) Columns() []string { return it.cols }

func (it *rowIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	ptrs := make([]any, len(it.vals))
	for i := range it.vals {
		it.vals[i] = nil
		ptrs[i] = &it.vals[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		it.err = classify("select", err)
		return false
	}
	return true
}

func (it *rowIterator) Values() []any { return it.vals }

func (it *rowIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	if err := it.rows.Err(); err != nil {
		return classify("select", err)
	}
	return nil
}

func (it *rowIterator) Close() error {
	var err error
	it.once.Do(func() { err = it.rows.Close() })
	return err
}
