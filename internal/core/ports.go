package core

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/JonMunkholm/chflat/internal/schema"
	"github.com/JonMunkholm/chflat/internal/tabular"
)

// Warehouse opens per-request sessions against the analytical database.
type Warehouse interface {
	Dial(ctx context.Context, p ConnectionParams) (WarehouseSession, error)
}

// WarehouseSession is one authenticated connection. It is not safe for
// concurrent use and must be closed by the caller.
type WarehouseSession interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, table string) ([]string, error)
	Select(ctx context.Context, spec SelectSpec) (tabular.RowIterator, error)
	CreateTable(ctx context.Context, table string, s schema.Schema) error
	InsertBatch(ctx context.Context, table string, s schema.Schema, rows [][]string) error
	Close() error
}

// StoredFile describes a file persisted under the storage root.
type StoredFile struct {
	Name string
	Path string
	Size int64
}

// FileStore is the flat-file side of a transfer. Every name it accepts has
// already passed identifier.Filename.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (StoredFile, error)
	Columns(ctx context.Context, ref FileRef) ([]string, error)
	InferSchema(ctx context.Context, ref FileRef, columns []string) (schema.Schema, error)
	Open(ctx context.Context, ref FileRef, columns []string, limit int) (tabular.RowIterator, error)
	WriteRows(ctx context.Context, out FileRef, columns []string, rows tabular.RowIterator) (int64, error)
}

// Direction of a transfer.
type Direction string

const (
	DirectionExport Direction = "clickhouse_to_file"
	DirectionImport Direction = "file_to_clickhouse"
)

// TransferStatus is the terminal state of a journaled transfer.
type TransferStatus string

const (
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

// TransferRecord is one journal entry.
type TransferRecord struct {
	ID        string         `json:"id"`
	Direction Direction      `json:"direction"`
	Source    string         `json:"source"`
	Target    string         `json:"target"`
	Rows      int64          `json:"rows"`
	Status    TransferStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	ClientIP  string         `json:"client_ip,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"-"`
}

// MarshalJSON renders Duration as whole milliseconds.
func (r TransferRecord) MarshalJSON() ([]byte, error) {
	type alias TransferRecord
	return json.Marshal(struct {
		alias
		DurationMillis int64 `json:"duration_ms"`
	}{alias(r), r.Duration.Milliseconds()})
}

// TransferJournal persists transfer outcomes.
type TransferJournal interface {
	Record(ctx context.Context, rec TransferRecord) error
	Recent(ctx context.Context, limit int) ([]TransferRecord, error)
}

// NopJournal discards records. Used when no journal database is configured.
type NopJournal struct{}

func (NopJournal) Record(context.Context, TransferRecord) error { return nil }

func (NopJournal) Recent(context.Context, int) ([]TransferRecord, error) { return nil, nil }
