package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/chflat/internal/identifier"
	"github.com/JonMunkholm/chflat/internal/logging"
	"github.com/JonMunkholm/chflat/internal/tabular"
)

const (
	// DefaultBatchSize is the number of rows per INSERT transaction.
	DefaultBatchSize = 10000

	// PreviewLimit caps every preview regardless of source.
	PreviewLimit = 100

	// journalTimeout bounds the journal write after a transfer ends.
	journalTimeout = 5 * time.Second
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	Defaults  ConnectionDefaults
	BatchSize int
	Journal   TransferJournal
	Limiter   *TransferLimiter
}

// Service orchestrates listings, previews and transfers between ClickHouse
// and the flat-file store. It holds no per-request state.
type Service struct {
	warehouse Warehouse
	files     FileStore
	journal   TransferJournal
	limiter   *TransferLimiter
	defaults  ConnectionDefaults
	batchSize int

	now func() time.Time
}

// NewService creates a new Service instance.
func NewService(w Warehouse, f FileStore, opts Options) *Service {
	s := &Service{
		warehouse: w,
		files:     f,
		journal:   opts.Journal,
		limiter:   opts.Limiter,
		defaults:  opts.Defaults,
		batchSize: opts.BatchSize,
		now:       time.Now,
	}
	if s.journal == nil {
		s.journal = NopJournal{}
	}
	if s.limiter == nil {
		s.limiter = NewTransferLimiter(0, 0)
	}
	if s.defaults == (ConnectionDefaults{}) {
		s.defaults = DefaultConnection
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	return s
}

// Defaults are the connection values applied to fields a request omits.
func (s *Service) Defaults() ConnectionDefaults { return s.defaults }

// Limiter exposes the transfer limiter for shutdown and health checks.
func (s *Service) Limiter() *TransferLimiter { return s.limiter }

// Tables lists the tables of the requested database in server order.
func (s *Service) Tables(ctx context.Context, req TablesRequest) ([]string, error) {
	sess, err := s.warehouse.Dial(ctx, req.Conn)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	return sess.ListTables(ctx)
}

// Columns lists the columns of a table or the header of a stored file.
func (s *Service) Columns(ctx context.Context, req ColumnsRequest) ([]string, error) {
	switch r := req.(type) {
	case DatabaseColumnsRequest:
		sess, err := s.warehouse.Dial(ctx, r.Conn)
		if err != nil {
			return nil, err
		}
		defer sess.Close()
		return sess.ListColumns(ctx, r.Table)

	case FileColumnsRequest:
		return s.files.Columns(ctx, r.File)

	default:
		return nil, Errorf(KindInternal, "columns", "unhandled request %T", req)
	}
}

// PreviewResult is at most PreviewLimit rows.
type PreviewResult struct {
	Columns []string
	Rows    [][]any
}

// Preview returns the first PreviewLimit rows of a selection or file.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	var it tabular.RowIterator

	switch r := req.(type) {
	case DatabasePreviewRequest:
		sess, err := s.warehouse.Dial(ctx, r.Conn)
		if err != nil {
			return PreviewResult{}, err
		}
		defer sess.Close()

		it, err = sess.Select(ctx, SelectSpec{Selection: r.Selection, Columns: r.Columns, Limit: PreviewLimit})
		if err != nil {
			return PreviewResult{}, err
		}

	case FilePreviewRequest:
		var err error
		it, err = s.files.Open(ctx, r.File, r.Columns, PreviewLimit)
		if err != nil {
			return PreviewResult{}, err
		}

	default:
		return PreviewResult{}, Errorf(KindInternal, "preview", "unhandled request %T", req)
	}

	cols := it.Columns()
	rows, err := tabular.Collect(it, PreviewLimit)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("preview: %w", err)
	}
	if rows == nil {
		rows = [][]any{}
	}
	return PreviewResult{Columns: cols, Rows: rows}, nil
}

// SaveUpload stores an uploaded file under the storage root. An existing
// file with the same name is replaced.
func (s *Service) SaveUpload(ctx context.Context, name string, r io.Reader) (StoredFile, error) {
	clean, err := identifier.Filename(name)
	if err != nil {
		return StoredFile{}, E(KindInvalidInput, "upload", err)
	}

	stored, err := s.files.Save(ctx, clean, r)
	if err != nil {
		return StoredFile{}, err
	}

	logging.FromContext(ctx).Info("file stored", "filename", stored.Name, "bytes", stored.Size)
	return stored, nil
}

// RecentTransfers returns the latest journal entries, newest first.
func (s *Service) RecentTransfers(ctx context.Context, limit int) ([]TransferRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	recs, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transfers: %w", err)
	}
	if recs == nil {
		recs = []TransferRecord{}
	}
	return recs, nil
}

// State is the lifecycle of one ingest.
type State uint8

const (
	StateValidating State = iota
	StateResolvingSchema
	StateTransferring
	StateCompleted
	StateFailed
)

func (st State) String() string {
	switch st {
	case StateValidating:
		return "validating"
	case StateResolvingSchema:
		return "resolving_schema"
	case StateTransferring:
		return "transferring"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", st)
	}
}

// run tracks and logs the state of one ingest.
type run struct {
	log   *slog.Logger
	state State
}

func (r *run) enter(st State, args ...any) {
	r.state = st
	r.log.Info("transfer state", append([]any{"state", st.String()}, args...)...)
}

// record writes the journal entry. Journal failures are logged only.
func (s *Service) record(ctx context.Context, log *slog.Logger, rec TransferRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	if err := s.journal.Record(ctx, rec); err != nil {
		log.Warn("journal write failed", "error", err)
	}
}
