package core

// transfer.go runs ingests in both directions.
//
// File to database: header and whole-column inference resolve the schema,
// CREATE TABLE IF NOT EXISTS prepares the target, then a producer goroutine
// groups file rows into batches while a consumer inserts them one
// transaction at a time. Committed batches stay committed when a later
// batch fails, and the count is reported in PartialTransferError.
//
// Database to file: the selection is streamed into a temporary file that is
// renamed into place when the last row is written.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/chflat/internal/identifier"
	"github.com/JonMunkholm/chflat/internal/logging"
	"github.com/JonMunkholm/chflat/internal/schema"
	"github.com/JonMunkholm/chflat/internal/tabular"
)

// TransferResult reports a completed ingest.
type TransferResult struct {
	Rows int64
}

// Ingest runs a transfer to completion. It holds a limiter slot for the
// whole transfer and records the outcome in the journal.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (res TransferResult, err error) {
	rec := TransferRecord{
		ID:        uuid.NewString(),
		RequestID: RequestIDFromContext(ctx),
		ClientIP:  ClientIPFromContext(ctx),
		StartedAt: s.now(),
	}

	switch r := req.(type) {
	case ExportRequest:
		rec.Direction = DirectionExport
		rec.Source = r.Selection.Label()
		rec.Target = r.Output.Name
	case ImportRequest:
		rec.Direction = DirectionImport
		rec.Source = r.File.Name
		rec.Target = r.Table
	default:
		return TransferResult{}, Errorf(KindInternal, "ingest", "unhandled request %T", req)
	}

	log := logging.WithFields(ctx, "transfer_id", rec.ID, "direction", rec.Direction,
		"source", rec.Source, "target", rec.Target)
	st := &run{log: log}
	st.enter(StateValidating)

	if err := s.limiter.Acquire(ctx); err != nil {
		st.enter(StateFailed, "error", err)
		return TransferResult{}, fmt.Errorf("ingest: %w", err)
	}
	defer s.limiter.Release()

	defer func() {
		rec.Rows = res.Rows
		rec.Status = TransferCompleted
		if err != nil {
			rec.Status = TransferFailed
			rec.Error = err.Error()
			rec.Rows, _ = CommittedRows(err)
			st.enter(StateFailed, "error", err, "rows", rec.Rows)
		} else {
			st.enter(StateCompleted, "rows", res.Rows)
		}
		rec.Duration = s.now().Sub(rec.StartedAt)
		s.record(ctx, log, rec)
	}()

	if r, ok := req.(ExportRequest); ok {
		return s.export(ctx, st, r)
	}
	return s.load(ctx, st, req.(ImportRequest))
}

func (s *Service) export(ctx context.Context, st *run, r ExportRequest) (TransferResult, error) {
	st.enter(StateResolvingSchema, "columns", len(r.Columns))

	sess, err := s.warehouse.Dial(ctx, r.Conn)
	if err != nil {
		return TransferResult{}, err
	}
	defer sess.Close()

	it, err := sess.Select(ctx, SelectSpec{Selection: r.Selection, Columns: r.Columns})
	if err != nil {
		return TransferResult{}, err
	}
	defer it.Close()

	st.enter(StateTransferring)
	n, err := s.files.WriteRows(ctx, r.Output, r.Columns, it)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{Rows: n}, nil
}

func (s *Service) load(ctx context.Context, st *run, r ImportRequest) (TransferResult, error) {
	const op = "ingest"
	st.enter(StateResolvingSchema)

	cols := r.Columns
	if len(cols) == 0 {
		header, err := s.files.Columns(ctx, r.File)
		if err != nil {
			return TransferResult{}, err
		}
		cols = header
	}
	for _, c := range cols {
		if err := identifier.Column(c); err != nil {
			return TransferResult{}, E(KindInvalidInput, op, err)
		}
	}

	sc, err := s.files.InferSchema(ctx, r.File, cols)
	if err != nil {
		return TransferResult{}, err
	}
	st.log.Debug("schema inferred", "schema", sc.String())

	sess, err := s.warehouse.Dial(ctx, r.Conn)
	if err != nil {
		return TransferResult{}, err
	}
	defer sess.Close()

	if err := sess.CreateTable(ctx, r.Table, sc); err != nil {
		return TransferResult{}, err
	}

	it, err := s.files.Open(ctx, r.File, cols, 0)
	if err != nil {
		return TransferResult{}, err
	}
	defer it.Close()

	st.enter(StateTransferring, "batch_size", s.batchSize)
	n, err := s.insertBatches(ctx, st.log, sess, r.Table, sc, it)
	if err != nil {
		return TransferResult{}, &PartialTransferError{Committed: n, Err: err}
	}
	return TransferResult{Rows: n}, nil
}

// insertBatches returns the number of rows committed, also on failure.
func (s *Service) insertBatches(ctx context.Context, log *slog.Logger, sess WarehouseSession,
	table string, sc schema.Schema, it tabular.RowIterator) (int64, error) {

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan [][]string, 1)

	g.Go(func() error {
		defer close(batches)

		batch := make([][]string, 0, s.batchSize)
		send := func() error {
			select {
			case batches <- batch:
				batch = make([][]string, 0, s.batchSize)
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		for it.Next() {
			batch = append(batch, tabular.FormatRow(nil, it.Values()))
			if len(batch) == s.batchSize {
				if err := send(); err != nil {
					return err
				}
			}
		}
		if err := it.Err(); err != nil {
			return fmt.Errorf("read rows: %w", err)
		}
		if len(batch) > 0 {
			return send()
		}
		return nil
	})

	var committed int64
	g.Go(func() error {
		for batch := range batches {
			if err := sess.InsertBatch(gctx, table, sc, batch); err != nil {
				return fmt.Errorf("insert rows %d-%d: %w", committed+1, committed+int64(len(batch)), err)
			}
			committed += int64(len(batch))
			log.Info("batch committed", "rows", len(batch), "committed", committed)
		}
		return nil
	})

	err := g.Wait()
	return committed, err
}
