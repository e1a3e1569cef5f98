package core

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/chflat/internal/logging"
	"github.com/JonMunkholm/chflat/internal/tabular"
)

// Download is a resolved download waiting to be streamed. All validation
// and source resolution happen in OpenDownload, so a failure there leaves
// the response untouched.
type Download struct {
	// Filename is the attachment name sent to the client.
	Filename string

	columns   []string
	delimiter rune
	rows      tabular.RowIterator
	release   func()
}

// OpenDownload resolves the source of a download. The caller must call
// Stream or Close exactly once on the returned Download.
func (s *Service) OpenDownload(ctx context.Context, req DownloadRequest) (*Download, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	d, err := s.openDownload(ctx, req)
	if err != nil {
		s.limiter.Release()
		return nil, err
	}

	inner := d.release
	d.release = func() {
		if inner != nil {
			inner()
		}
		s.limiter.Release()
	}
	return d, nil
}

func (s *Service) openDownload(ctx context.Context, req DownloadRequest) (*Download, error) {
	switch r := req.(type) {
	case DatabaseDownloadRequest:
		if len(r.Columns) == 0 {
			return nil, E(KindNoColumnsSelected, "download", ErrNoColumnsSelected)
		}
		sess, err := s.warehouse.Dial(ctx, r.Conn)
		if err != nil {
			return nil, err
		}
		it, err := sess.Select(ctx, SelectSpec{Selection: r.Selection, Columns: r.Columns})
		if err != nil {
			sess.Close()
			return nil, err
		}
		return &Download{
			Filename:  attachmentName(r.Filename),
			columns:   it.Columns(),
			delimiter: r.Delimiter,
			rows:      it,
			release:   func() { sess.Close() },
		}, nil

	case FileDownloadRequest:
		if len(r.Columns) == 0 {
			return nil, E(KindNoColumnsSelected, "download", ErrNoColumnsSelected)
		}
		it, err := s.files.Open(ctx, r.File, r.Columns, 0)
		if err != nil {
			return nil, err
		}
		return &Download{
			Filename:  attachmentName(r.File.Name),
			columns:   it.Columns(),
			delimiter: r.Delimiter,
			rows:      it,
		}, nil

	default:
		return nil, Errorf(KindInternal, "download", "unhandled request %T", req)
	}
}

// Stream writes a UTF-8 BOM, the header and every row to w, then releases
// the source. It returns the number of data rows written.
func (d *Download) Stream(ctx context.Context, w io.Writer) (int64, error) {
	defer d.Close()

	tw, err := tabular.NewWriter(w, d.delimiter, true)
	if err != nil {
		return 0, E(KindInvalidInput, "download", err)
	}
	n, err := tabular.Copy(tw, d.columns, d.rows)
	if err != nil {
		return n, fmt.Errorf("download: %w", err)
	}

	logging.FromContext(ctx).Info("download streamed", "filename", d.Filename, "rows", n)
	return n, nil
}

// Close releases the source without writing anything. Safe to call twice.
func (d *Download) Close() error {
	if d.rows == nil {
		return nil
	}
	err := d.rows.Close()
	d.rows = nil
	if d.release != nil {
		d.release()
		d.release = nil
	}
	return err
}

// attachmentName gives spreadsheet sources a .csv extension since the
// stream is always delimited text.
func attachmentName(name string) string {
	ext := filepath.Ext(name)
	switch strings.ToLower(ext) {
	case ".csv", ".tsv", ".txt":
		return name
	case "":
		return name + ".csv"
	default:
		return strings.TrimSuffix(name, ext) + ".csv"
	}
}
