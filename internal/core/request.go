package core

// request.go is the validation boundary. The HTTP layer decodes the loose
// wire payload into RawRequest and converts it into one of the strict
// per-operation variants below. Nothing downstream of the conversion sees
// an unvalidated identifier, port or delimiter.

import (
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/chflat/internal/identifier"
	"github.com/JonMunkholm/chflat/internal/tabular"
	"github.com/samber/lo"
)

// SourceKind selects which side of the transfer is the source.
type SourceKind string

const (
	SourceDatabase SourceKind = "clickhouse"
	SourceFlatFile SourceKind = "flatfile"
)

// DefaultDelimiter is used for generated output when none is requested.
const DefaultDelimiter = ','

// ConnectionParams identifies a ClickHouse endpoint and the credentials for
// one request. Values are never cached across requests.
type ConnectionParams struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	Token    string
}

// Addr returns host:port.
func (p ConnectionParams) Addr() string {
	return net.JoinHostPort(p.Host, p.Port)
}

// LogValue keeps credentials out of structured logs.
func (p ConnectionParams) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", p.Addr()),
		slog.String("database", p.Database),
		slog.String("user", p.User),
		slog.Bool("token", p.Token != ""),
	)
}

// ConnectionDefaults fill fields the caller left empty.
type ConnectionDefaults struct {
	Host     string
	Port     string
	Database string
	User     string
}

// DefaultConnection matches a stock local ClickHouse HTTP endpoint.
var DefaultConnection = ConnectionDefaults{
	Host:     "localhost",
	Port:     "8123",
	Database: "default",
	User:     "default",
}

// FileRef names a file under the storage root. Delimiter is 0 when the
// caller did not supply one.
type FileRef struct {
	Name      string
	Delimiter rune
}

// Selection is one table, or two tables related by a join condition.
type Selection struct {
	Tables        []string
	JoinCondition string
}

// Joined reports whether the selection is a two-table join.
func (s Selection) Joined() bool { return len(s.Tables) == 2 }

// Label is a short human readable description used in logs and the journal.
func (s Selection) Label() string { return strings.Join(s.Tables, "+") }

// SelectSpec is everything the query builder needs for a SELECT.
// Limit <= 0 means no LIMIT clause.
type SelectSpec struct {
	Selection
	Columns []string
	Limit   int
}

// RawRequest is the loose wire shape shared by every JSON endpoint.
type RawRequest struct {
	Source        string   `json:"source"`
	Host          string   `json:"host,omitempty"`
	Port          string   `json:"port,omitempty"`
	Database      string   `json:"database,omitempty"`
	User          string   `json:"user,omitempty"`
	Password      string   `json:"password,omitempty"`
	JWTToken      string   `json:"jwt_token,omitempty"`
	Filename      string   `json:"filename,omitempty"`
	Delimiter     string   `json:"delimiter,omitempty"`
	Table         string   `json:"table,omitempty"`
	Tables        []string `json:"tables,omitempty"`
	Columns       []string `json:"columns,omitempty"`
	JoinCondition string   `json:"join_condition,omitempty"`
	OutputFile    string   `json:"output_file,omitempty"`
}

// TablesRequest lists tables of a database.
type TablesRequest struct {
	Conn ConnectionParams
}

// ColumnsRequest is a DatabaseColumnsRequest or a FileColumnsRequest.
type ColumnsRequest interface{ columnsRequest() }

type DatabaseColumnsRequest struct {
	Conn  ConnectionParams
	Table string
}

type FileColumnsRequest struct {
	File FileRef
}

// IngestRequest is an ExportRequest (database to file) or an ImportRequest
// (file to database).
type IngestRequest interface{ ingestRequest() }

type ExportRequest struct {
	Conn      ConnectionParams
	Selection Selection
	Columns   []string
	Output    FileRef
}

type ImportRequest struct {
	File    FileRef
	Conn    ConnectionParams
	Table   string
	Columns []string // empty means every column in the file
}

// PreviewRequest is a DatabasePreviewRequest or a FilePreviewRequest.
type PreviewRequest interface{ previewRequest() }

type DatabasePreviewRequest struct {
	Conn      ConnectionParams
	Selection Selection
	Columns   []string
}

type FilePreviewRequest struct {
	File    FileRef
	Columns []string // empty means every column in the file
}

// DownloadRequest is a DatabaseDownloadRequest or a FileDownloadRequest.
type DownloadRequest interface{ downloadRequest() }

type DatabaseDownloadRequest struct {
	Conn      ConnectionParams
	Selection Selection
	Columns   []string
	Filename  string
	Delimiter rune
}

type FileDownloadRequest struct {
	File      FileRef
	Columns   []string
	Delimiter rune
}

func (DatabaseColumnsRequest) columnsRequest() {}
func (FileColumnsRequest) columnsRequest() {}
func (ExportRequest) ingestRequest() {}
func (ImportRequest) ingestRequest() {}
func (DatabasePreviewRequest) previewRequest() {}
func (FilePreviewRequest) previewRequest() {}
func (DatabaseDownloadRequest) downloadRequest() {}
func (FileDownloadRequest) downloadRequest() {}

// TablesRequest validates a table listing request.
func (r RawRequest) TablesRequest(d ConnectionDefaults) (TablesRequest, error) {
	const op = "tables"
	kind, err := r.kind(op)
	if err != nil {
		return TablesRequest{}, err
	}
	if kind != SourceDatabase {
		return TablesRequest{}, Invalid(op, "table listing requires a %s source", SourceDatabase)
	}
	conn, err := r.conn(op, d)
	if err != nil {
		return TablesRequest{}, err
	}
	return TablesRequest{Conn: conn}, nil
}

// ColumnsRequest validates a column listing request.
func (r RawRequest) ColumnsRequest(d ConnectionDefaults) (ColumnsRequest, error) {
	const op = "columns"
	kind, err := r.kind(op)
	if err != nil {
		return nil, err
	}

	if kind == SourceFlatFile {
		file, err := r.file(op)
		if err != nil {
			return nil, err
		}
		return FileColumnsRequest{File: file}, nil
	}

	table := r.Table
	if table == "" && len(r.Tables) > 0 {
		table = r.Tables[0]
	}
	if table == "" {
		return nil, Invalid(op, "table required")
	}
	if err := identifier.Table(table); err != nil {
		return nil, E(KindInvalidInput, op, err)
	}
	conn, err := r.conn(op, d)
	if err != nil {
		return nil, err
	}
	return DatabaseColumnsRequest{Conn: conn, Table: table}, nil
}

// IngestRequest validates a transfer request in either direction.
func (r RawRequest) IngestRequest(d ConnectionDefaults) (IngestRequest, error) {
	const op = "ingest"
	kind, err := r.kind(op)
	if err != nil {
		return nil, err
	}

	conn, err := r.conn(op, d)
	if err != nil {
		return nil, err
	}

	if kind == SourceFlatFile {
		if r.Filename == "" || r.Table == "" {
			return nil, Invalid(op, "filename and table required")
		}
		file, err := r.file(op)
		if err != nil {
			return nil, err
		}
		if err := identifier.Table(r.Table); err != nil {
			return nil, E(KindInvalidInput, op, err)
		}
		cols, err := databaseColumns(op, r.Columns, false)
		if err != nil {
			return nil, err
		}
		return ImportRequest{File: file, Conn: conn, Table: r.Table, Columns: cols}, nil
	}

	if len(r.tables()) == 0 || r.OutputFile == "" {
		return nil, Invalid(op, "tables and output file required")
	}
	sel, err := r.selection(op)
	if err != nil {
		return nil, err
	}
	if len(r.Columns) == 0 {
		return nil, E(KindNoColumnsSelected, op, ErrNoColumnsSelected)
	}
	cols, err := databaseColumns(op, r.Columns, sel.Joined())
	if err != nil {
		return nil, err
	}
	name, err := identifier.Filename(r.OutputFile)
	if err != nil {
		return nil, E(KindInvalidInput, op, err)
	}
	// 0 lets the file store pick the default for the output's extension
	delim, err := delimiter(op, r.Delimiter)
	if err != nil {
		return nil, err
	}
	return ExportRequest{
		Conn:      conn,
		Selection: sel,
		Columns:   cols,
		Output:    FileRef{Name: name, Delimiter: delim},
	}, nil
}

// PreviewRequest validates a preview request.
func (r RawRequest) PreviewRequest(d ConnectionDefaults) (PreviewRequest, error) {
	const op = "preview"
	kind, err := r.kind(op)
	if err != nil {
		return nil, err
	}

	if kind == SourceFlatFile {
		if r.Filename == "" {
			return nil, Invalid(op, "filename required")
		}
		file, err := r.file(op)
		if err != nil {
			return nil, err
		}
		cols, err := fileColumns(op, r.Columns)
		if err != nil {
			return nil, err
		}
		return FilePreviewRequest{File: file, Columns: cols}, nil
	}

	if len(r.tables()) == 0 {
		return nil, Invalid(op, "tables required")
	}
	sel, err := r.selection(op)
	if err != nil {
		return nil, err
	}
	if len(r.Columns) == 0 {
		return nil, E(KindNoColumnsSelected, op, ErrNoColumnsSelected)
	}
	cols, err := databaseColumns(op, r.Columns, sel.Joined())
	if err != nil {
		return nil, err
	}
	conn, err := r.conn(op, d)
	if err != nil {
		return nil, err
	}
	return DatabasePreviewRequest{Conn: conn, Selection: sel, Columns: cols}, nil
}

// DownloadRequest validates a download request. filename comes from the
// URL path: the stored file for flat-file sources, the attachment name for
// database sources. The column check runs first so an empty selection is
// always reported as NoColumnsSelected.
func (r RawRequest) DownloadRequest(d ConnectionDefaults, filename string) (DownloadRequest, error) {
	const op = "download"
	if len(r.Columns) == 0 {
		return nil, E(KindNoColumnsSelected, op, ErrNoColumnsSelected)
	}
	kind, err := r.kind(op)
	if err != nil {
		return nil, err
	}
	name, err := identifier.Filename(filename)
	if err != nil {
		return nil, E(KindInvalidInput, op, err)
	}
	delim, err := delimiter(op, r.Delimiter)
	if err != nil {
		return nil, err
	}
	if delim == 0 {
		delim = impliedDelimiter(name)
	}

	if kind == SourceFlatFile {
		cols, err := fileColumns(op, r.Columns)
		if err != nil {
			return nil, err
		}
		return FileDownloadRequest{
			File:      FileRef{Name: name, Delimiter: delim},
			Columns:   cols,
			Delimiter: delim,
		}, nil
	}

	if len(r.tables()) == 0 {
		return nil, Invalid(op, "table required")
	}
	sel, err := r.selection(op)
	if err != nil {
		return nil, err
	}
	cols, err := databaseColumns(op, r.Columns, sel.Joined())
	if err != nil {
		return nil, err
	}
	conn, err := r.conn(op, d)
	if err != nil {
		return nil, err
	}
	return DatabaseDownloadRequest{
		Conn:      conn,
		Selection: sel,
		Columns:   cols,
		Filename:  name,
		Delimiter: delim,
	}, nil
}

func (r RawRequest) kind(op string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(r.Source)) {
	case "clickhouse", "database":
		return SourceDatabase, nil
	case "flatfile", "file":
		return SourceFlatFile, nil
	case "":
		return "", Invalid(op, "source required")
	default:
		return "", Invalid(op, "invalid source %q", r.Source)
	}
}

func (r RawRequest) conn(op string, d ConnectionDefaults) (ConnectionParams, error) {
	p := ConnectionParams{
		Host:     lo.Ternary(r.Host != "", r.Host, d.Host),
		Port:     lo.Ternary(r.Port != "", r.Port, d.Port),
		Database: lo.Ternary(r.Database != "", r.Database, d.Database),
		User:     lo.Ternary(r.User != "", r.User, d.User),
		Password: r.Password,
		Token:    strings.TrimSpace(r.JWTToken),
	}
	if p.Host == "" {
		return p, Invalid(op, "host required")
	}
	if strings.ContainsAny(p.Host, "/?#@ ") {
		return p, Invalid(op, "invalid host %q", p.Host)
	}
	port, err := strconv.Atoi(p.Port)
	if err != nil || !isDigits(p.Port) || port <= 0 || port > 65535 {
		return p, Invalid(op, "port must be a number between 1 and 65535")
	}
	if p.Database != "" && !identifier.Valid(p.Database) {
		return p, Invalid(op, "invalid database name %q", p.Database)
	}
	return p, nil
}

func (r RawRequest) tables() []string {
	if len(r.Tables) > 0 {
		return r.Tables
	}
	if r.Table != "" {
		return []string{r.Table}
	}
	return nil
}

func (r RawRequest) selection(op string) (Selection, error) {
	tables := r.tables()
	join := strings.TrimSpace(r.JoinCondition)

	switch {
	case len(tables) > 2:
		return Selection{}, E(KindUnsupportedTopology, op, ErrUnsupportedTopology)
	case len(tables) == 2 && join == "":
		return Selection{}, Invalid(op, "join condition required when two tables are selected")
	case len(tables) == 1 && join != "":
		return Selection{}, Invalid(op, "join condition requires exactly two tables")
	}
	for _, t := range tables {
		if err := identifier.Table(t); err != nil {
			return Selection{}, E(KindInvalidInput, op, err)
		}
	}
	return Selection{Tables: tables, JoinCondition: join}, nil
}

func (r RawRequest) file(op string) (FileRef, error) {
	if r.Filename == "" {
		return FileRef{}, Invalid(op, "filename required")
	}
	name, err := identifier.Filename(r.Filename)
	if err != nil {
		return FileRef{}, E(KindInvalidInput, op, err)
	}
	delim, err := delimiter(op, r.Delimiter)
	if err != nil {
		return FileRef{}, err
	}
	return FileRef{Name: name, Delimiter: delim}, nil
}

// databaseColumns validates columns that end up inside SQL. Qualified
// references are only meaningful in joins.
func databaseColumns(op string, cols []string, qualified bool) ([]string, error) {
	for _, c := range cols {
		check := identifier.Column
		if qualified {
			check = identifier.QualifiedColumn
		}
		if err := check(c); err != nil {
			return nil, E(KindInvalidInput, op, err)
		}
	}
	if dups := lo.FindDuplicates(cols); len(dups) > 0 {
		return nil, Invalid(op, "duplicate columns: %s", strings.Join(dups, ", "))
	}
	return cols, nil
}

// fileColumns validates a projection over file headers. Header names are
// not SQL identifiers here, so only emptiness and duplicates are checked.
func fileColumns(op string, cols []string) ([]string, error) {
	for _, c := range cols {
		if strings.TrimSpace(c) == "" {
			return nil, Invalid(op, "empty column name")
		}
	}
	if dups := lo.FindDuplicates(cols); len(dups) > 0 {
		return nil, Invalid(op, "duplicate columns: %s", strings.Join(dups, ", "))
	}
	return cols, nil
}

func delimiter(op, s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, Invalid(op, "delimiter must be a single character")
	}
	r, _ := utf8.DecodeRuneInString(s)
	if !tabular.ValidDelimiter(r) {
		return 0, Invalid(op, "delimiter %q cannot separate fields", s)
	}
	return r, nil
}

// impliedDelimiter is the delimiter a file name implies when the caller
// gave none: tab for .tsv, DefaultDelimiter otherwise.
func impliedDelimiter(name string) rune {
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		return '\t'
	}
	return DefaultDelimiter
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
