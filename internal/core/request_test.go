package core

import (
	"reflect"
	"strings"
	"testing"
)

func TestRawRequest_TablesRequest(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawRequest
		wantKind Kind
		wantErr  bool
		want     ConnectionParams
	}{
		{
			name: "defaults fill empty fields",
			raw:  RawRequest{Source: "clickhouse", JWTToken: " tok "},
			want: ConnectionParams{Host: "localhost", Port: "8123", Database: "default", User: "default", Token: "tok"},
		},
		{
			name: "explicit values win",
			raw:  RawRequest{Source: "database", Host: "ch.internal", Port: "8443", Database: "sales", User: "etl", Password: "pw"},
			want: ConnectionParams{Host: "ch.internal", Port: "8443", Database: "sales", User: "etl", Password: "pw"},
		},
		{name: "missing source", raw: RawRequest{}, wantErr: true, wantKind: KindInvalidInput},
		{name: "unknown source", raw: RawRequest{Source: "s3"}, wantErr: true, wantKind: KindInvalidInput},
		{name: "flat file source", raw: RawRequest{Source: "flatfile"}, wantErr: true, wantKind: KindInvalidInput},
		{name: "port not numeric", raw: RawRequest{Source: "clickhouse", Port: "80a"}, wantErr: true, wantKind: KindInvalidInput},
		{name: "port out of range", raw: RawRequest{Source: "clickhouse", Port: "70000"}, wantErr: true, wantKind: KindInvalidInput},
		{name: "port signed", raw: RawRequest{Source: "clickhouse", Port: "+80"}, wantErr: true, wantKind: KindInvalidInput},
		{name: "host with path", raw: RawRequest{Source: "clickhouse", Host: "evil/x"}, wantErr: true, wantKind: KindInvalidInput},
		{name: "bad database", raw: RawRequest{Source: "clickhouse", Database: "a;b"}, wantErr: true, wantKind: KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.raw.TablesRequest(DefaultConnection)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if k := KindOf(err); k != tt.wantKind {
					t.Errorf("KindOf = %v, want %v", k, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Conn != tt.want {
				t.Errorf("Conn = %+v, want %+v", got.Conn, tt.want)
			}
		})
	}
}

func TestRawRequest_ColumnsRequest(t *testing.T) {
	t.Run("table from list", func(t *testing.T) {
		got, err := RawRequest{Source: "clickhouse", Tables: []string{"orders"}}.ColumnsRequest(DefaultConnection)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		db, ok := got.(DatabaseColumnsRequest)
		if !ok || db.Table != "orders" {
			t.Errorf("got %#v, want DatabaseColumnsRequest for orders", got)
		}
	})

	t.Run("file with path is reduced to leaf", func(t *testing.T) {
		got, err := RawRequest{Source: "flatfile", Filename: "../../etc/data.csv", Delimiter: ";"}.ColumnsRequest(DefaultConnection)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := FileColumnsRequest{File: FileRef{Name: "data.csv", Delimiter: ';'}}
		if got != want {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := RawRequest{Source: "clickhouse"}.ColumnsRequest(DefaultConnection)
		if k := KindOf(err); k != KindInvalidInput {
			t.Errorf("KindOf = %v, want %v", k, KindInvalidInput)
		}
	})

	t.Run("table injection", func(t *testing.T) {
		_, err := RawRequest{Source: "clickhouse", Table: "t; DROP TABLE x"}.ColumnsRequest(DefaultConnection)
		if k := KindOf(err); k != KindInvalidInput {
			t.Errorf("KindOf = %v, want %v", k, KindInvalidInput)
		}
	})
}

func TestRawRequest_IngestRequest(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawRequest
		want     IngestRequest
		wantKind Kind
	}{
		{
			name: "import",
			raw:  RawRequest{Source: "flatfile", Filename: "sales.csv", Delimiter: ",", Table: "sales"},
			want: ImportRequest{
				File:  FileRef{Name: "sales.csv", Delimiter: ','},
				Conn:  ConnectionParams{Host: "localhost", Port: "8123", Database: "default", User: "default"},
				Table: "sales",
			},
		},
		{
			name: "export leaves default delimiter to the store",
			raw:  RawRequest{Source: "clickhouse", Table: "sales", Columns: []string{"date", "amount"}, OutputFile: "out.tsv"},
			want: ExportRequest{
				Conn:      ConnectionParams{Host: "localhost", Port: "8123", Database: "default", User: "default"},
				Selection: Selection{Tables: []string{"sales"}},
				Columns:   []string{"date", "amount"},
				Output:    FileRef{Name: "out.tsv"},
			},
		},
		{
			name: "export join with qualified columns",
			raw: RawRequest{
				Source:        "clickhouse",
				Tables:        []string{"a", "b"},
				JoinCondition: "a.id = b.a_id",
				Columns:       []string{"a.id", "b.total"},
				OutputFile:    "joined.tsv",
				Delimiter:     "\t",
			},
			want: ExportRequest{
				Conn:      ConnectionParams{Host: "localhost", Port: "8123", Database: "default", User: "default"},
				Selection: Selection{Tables: []string{"a", "b"}, JoinCondition: "a.id = b.a_id"},
				Columns:   []string{"a.id", "b.total"},
				Output:    FileRef{Name: "joined.tsv", Delimiter: '\t'},
			},
		},
		{
			name:     "import without table",
			raw:      RawRequest{Source: "flatfile", Filename: "a.csv"},
			wantKind: KindInvalidInput,
		},
		{
			name:     "import bad column",
			raw:      RawRequest{Source: "flatfile", Filename: "a.csv", Table: "t", Columns: []string{"ok", "no good"}},
			wantKind: KindInvalidInput,
		},
		{
			name:     "export without columns",
			raw:      RawRequest{Source: "clickhouse", Table: "t", OutputFile: "o.csv"},
			wantKind: KindNoColumnsSelected,
		},
		{
			name:     "three tables",
			raw:      RawRequest{Source: "clickhouse", Tables: []string{"a", "b", "c"}, JoinCondition: "x", Columns: []string{"a"}, OutputFile: "o.csv"},
			wantKind: KindUnsupportedTopology,
		},
		{
			name:     "two tables without join",
			raw:      RawRequest{Source: "clickhouse", Tables: []string{"a", "b"}, Columns: []string{"a.x"}, OutputFile: "o.csv"},
			wantKind: KindInvalidInput,
		},
		{
			name:     "join with one table",
			raw:      RawRequest{Source: "clickhouse", Table: "a", JoinCondition: "a.x = a.y", Columns: []string{"x"}, OutputFile: "o.csv"},
			wantKind: KindInvalidInput,
		},
		{
			name:     "qualified column without join",
			raw:      RawRequest{Source: "clickhouse", Table: "a", Columns: []string{"a.x"}, OutputFile: "o.csv"},
			wantKind: KindInvalidInput,
		},
		{
			name:     "duplicate columns",
			raw:      RawRequest{Source: "clickhouse", Table: "a", Columns: []string{"x", "x"}, OutputFile: "o.csv"},
			wantKind: KindInvalidInput,
		},
		{
			name:     "multi character delimiter",
			raw:      RawRequest{Source: "clickhouse", Table: "a", Columns: []string{"x"}, OutputFile: "o.csv", Delimiter: "||"},
			wantKind: KindInvalidInput,
		},
		{
			name:     "quote delimiter",
			raw:      RawRequest{Source: "clickhouse", Table: "a", Columns: []string{"x"}, OutputFile: "o.csv", Delimiter: `"`},
			wantKind: KindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.raw.IngestRequest(DefaultConnection)
			if tt.want == nil {
				if err == nil {
					t.Fatalf("expected error, got %#v", got)
				}
				if k := KindOf(err); k != tt.wantKind {
					t.Errorf("KindOf = %v, want %v (%v)", k, tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRawRequest_PreviewRequest(t *testing.T) {
	t.Run("file preview allows any header text", func(t *testing.T) {
		got, err := RawRequest{Source: "flatfile", Filename: "a.xlsx", Columns: []string{"Order Date"}}.PreviewRequest(DefaultConnection)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := FilePreviewRequest{File: FileRef{Name: "a.xlsx"}, Columns: []string{"Order Date"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("database preview needs columns", func(t *testing.T) {
		_, err := RawRequest{Source: "clickhouse", Table: "a"}.PreviewRequest(DefaultConnection)
		if k := KindOf(err); k != KindNoColumnsSelected {
			t.Errorf("KindOf = %v, want %v", k, KindNoColumnsSelected)
		}
	})

	t.Run("database preview rejects bad column", func(t *testing.T) {
		_, err := RawRequest{Source: "clickhouse", Table: "a", Columns: []string{"x) --"}}.PreviewRequest(DefaultConnection)
		if k := KindOf(err); k != KindInvalidInput {
			t.Errorf("KindOf = %v, want %v", k, KindInvalidInput)
		}
	})
}

func TestRawRequest_DownloadRequest(t *testing.T) {
	t.Run("empty columns first", func(t *testing.T) {
		// even an invalid source reports the missing columns
		_, err := RawRequest{Source: "nope"}.DownloadRequest(DefaultConnection, "x.csv")
		if k := KindOf(err); k != KindNoColumnsSelected {
			t.Errorf("KindOf = %v, want %v", k, KindNoColumnsSelected)
		}
	})

	t.Run("file source reads and writes with one delimiter", func(t *testing.T) {
		got, err := RawRequest{Source: "flatfile", Columns: []string{"a"}, Delimiter: ";"}.DownloadRequest(DefaultConnection, "in.csv")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := FileDownloadRequest{File: FileRef{Name: "in.csv", Delimiter: ';'}, Columns: []string{"a"}, Delimiter: ';'}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("tsv file without delimiter uses tab", func(t *testing.T) {
		got, err := RawRequest{Source: "flatfile", Columns: []string{"a"}}.DownloadRequest(DefaultConnection, "data.tsv")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := FileDownloadRequest{File: FileRef{Name: "data.tsv", Delimiter: '\t'}, Columns: []string{"a"}, Delimiter: '\t'}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("csv file without delimiter uses comma", func(t *testing.T) {
		got, err := RawRequest{Source: "flatfile", Columns: []string{"a"}}.DownloadRequest(DefaultConnection, "data.csv")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := FileDownloadRequest{File: FileRef{Name: "data.csv", Delimiter: ','}, Columns: []string{"a"}, Delimiter: ','}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("database source", func(t *testing.T) {
		got, err := RawRequest{Source: "clickhouse", Table: "t", Columns: []string{"a"}}.DownloadRequest(DefaultConnection, "export.csv")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		db, ok := got.(DatabaseDownloadRequest)
		if !ok || db.Filename != "export.csv" || db.Delimiter != ',' {
			t.Errorf("got %#v", got)
		}
	})

	t.Run("bad filename", func(t *testing.T) {
		_, err := RawRequest{Source: "flatfile", Columns: []string{"a"}}.DownloadRequest(DefaultConnection, "..")
		if k := KindOf(err); k != KindInvalidInput {
			t.Errorf("KindOf = %v, want %v", k, KindInvalidInput)
		}
	})
}

func TestConnectionParams_LogValueHidesSecrets(t *testing.T) {
	p := ConnectionParams{Host: "h", Port: "1", Password: "hunter2", Token: "eyJhbGciOi.x.y"}
	v := p.LogValue().String()
	for _, s := range []string{"hunter2", "eyJhbGciOi"} {
		if strings.Contains(v, s) {
			t.Errorf("LogValue %q leaks %q", v, s)
		}
	}
}
