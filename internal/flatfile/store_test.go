package flatfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/chflat/internal/core"
	"github.com/JonMunkholm/chflat/internal/schema"
	"github.com/JonMunkholm/chflat/internal/tabular"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(Config{Root: t.TempDir()})
}

func writeFile(t *testing.T, s *Store, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(s.Root(), name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readAll(t *testing.T, it tabular.RowIterator) [][]string {
	t.Helper()
	defer it.Close()
	var out [][]string
	for it.Next() {
		out = append(out, tabular.FormatRow(nil, it.Values()))
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return out
}

func TestColumns(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "semi.csv", "id;name\n1;ann\n")
	writeFile(t, s, "bom.csv", "\xEF\xBB\xBFid,name\n1,ann\n")
	writeFile(t, s, "nfd.csv", " cafe\u0301 ,x\n")
	writeFile(t, s, "tabs.tsv", "a\tb\n1\t2\n")
	writeFile(t, s, "empty.csv", "")

	tests := []struct {
		name     string
		ref      core.FileRef
		want     []string
		wantKind core.Kind
		wantErr  bool
	}{
		{"semicolon", core.FileRef{Name: "semi.csv", Delimiter: ';'}, []string{"id", "name"}, 0, false},
		{"utf8 bom stripped", core.FileRef{Name: "bom.csv", Delimiter: ','}, []string{"id", "name"}, 0, false},
		{"header trimmed and composed", core.FileRef{Name: "nfd.csv", Delimiter: ','}, []string{"caf\u00e9", "x"}, 0, false},
		{"tsv defaults to tab", core.FileRef{Name: "tabs.tsv"}, []string{"a", "b"}, 0, false},
		{"missing file", core.FileRef{Name: "nope.csv", Delimiter: ','}, nil, core.KindNotFound, true},
		{"xls unsupported", core.FileRef{Name: "old.xls"}, nil, core.KindInvalidInput, true},
		{"csv needs delimiter", core.FileRef{Name: "semi.csv"}, nil, core.KindInvalidInput, true},
		{"empty file", core.FileRef{Name: "empty.csv", Delimiter: ','}, nil, core.KindInvalidInput, true},
		{"directories stripped", core.FileRef{Name: "../etc/passwd.csv", Delimiter: ','}, nil, core.KindNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Columns(context.Background(), tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Columns() = %v, want error", got)
				}
				if k := core.KindOf(err); k != tt.wantKind {
					t.Errorf("kind = %v, want %v (%v)", k, tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Columns() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Columns() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenProjectsAndLimits(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "people.csv", "id,name,city\n1,ann,\"Oslo, Norway\"\n2,bob\n3,cy,Rome\n")
	ref := core.FileRef{Name: "people.csv", Delimiter: ','}

	it, err := s.Open(context.Background(), ref, []string{"city", "id"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := it.Columns(); !reflect.DeepEqual(got, []string{"city", "id"}) {
		t.Errorf("Columns() = %v", got)
	}
	want := [][]string{{"Oslo, Norway", "1"}, {"", "2"}, {"Rome", "3"}}
	if got := readAll(t, it); !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %q, want %q", got, want)
	}

	it, err = s.Open(context.Background(), ref, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := readAll(t, it); len(got) != 2 {
		t.Errorf("limited rows = %d, want 2", len(got))
	}

	_, err = s.Open(context.Background(), ref, []string{"zip"}, 0)
	if core.KindOf(err) != core.KindInvalidInput || !strings.Contains(err.Error(), "unknown column") {
		t.Errorf("unknown column error = %v", err)
	}
}

func TestOpenStopsOnCancel(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "a.csv", "x\n1\n2\n")

	ctx, cancel := context.WithCancel(context.Background())
	it, err := s.Open(ctx, core.FileRef{Name: "a.csv", Delimiter: ','}, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	if !it.Next() {
		t.Fatal("expected first row")
	}
	cancel()
	if it.Next() {
		t.Fatal("Next() after cancel = true")
	}
	if !errors.Is(it.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", it.Err())
	}
	if err := it.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestXLSXFirstSheet(t *testing.T) {
	s := newTestStore(t)

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	cells := map[string]any{"A1": "sku", "B1": "qty", "A2": "X-1", "B2": 4, "A3": "X-2", "B3": 9}
	for cell, v := range cells {
		if err := book.SetCellValue(sheet, cell, v); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := book.NewSheet("ignored"); err != nil {
		t.Fatal(err)
	}
	if err := book.SaveAs(filepath.Join(s.Root(), "stock.xlsx")); err != nil {
		t.Fatal(err)
	}
	book.Close()

	ref := core.FileRef{Name: "stock.xlsx"}
	it, err := s.Open(context.Background(), ref, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"X-1", "4"}, {"X-2", "9"}}
	if got := readAll(t, it); !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %q, want %q", got, want)
	}

	sch, err := s.InferSchema(context.Background(), ref, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := sch.String(); got != "sku String, qty Int64" {
		t.Errorf("schema = %q", got)
	}
}

func TestInferSchema(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "sales.csv", "date,amount,note\n2024-01-01,10.5,\n2024-01-02,3,x\n")
	ref := core.FileRef{Name: "sales.csv", Delimiter: ','}

	sch, err := s.InferSchema(context.Background(), ref, []string{"date", "amount"})
	if err != nil {
		t.Fatal(err)
	}
	if got := sch.String(); got != "date String, amount Float64" {
		t.Errorf("schema = %q", got)
	}

	ts := NewStore(Config{Root: s.Root(), DetectTimestamps: true})
	sch, err = ts.InferSchema(context.Background(), ref, []string{"date"})
	if err != nil {
		t.Fatal(err)
	}
	if col, _ := sch.Lookup("date"); col.Type != schema.TypeTimestamp {
		t.Errorf("date type = %v, want timestamp", col.Type)
	}
}

func TestSave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.Save(ctx, "in.csv", strings.NewReader("a\n1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "in.csv" || got.Size != 4 {
		t.Errorf("Save() = %+v", got)
	}

	if _, err := s.Save(ctx, "in.csv", strings.NewReader("b\n2\n")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(s.Root(), "in.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "b\n2\n" {
		t.Errorf("overwritten content = %q", data)
	}

	entries, _ := os.ReadDir(s.Root())
	if len(entries) != 1 {
		t.Errorf("root has %d entries, want 1 (temp files left behind)", len(entries))
	}
}

func TestSaveTooLarge(t *testing.T) {
	s := NewStore(Config{Root: t.TempDir(), MaxFileSize: 8})

	_, err := s.Save(context.Background(), "big.csv", strings.NewReader(strings.Repeat("x", 64)))
	if core.KindOf(err) != core.KindInvalidInput || !strings.Contains(err.Error(), "file too large") {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "big.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial upload left on disk: %v", err)
	}
}

func TestWriteRows(t *testing.T) {
	s := newTestStore(t)
	rows := tabular.NewSliceRows([]string{"id", "name"}, [][]any{{int64(1), "a;b"}, {int64(2), nil}})

	n, err := s.WriteRows(context.Background(), core.FileRef{Name: "out.csv", Delimiter: ';'}, []string{"id", "name"}, rows)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
	data, err := os.ReadFile(filepath.Join(s.Root(), "out.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "id;name\n1;\"a;b\"\n2;\n"; string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}

	rows = tabular.NewSliceRows([]string{"id", "name"}, [][]any{{int64(1), "a,b"}})
	if _, err := s.WriteRows(context.Background(), core.FileRef{Name: "out.tsv"}, []string{"id", "name"}, rows); err != nil {
		t.Fatal(err)
	}
	data, err = os.ReadFile(filepath.Join(s.Root(), "out.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "id\tname\n1\ta,b\n"; string(data) != want {
		t.Errorf("tsv content = %q, want %q", data, want)
	}

	_, err = s.WriteRows(context.Background(), core.FileRef{Name: "out.xlsx"}, []string{"id"}, tabular.NewSliceRows([]string{"id"}, nil))
	if core.KindOf(err) != core.KindInvalidInput {
		t.Errorf("xlsx output error = %v, want invalid input", err)
	}
}

func TestWriteRowsKeepsOldFileOnFailure(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, "keep.csv", "old\n")

	_, err := s.WriteRows(context.Background(), core.FileRef{Name: "keep.csv"}, []string{"x"}, &failingRows{})
	if err == nil {
		t.Fatal("expected error")
	}
	data, _ := os.ReadFile(filepath.Join(s.Root(), "keep.csv"))
	if string(data) != "old\n" {
		t.Errorf("content = %q, want original", data)
	}
}

type failingRows struct{ tabular.SliceRows }

func (*failingRows) Next() bool   { return false }
func (*failingRows) Err() error   { return errors.New("upstream broke") }
func (*failingRows) Close() error { return nil }
