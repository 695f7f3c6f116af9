package aggregate

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/Bendaman/EvtFilter/internal/model"
)

func TestMergeSchemasFirstSeenOrder(t *testing.T) {
	results := []model.FileResult{
		{Columns: []string{"TimeGenerated", "EventID", "SourceFile"}},
		{Columns: []string{"TimeGenerated", "Message", "SourceFile"}},
		{Columns: []string{"SourceFile", "Extra", "EventID"}},
	}
	got := MergeSchemas(results)
	want := []string{"TimeGenerated", "EventID", "Message", "Extra", "SourceFile"}
	if len(got) != len(want) {
		t.Fatalf("schema = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMergeSchemasSourceFileAlwaysLast(t *testing.T) {
	// SourceFile first per-file must still end up last.
	results := []model.FileResult{
		{Columns: []string{"SourceFile", "A"}},
		{Columns: []string{"B", "SourceFile"}},
	}
	got := MergeSchemas(results)
	if got[len(got)-1] != model.SourceColumn {
		t.Fatalf("SourceFile not last: %v", got)
	}
}

func TestBuildAlignsMissingColumns(t *testing.T) {
	results := []model.FileResult{
		{
			SourceFile: "a.evtx",
			Columns:    []string{"EventID", "SourceFile"},
			Records:    []model.Record{{"EventID": "1", "SourceFile": "a.evtx"}},
		},
		{
			SourceFile: "b.evtx",
			Columns:    []string{"Message", "SourceFile"},
			Records:    []model.Record{{"Message": "hi", "SourceFile": "b.evtx"}},
		},
	}
	tab := Build(results)
	if len(tab.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tab.Rows))
	}
	// Columns: EventID, Message, SourceFile.
	if tab.Rows[0][1] != "" {
		t.Errorf("missing column must serialize empty, got %q", tab.Rows[0][1])
	}
	if tab.Rows[1][0] != "" || tab.Rows[1][1] != "hi" {
		t.Errorf("row misaligned: %v", tab.Rows[1])
	}
	if tab.Rows[0][2] != "a.evtx" || tab.Rows[1][2] != "b.evtx" {
		t.Errorf("SourceFile values misplaced: %v", tab.Rows)
	}
}

func TestSortResults(t *testing.T) {
	results := []model.FileResult{
		{SourceFile: "z.evtx"},
		{SourceFile: "a.evtx"},
		{SourceFile: "m.evtx"},
	}
	SortResults(results)
	if results[0].SourceFile != "a.evtx" || results[2].SourceFile != "z.evtx" {
		t.Errorf("results not sorted: %v", results)
	}
}

func TestWriteCSV(t *testing.T) {
	tab := &model.Table{
		Columns: []string{"EventID", "SourceFile"},
		Rows:    [][]string{{"4624", "a.evtx"}, {"4634", "b.evtx"}},
	}
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteCSV(tab, path, ',', false); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "EventID" || rows[1][0] != "4624" {
		t.Errorf("unexpected content: %v", rows)
	}
}

func TestWriteCSVGzip(t *testing.T) {
	tab := &model.Table{
		Columns: []string{"A"},
		Rows:    [][]string{{"1"}},
	}
	path := filepath.Join(t.TempDir(), "out.csv.gz")
	if err := WriteCSV(tab, path, ',', false); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("output is not gzip: %v", err)
	}
	rows, err := csv.NewReader(gz).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][0] != "1" {
		t.Errorf("unexpected gzip content: %v", rows)
	}
}

func TestWriteCSVCustomDelimiter(t *testing.T) {
	tab := &model.Table{
		Columns: []string{"A", "B"},
		Rows:    [][]string{{"1", "2"}},
	}
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteCSV(tab, path, ';', false); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "A;B\n1;2\n" {
		t.Errorf("unexpected file content: %q", data)
	}
}
