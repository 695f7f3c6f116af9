package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Bendaman/EvtFilter/internal/model"
)

// MergeSchemas computes the union of all per-file column lists in
// first-seen order, with SourceFile forced to the final position no
// matter where it appeared per-file.
func MergeSchemas(results []model.FileResult) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, res := range results {
		for _, c := range res.Columns {
			if c == model.SourceColumn || seen[c] {
				continue
			}
			seen[c] = true
			cols = append(cols, c)
		}
	}
	return append(cols, model.SourceColumn)
}

// Build concatenates all per-file results into one table under the
// merged schema. Order follows worker completion order, which is not
// deterministic across files; deterministic callers sort the results
// first (see SortResults).
func Build(results []model.FileResult) *model.Table {
	cols := MergeSchemas(results)
	t := &model.Table{Columns: cols}
	for _, res := range results {
		for _, rec := range res.Records {
			row := make([]string, len(cols))
			for i, c := range cols {
				row[i] = rec[c]
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// SortResults orders per-file results by source path. Rows within a
// file keep their original order, so the combination gives a fully
// deterministic output.
func SortResults(results []model.FileResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SourceFile < results[j].SourceFile
	})
}

// WriteCSV writes the table as delimited text with minimal quoting:
// a header row, then one row per record. A path ending in .gz (or the
// compress flag) wraps the writer in gzip.
func WriteCSV(t *model.Table, path string, delimiter rune, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if compress || strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	cw := csv.NewWriter(w)
	cw.Comma = delimiter

	if err := cw.Write(t.Columns); err != nil {
		f.Close()
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return err
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}
