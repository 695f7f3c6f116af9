package filter

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/Bendaman/EvtFilter/internal/model"
)

// Layouts the decoder tool has been observed to use for TimeGenerated.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04:05",
}

// Apply runs the Job's time and EventID filters over a decoded document
// and normalizes every surviving record into display-safe text. The
// original (pre-staged) source path is appended as the SourceFile column.
func Apply(doc *model.Document, job model.Job) *model.FileResult {
	rows := doc.Rows

	if hasColumn(doc.Columns, model.TimeColumn) {
		w := Window{Start: job.Start, End: job.End}
		kept := rows[:0:0]
		for _, rec := range rows {
			t, ok := parseTimestamp(rec[model.TimeColumn])
			// Unparsable timestamps never satisfy the bounds.
			if ok && w.Contains(t) {
				kept = append(kept, rec)
			}
		}
		rows = kept
	}

	if hasColumn(doc.Columns, model.EventIDColumn) {
		if job.Include != nil {
			kept := rows[:0:0]
			for _, rec := range rows {
				if id, ok := eventID(rec); ok {
					if _, member := job.Include[id]; member {
						kept = append(kept, rec)
					}
				}
			}
			rows = kept
		}
		if job.Exclude != nil {
			kept := rows[:0:0]
			for _, rec := range rows {
				if id, ok := eventID(rec); ok {
					if _, member := job.Exclude[id]; member {
						continue
					}
				}
				kept = append(kept, rec)
			}
			rows = kept
		}
	}

	out := make([]model.Record, 0, len(rows))
	for _, rec := range rows {
		norm := make(model.Record, len(rec)+1)
		for col, val := range rec {
			norm[col] = Normalize(val, job.Delimiter, job.Placeholder)
		}
		norm[model.SourceColumn] = job.SourceFile
		out = append(out, norm)
	}

	cols := make([]string, 0, len(doc.Columns)+1)
	for _, c := range doc.Columns {
		if c != model.SourceColumn {
			cols = append(cols, c)
		}
	}
	cols = append(cols, model.SourceColumn)

	return &model.FileResult{
		SourceFile: job.SourceFile,
		Columns:    cols,
		Records:    out,
	}
}

// Normalize makes a field value display-safe: embedded binary content is
// re-decoded as UTF-16LE, and every literal occurrence of the output
// delimiter is replaced with the placeholder so the serialized table
// never misreads an in-field delimiter as a column boundary.
func Normalize(val string, delimiter, placeholder rune) string {
	if strings.ContainsRune(val, 0) {
		val = decodeUTF16LE([]byte(val))
	}
	return strings.ReplaceAll(val, string(delimiter), string(placeholder))
}

// decodeUTF16LE reinterprets raw bytes as UTF-16 little-endian text,
// discarding anything that does not decode.
func decodeUTF16LE(raw []byte) string {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	s, err := dec.String(string(raw))
	if err != nil {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r == '�' || r == 0 {
			return -1
		}
		return r
	}, s)
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func eventID(rec model.Record) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(rec[model.EventIDColumn]))
	if err != nil {
		return 0, false
	}
	return id, true
}

func hasColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
