package model

import "time"

// Well-known column names produced by the decoder tool.
const (
	TimeColumn    = "TimeGenerated"
	EventIDColumn = "EventID"
	SourceColumn  = "SourceFile"
)

// Record maps column names to field values for a single event.
// After normalization every value is display-safe text.
type Record map[string]string

// Document is the tabular form of one decoder XML output:
// the columns in first-seen order plus one Record per <ROW> element.
type Document struct {
	Columns []string
	Rows    []Record
}

// Job describes one extraction task: a single source log file plus the
// filter parameters it is processed under. Built once per discovered
// file, never mutated afterwards.
type Job struct {
	SourceFile  string
	DecoderPath string
	Start       time.Time        // inclusive window bound
	End         time.Time        // inclusive window bound
	Include     map[int]struct{} // nil means no inclusion filter
	Exclude     map[int]struct{} // nil means no exclusion filter
	Delimiter   rune
	Placeholder rune
}

// FileResult is the successful outcome of one job: the surviving records
// from one source file. Zero records is a valid outcome (empty window,
// empty file). A failed job produces no FileResult at all.
type FileResult struct {
	SourceFile string
	Columns    []string
	Records    []Record
}

// Table is the final merged output: one schema, one row per record,
// assembled once after all jobs complete.
type Table struct {
	Columns []string
	Rows    [][]string
}
