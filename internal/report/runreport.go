package report

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// RunReport is the machine-readable summary of one extraction run,
// written next to the output artifact when requested.
type RunReport struct {
	Output       string    `json:"output"`
	StartedAt    time.Time `json:"started_at"`
	Duration     string    `json:"duration"`
	FilesScanned int       `json:"files_scanned"`
	FilesDone    int64     `json:"files_done"`
	FilesFailed  int64     `json:"files_failed"`
	FilesEmpty   int64     `json:"files_empty"`
	Rows         int64     `json:"rows"`
	Failures     []Entry   `json:"failures,omitempty"`
}

// WriteRunReport writes the report as indented JSON, via a temp file and
// rename so a crash never leaves a truncated report behind.
func WriteRunReport(path string, rep RunReport) error {
	raw, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
