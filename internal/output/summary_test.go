package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestRenderWithOutput(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Summary{
		FilesScanned: 3,
		FilesFailed:  1,
		Rows:         42,
		Output:       "out.csv",
		Elapsed:      1500 * time.Millisecond,
		Written:      true,
	})

	got := buf.String()
	if !strings.Contains(got, "3 file(s) scanned") {
		t.Errorf("missing scan count: %q", got)
	}
	if !strings.Contains(got, "1 file(s) failed") {
		t.Errorf("missing failure line: %q", got)
	}
	if !strings.Contains(got, "42 row(s)") || !strings.Contains(got, "out.csv") {
		t.Errorf("missing output line: %q", got)
	}
}

func TestRenderNothingWritten(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Summary{FilesScanned: 2, FilesEmpty: 2, Written: false})

	got := buf.String()
	if !strings.Contains(got, "no output written") {
		t.Errorf("missing no-output warning: %q", got)
	}
	if strings.Contains(got, "failed") {
		t.Errorf("unexpected failure line: %q", got)
	}
}
