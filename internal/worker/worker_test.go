package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bendaman/EvtFilter/internal/model"
	"github.com/Bendaman/EvtFilter/internal/report"
)

// fakeDecoder writes a shell script that mimics the decoder tool: it
// extracts the INTO destination from the query argument and emits the
// given XML body there (or fails, per mode).
func fakeDecoder(t *testing.T, mode, xml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "logparser.sh")

	var script string
	switch mode {
	case "ok":
		script = `#!/bin/sh
dst=$(printf '%s' "$1" | sed "s/^SELECT \* INTO \(.*\) FROM .*$/\1/")
cat > "$dst" <<'EOF'
` + xml + `
EOF
`
	case "empty":
		script = `#!/bin/sh
dst=$(printf '%s' "$1" | sed "s/^SELECT \* INTO \(.*\) FROM .*$/\1/")
: > "$dst"
`
	case "nofile":
		script = "#!/bin/sh\nexit 0\n"
	case "fail":
		script = "#!/bin/sh\necho 'cannot parse input' >&2\nexit 3\n"
	}

	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testJob(t *testing.T, tool string) model.Job {
	t.Helper()
	src := filepath.Join(t.TempDir(), "Security.evtx")
	if err := os.WriteFile(src, []byte("binary log"), 0o644); err != nil {
		t.Fatal(err)
	}
	return model.Job{
		SourceFile:  src,
		DecoderPath: tool,
		Start:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Delimiter:   ',',
		Placeholder: '§',
	}
}

func newRunner() *Runner {
	return New(report.New(zerolog.Nop(), ""), zerolog.Nop())
}

func TestProcessSuccess(t *testing.T) {
	// Staging happens under TMPDIR; point it somewhere observable so
	// cleanup can be verified after the job.
	staging := t.TempDir()
	t.Setenv("TMPDIR", staging)

	tool := fakeDecoder(t, "ok", `<?xml version="1.0"?><ROOT>
<ROW><TimeGenerated>2024-03-01 10:00:00</TimeGenerated><EventID>4624</EventID></ROW>
<ROW><TimeGenerated>2024-05-01 10:00:00</TimeGenerated><EventID>4624</EventID></ROW>
</ROOT>`)
	job := testJob(t, tool)

	res, err := newRunner().Process(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record inside the window, got %d", len(res.Records))
	}
	if res.Records[0][model.SourceColumn] != job.SourceFile {
		t.Errorf("SourceFile column = %q, want original path %q",
			res.Records[0][model.SourceColumn], job.SourceFile)
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "evtfilter_") {
			t.Errorf("staging dir leaked: %s", e.Name())
		}
	}
}

func TestProcessDecoderFailure(t *testing.T) {
	tool := fakeDecoder(t, "fail", "")
	job := testJob(t, tool)

	rep := report.New(zerolog.Nop(), "")
	r := New(rep, zerolog.Nop())

	_, err := r.Process(context.Background(), job)
	if err == nil {
		t.Fatal("expected error for non-zero decoder exit")
	}
	if !strings.Contains(err.Error(), "cannot parse input") {
		t.Errorf("error should carry captured stderr, got %q", err)
	}
	if !strings.Contains(err.Error(), "exit 3") {
		t.Errorf("error should carry the exit code, got %q", err)
	}
}

func TestProcessZeroByteOutput(t *testing.T) {
	tool := fakeDecoder(t, "empty", "")
	job := testJob(t, tool)

	res, err := newRunner().Process(context.Background(), job)
	if err != nil {
		t.Fatalf("zero-length output is informational, got error %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("expected zero records, got %d", len(res.Records))
	}
}

func TestProcessNoOutputFile(t *testing.T) {
	tool := fakeDecoder(t, "nofile", "")
	job := testJob(t, tool)

	res, err := newRunner().Process(context.Background(), job)
	if err != nil {
		t.Fatalf("missing output after exit 0 is informational, got error %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("expected zero records, got %d", len(res.Records))
	}
}

func TestProcessMissingSource(t *testing.T) {
	tool := fakeDecoder(t, "ok", "<ROOT></ROOT>")
	job := testJob(t, tool)
	job.SourceFile = filepath.Join(t.TempDir(), "gone.evtx")

	if _, err := newRunner().Process(context.Background(), job); err == nil {
		t.Error("expected staging error for missing source")
	}
}
