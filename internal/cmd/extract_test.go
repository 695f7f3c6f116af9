package cmd

import (
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Bendaman/EvtFilter/internal/decoder"
)

func resetOpts(t *testing.T) {
	t.Helper()
	saved := opts
	t.Cleanup(func() { opts = saved })
	opts = runOpts{
		dir:         "/logs",
		out:         "out.csv",
		startDate:   "2024-03-01 00:00:00",
		endDate:     "2024-03-02 00:00:00",
		placeholder: "§",
	}
}

func TestRunSetup(t *testing.T) {
	resetOpts(t)
	opts.eventIDs = "4624,4625"
	opts.excludeIDs = "4634"

	window, include, exclude, placeholder, err := runSetup()
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !window.Start.Equal(want) {
		t.Errorf("window start = %v", window.Start)
	}
	if len(include) != 2 || len(exclude) != 1 {
		t.Errorf("id sets = %v / %v", include, exclude)
	}
	if placeholder != '§' {
		t.Errorf("placeholder = %q", placeholder)
	}
}

func TestRunSetupBadWindow(t *testing.T) {
	resetOpts(t)
	opts.startDate = "yesterday"

	if _, _, _, _, err := runSetup(); err == nil {
		t.Fatal("expected error for unparsable start date")
	}
}

func TestRunSetupBadPlaceholder(t *testing.T) {
	resetOpts(t)
	opts.placeholder = "##"

	if _, _, _, _, err := runSetup(); err == nil {
		t.Fatal("expected error for multi-char placeholder")
	}
}

func TestDecoderPathResolution(t *testing.T) {
	resetOpts(t)

	if got := decoderPath(); got != decoder.DefaultTool {
		t.Errorf("default = %q, want %q", got, decoder.DefaultTool)
	}

	viper.Set("logparser", "/opt/lp/LogParser.exe")
	t.Cleanup(func() { viper.Set("logparser", "") })
	if got := decoderPath(); got != "/opt/lp/LogParser.exe" {
		t.Errorf("config = %q", got)
	}

	opts.logparser = "/usr/local/bin/logparser"
	if got := decoderPath(); got != "/usr/local/bin/logparser" {
		t.Errorf("flag should win, got %q", got)
	}
}

func TestErrorLogPathDefaultsToOutput(t *testing.T) {
	resetOpts(t)

	if got := errorLogPath(); got != "out.csv.log" {
		t.Errorf("default log path = %q", got)
	}
	opts.logFile = "run.log"
	if got := errorLogPath(); got != "run.log" {
		t.Errorf("explicit log path = %q", got)
	}
}

func TestBuildJobs(t *testing.T) {
	resetOpts(t)

	window, include, exclude, placeholder, err := runSetup()
	if err != nil {
		t.Fatal(err)
	}
	jobs := buildJobs([]string{"/logs/a.evtx", "/logs/b.evt"}, window, include, exclude, placeholder)
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d", len(jobs))
	}
	if jobs[0].SourceFile != "/logs/a.evtx" || jobs[1].SourceFile != "/logs/b.evt" {
		t.Errorf("sources = %q, %q", jobs[0].SourceFile, jobs[1].SourceFile)
	}
	if jobs[0].Delimiter != ',' || jobs[0].Placeholder != '§' {
		t.Errorf("delimiter/placeholder = %q/%q", jobs[0].Delimiter, jobs[0].Placeholder)
	}
	if jobs[0].DecoderPath != decoder.DefaultTool {
		t.Errorf("decoder = %q", jobs[0].DecoderPath)
	}
}
