package report

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const subscriberBuffer = 256

// Entry is one timestamped diagnostic line.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"message"`
}

// Reporter records failures and diagnostics without aborting the run.
// Every line is appended atomically to the error-log file, mirrored to
// the console logger, and broadcast to subscribers (the status server's
// websocket stream). Workers write concurrently; each write is a single
// complete line.
type Reporter struct {
	log     zerolog.Logger
	logPath string

	fileMu sync.Mutex

	subMu       sync.RWMutex
	subscribers []chan Entry
	dropped     int64

	failMu      sync.Mutex
	failEntries []Entry
	failures    int64
}

// New creates a Reporter appending to logPath and mirroring to log.
// An empty logPath disables the file (console and broadcast only).
func New(log zerolog.Logger, logPath string) *Reporter {
	return &Reporter{log: log, logPath: logPath}
}

// Failure records a job-level failure. It never returns an error:
// reporting must not be able to fail a job a second time.
func (r *Reporter) Failure(source string, err error) {
	e := Entry{Time: time.Now(), Level: "error", Source: source, Message: err.Error()}

	atomic.AddInt64(&r.failures, 1)
	r.failMu.Lock()
	r.failEntries = append(r.failEntries, e)
	r.failMu.Unlock()

	r.emit(e)
}

// Info records an informational diagnostic (zero-event files, skipped
// directories). Not counted as a failure.
func (r *Reporter) Info(source, msg string) {
	r.emit(Entry{Time: time.Now(), Level: "info", Source: source, Message: msg})
}

// Warn records a run-level warning, such as zero surviving rows.
func (r *Reporter) Warn(msg string) {
	r.emit(Entry{Time: time.Now(), Level: "warn", Message: msg})
}

// Failures returns how many failures have been reported so far.
func (r *Reporter) Failures() int64 {
	return atomic.LoadInt64(&r.failures)
}

// FailureEntries returns a copy of every failure reported so far, in
// arrival order. Feeds the run report's failure list.
func (r *Reporter) FailureEntries() []Entry {
	r.failMu.Lock()
	defer r.failMu.Unlock()
	out := make([]Entry, len(r.failEntries))
	copy(out, r.failEntries)
	return out
}

// Subscribe returns a buffered channel receiving every subsequent entry.
// A slow consumer drops entries rather than stalling workers.
func (r *Reporter) Subscribe() <-chan Entry {
	ch := make(chan Entry, subscriberBuffer)
	r.subMu.Lock()
	r.subscribers = append(r.subscribers, ch)
	r.subMu.Unlock()
	return ch
}

// Close closes all subscriber channels. Call once, after the pool has
// finished.
func (r *Reporter) Close() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subscribers {
		close(ch)
	}
	r.subscribers = nil
}

func (r *Reporter) emit(e Entry) {
	switch e.Level {
	case "error":
		r.log.Error().Str("source", e.Source).Msg(e.Message)
	case "warn":
		r.log.Warn().Msg(e.Message)
	default:
		r.log.Info().Str("source", e.Source).Msg(e.Message)
	}

	if r.logPath != "" {
		r.appendLine(e)
	}

	r.subMu.RLock()
	for _, ch := range r.subscribers {
		select {
		case ch <- e:
		default:
			atomic.AddInt64(&r.dropped, 1)
		}
	}
	r.subMu.RUnlock()
}

// appendLine writes one complete line to the error log. The file is
// opened in append mode per write so concurrent workers interleave
// whole lines, never fragments.
func (r *Reporter) appendLine(e Entry) {
	r.fileMu.Lock()
	defer r.fileMu.Unlock()

	f, err := os.OpenFile(r.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return // the log file must never take the run down
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s %s: %s\n",
		e.Time.Format(time.RFC3339), e.Level, e.Source, e.Message)
	_, _ = f.WriteString(line)
}
