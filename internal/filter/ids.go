package filter

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadIDSet builds an EventID set from an inline comma-separated list
// and/or a file with one ID per line. It returns nil when both sources
// are absent — nil means "no filtering", while a non-nil empty set
// filters everything out. Any token that is not a valid integer is a
// fatal startup error, not a per-job one.
func LoadIDSet(inline, path string) (map[int]struct{}, error) {
	if inline == "" && path == "" {
		return nil, nil
	}

	ids := make(map[int]struct{})
	for _, tok := range strings.Split(inline, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		id, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid EventID %q in list", tok)
		}
		ids[id] = struct{}{}
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open EventID file: %w", err)
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			id, err := strconv.Atoi(line)
			if err != nil {
				return nil, fmt.Errorf("invalid EventID %q in %s", line, path)
			}
			ids[id] = struct{}{}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read EventID file: %w", err)
		}
	}

	return ids, nil
}

// Window is the inclusive [Start, End] time range used to admit records.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

var windowLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseWindow parses the start and end bounds. A date without a time
// component is accepted and means midnight.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseBound(start)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := parseBound(end)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	return Window{Start: s, End: e}, nil
}

func parseBound(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range windowLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
