package discover

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// IsEventLog reports whether path has a Windows event-log extension.
// The match is case-insensitive (.evt, .evtx).
func IsEventLog(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".evt", ".evtx":
		return true
	}
	return false
}

// Find walks root recursively and returns every event-log file under it.
// An empty result is not an error; the caller decides whether that is
// fatal. Unreadable entries are logged and skipped — discovery never
// aborts because of a permission problem partway down the tree.
func Find(root string, log zerolog.Logger) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && IsEventLog(path) {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// Expand resolves a glob pattern to matching event-log files.
// Supports recursive patterns like /cases/**/*.evtx via doublestar.
func Expand(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	var files []string
	for _, m := range matches {
		if IsEventLog(m) {
			files = append(files, m)
		}
	}
	return files, nil
}
