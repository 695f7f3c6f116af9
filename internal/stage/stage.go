package stage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// The decoder tool chokes on percent signs in file names, so staged
// copies get a sanitized basename.
var percentRuns = regexp.MustCompile(`%+`)

// Staged is a safely-named temporary copy (or hard link) of a source
// file, isolated in its own temp directory. The worker that created it
// owns it for the lifetime of one job and must call Cleanup on every
// exit path.
type Staged struct {
	Path string
	dir  string
}

// Dir returns the owning temporary directory. The decoder's output
// document is placed here so everything vanishes in one Cleanup.
func (s *Staged) Dir() string {
	return s.dir
}

// Cleanup removes the staged file and its temp directory. Safe to call
// more than once.
func (s *Staged) Cleanup() {
	if s.dir != "" {
		os.RemoveAll(s.dir)
		s.dir = ""
	}
}

// Stage places src into a fresh temp directory under a sanitized, unique
// name. A hard link is preferred (no copy penalty for multi-gigabyte
// logs on the same volume); a byte-for-byte copy is the fallback when
// linking is unsupported or crosses volumes.
func Stage(src string) (*Staged, error) {
	dir, err := os.MkdirTemp("", "evtfilter_")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	name := SafeName(filepath.Base(src))
	dst := filepath.Join(dir, name)

	if err := os.Link(src, dst); err != nil {
		if err := copyFile(src, dst); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("stage %s: %w", src, err)
		}
	}

	return &Staged{Path: dst, dir: dir}, nil
}

// SafeName sanitizes a basename for the decoder tool and prefixes a
// random component so concurrent workers staging files with the same
// basename never collide.
func SafeName(base string) string {
	clean := percentRuns.ReplaceAllString(base, "_")
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return id + "_" + clean
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
