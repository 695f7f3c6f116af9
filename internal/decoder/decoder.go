package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultTool is the decoder binary assumed to be on the search path.
const DefaultTool = "LogParser.exe"

// Invocation captures everything observable about one decoder run.
type Invocation struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Diagnostic folds the exit code and both streams into one line suitable
// for the error log.
func (inv Invocation) Diagnostic() string {
	return fmt.Sprintf("exit %d; STDERR: %s; STDOUT: %s",
		inv.ExitCode, strings.TrimSpace(inv.Stderr), strings.TrimSpace(inv.Stdout))
}

// BuildArgs builds the decoder command line that parses src into an XML
// document at dst: a generic event-log read with one <ROW> element per
// record and quiet output.
func BuildArgs(src, dst string) []string {
	query := fmt.Sprintf("SELECT * INTO %s FROM '%s'", dst, src)
	return []string{
		query,
		"-i:EVT", // the EVT plug-in parses both .evt and .evtx
		"-o:XML",
		"-structure:1",
		"-q:ON",
	}
}

// Run invokes the decoder tool as a subprocess, capturing both streams
// and the exit code. A non-zero exit is returned as an error alongside
// the captured diagnostics; the caller decides how to report it.
func Run(ctx context.Context, tool, src, dst string) (Invocation, error) {
	cmd := exec.CommandContext(ctx, tool, BuildArgs(src, dst)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	inv := Invocation{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			inv.ExitCode = exitErr.ExitCode()
			return inv, fmt.Errorf("decoder failed: %s", inv.Diagnostic())
		}
		return inv, fmt.Errorf("decoder did not start: %w", err)
	}
	return inv, nil
}
