package output

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true)
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("220")) // yellow
	styleFail   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
)

// Summary is what the operator sees at the end of a run.
type Summary struct {
	FilesScanned int
	FilesFailed  int64
	FilesEmpty   int64
	Rows         int64
	Output       string
	Elapsed      time.Duration
	Written      bool
}

// Render prints the run summary with severity-based styling.
func Render(w io.Writer, s Summary) {
	fmt.Fprintln(w, styleHeader.Render("evtfilter run complete"))
	fmt.Fprintf(w, "  %s %d file(s) scanned in %s\n",
		styleDim.Render("•"), s.FilesScanned, s.Elapsed.Truncate(time.Millisecond))

	if s.FilesFailed > 0 {
		fmt.Fprintf(w, "  %s %d file(s) failed — see the error log\n",
			styleFail.Render("✗"), s.FilesFailed)
	}
	if s.FilesEmpty > 0 {
		fmt.Fprintf(w, "  %s %d file(s) with no matching events\n",
			styleDim.Render("•"), s.FilesEmpty)
	}

	if s.Written {
		fmt.Fprintf(w, "  %s %d row(s) → %s\n", styleOK.Render("✓"), s.Rows, s.Output)
	} else {
		fmt.Fprintf(w, "  %s no matching events found, no output written\n",
			styleWarn.Render("!"))
	}
}
