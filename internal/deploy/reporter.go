package deploy

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"

	"github.com/SpiceLabsHQ/stackrun/internal/stack"
)

// linePrefix starts every line on the status stream.
const linePrefix = "  | "

// Reporter writes the status stream: one line per classified event and per
// cleanup action, in the order they happen. Safe for concurrent use.
type Reporter struct {
	mu      sync.Mutex
	w       io.Writer
	color   bool
	verbose bool
	styles  map[stack.Severity]lipgloss.Style
}

// NewReporter returns a Reporter writing to w. A nil w discards output.
// When color is false statuses are written without ANSI styling.
func NewReporter(w io.Writer, color bool) *Reporter {
	if w == nil {
		w = io.Discard
	}
	return &Reporter{
		w:     w,
		color: color,
		styles: map[stack.Severity]lipgloss.Style{
			stack.SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
			stack.SeveritySuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
			stack.SeverityMuted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
			stack.SeverityFailure: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		},
	}
}

// Event writes the line for one provisioning event:
//
//	{prefix}{status} {logical id}[ - {reason}]
func (r *Reporter) Event(ev stack.Event, c stack.Classification) {
	var b strings.Builder
	b.WriteString(linePrefix)
	b.WriteString(r.status(ev.Status, c.Severity))
	b.WriteByte(' ')
	b.WriteString(ev.LogicalResourceID)
	if ev.Reason != "" {
		b.WriteString(" - ")
		b.WriteString(ev.Reason)
	}
	r.writeLine(b.String())
}

// Printf writes a prefixed free-form line.
func (r *Reporter) Printf(format string, args ...any) {
	r.writeLine(linePrefix + fmt.Sprintf(format, args...))
}

// SetVerbose enables the step lines written by Stepf.
func (r *Reporter) SetVerbose(verbose bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verbose = verbose
}

// Stepf writes a prefixed line describing an internal step. It is dropped
// unless verbose output was enabled.
func (r *Reporter) Stepf(format string, args ...any) {
	r.mu.Lock()
	verbose := r.verbose
	r.mu.Unlock()
	if verbose {
		r.writeLine(linePrefix + fmt.Sprintf(format, args...))
	}
}

func (r *Reporter) status(s string, sev stack.Severity) string {
	if !r.color {
		return s
	}
	style, ok := r.styles[sev]
	if !ok {
		return s
	}
	return style.Render(s)
}

func (r *Reporter) writeLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, line)
}
