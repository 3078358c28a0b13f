// Package progress shows what stackrun is waiting on while CloudFormation
// works.
//
// On a terminal (and with STACKRUN_NO_SPINNER unset) a Spinner animates a
// braille frame on the last line. Anything written through the Spinner, which
// is an io.Writer, first clears that line so status lines scroll above the
// animation. Elsewhere each message becomes a plain timestamped line:
//
//	[12:34:56] Deploying stack web...
//
// Stop and Fail are safe before Start and safe to repeat.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// SpinnerFrames are the animation frames used on a terminal.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const (
	tickInterval = 80 * time.Millisecond
	clearLine    = "\r\033[K"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Spinner reports progress on a single status message.
type Spinner struct {
	// Interactive selects the animated mode. New sets it from the
	// environment; tests override it to force a mode.
	Interactive bool

	// Writer receives all output.
	Writer io.Writer

	mu      sync.Mutex
	msg     string
	frame   int
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New returns a Spinner writing to w, or to os.Stdout when w is nil. The mode
// follows os.Stdout even when w is something else, so output matches what a
// terminal user would see.
func New(w io.Writer) *Spinner {
	if w == nil {
		w = os.Stdout
	}
	return &Spinner{
		Interactive: os.Getenv("STACKRUN_NO_SPINNER") != "1" && IsTerminal(os.Stdout),
		Writer:      w,
	}
}

// NewCommandSpinner returns the Spinner a command uses. A quiet spinner (the
// --json path) discards everything and never animates.
func NewCommandSpinner(w io.Writer, quiet bool) *Spinner {
	if !quiet {
		return New(w)
	}
	sp := New(io.Discard)
	sp.Interactive = false
	return sp
}

// Start shows msg. On a running Spinner it only replaces the message.
func (s *Spinner) Start(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msg = msg
	switch {
	case s.running:
	case s.Interactive:
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		s.running = true
		go s.spin()
	default:
		s.stamp(msg)
	}
}

// Update replaces the message. Plain mode writes a new line for it.
func (s *Spinner) Update(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msg = msg
	if !s.Interactive {
		s.stamp(msg)
	}
}

// Stop ends the animation and prints msg, if any, as the final line.
func (s *Spinner) Stop(msg string) { s.finish(msg) }

// Fail is Stop for an unsuccessful outcome.
func (s *Spinner) Fail(msg string) { s.finish(msg) }

// Write writes p above the animated line.
func (s *Spinner) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		fmt.Fprint(s.Writer, clearLine)
	}
	return s.Writer.Write(p)
}

func (s *Spinner) finish(msg string) {
	s.mu.Lock()
	wasRunning := s.running
	if wasRunning {
		close(s.stop)
		s.running = false
	}
	s.mu.Unlock()

	if wasRunning {
		// The ticker must be gone before the final line is written.
		<-s.done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if wasRunning {
		fmt.Fprint(s.Writer, clearLine)
	}
	switch {
	case msg == "":
	case s.Interactive:
		fmt.Fprintln(s.Writer, msg)
	default:
		s.stamp(msg)
	}
}

func (s *Spinner) spin() {
	defer close(s.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			fmt.Fprintf(s.Writer, "\r%s %s", SpinnerFrames[s.frame%len(SpinnerFrames)], s.msg)
			s.frame++
			s.mu.Unlock()
		}
	}
}

// stamp writes a timestamped line. Callers hold mu.
func (s *Spinner) stamp(msg string) {
	fmt.Fprintf(s.Writer, "[%s] %s\n", time.Now().Format("15:04:05"), msg)
}
