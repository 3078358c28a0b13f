// Package logging records AWS API calls and command invocations. API calls
// are appended as JSON Lines to one file per day under
// ~/.config/stackrun/logs/, fed by an SDK middleware (see APIOptions). Audit
// entries are appended as JSON Lines to ~/.config/stackrun/audit.log.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger records AWS API calls.
type Logger interface {
	Log(service, operation string, duration time.Duration, err error)
	SetStderr(w io.Writer)
}

// StructuredLogEntry is one AWS API call.
type StructuredLogEntry struct {
	Timestamp  string `json:"timestamp"`
	Service    string `json:"service"`
	Operation  string `json:"operation"`
	DurationMs int64  `json:"duration_ms"`
	Result     string `json:"result"`
	Error      string `json:"error,omitempty"`
}

// structuredLogger appends entries to a daily file in dir and, in debug
// mode, mirrors them to stderr. Event polling and the bucket sweep log from
// several goroutines, so writes are serialized.
type structuredLogger struct {
	mu     sync.Mutex
	dir    string
	debug  bool
	stderr io.Writer
	now    func() time.Time
}

// NewStructuredLogger creates a Logger that writes to dir, creating it if
// needed. When debug is true each entry is also written to stderr.
func NewStructuredLogger(dir string, debug bool) (Logger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &structuredLogger{
		dir:    dir,
		debug:  debug,
		stderr: os.Stderr,
		now:    time.Now,
	}, nil
}

// SetStderr overrides the writer used for debug output.
func (l *structuredLogger) SetStderr(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stderr = w
}

// Log appends one entry. Failures to write are ignored; logging must never
// fail a deployment.
func (l *structuredLogger) Log(service, operation string, duration time.Duration, err error) {
	now := l.now().UTC()
	entry := StructuredLogEntry{
		Timestamp:  now.Format(time.RFC3339),
		Service:    service,
		Operation:  operation,
		DurationMs: duration.Milliseconds(),
		Result:     "success",
	}
	if err != nil {
		entry.Result = "error"
		entry.Error = err.Error()
	}

	data, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, fmt.Sprintf("api-%s.log", now.Format("20060102")))
	if f, openErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600); openErr == nil {
		_, _ = f.Write(data)
		_ = f.Close()
	}

	if l.debug && l.stderr != nil {
		_, _ = l.stderr.Write(data)
	}
}
