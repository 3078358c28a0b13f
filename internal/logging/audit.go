package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Auditor records stack-changing command invocations.
type Auditor interface {
	Record(command, stackName, callerARN string, cmdErr error) error
	Close() error
}

// AuditLogEntry is one audited command.
type AuditLogEntry struct {
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
	StackName string `json:"stack_name"`
	CallerARN string `json:"caller_arn,omitempty"`
	Result    string `json:"result"`
	Error     string `json:"error,omitempty"`
}

type auditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger creates an Auditor that appends entries to the file at path,
// creating the file and its directory if needed.
func NewAuditLogger(path string) (Auditor, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &auditLogger{file: f}, nil
}

// Record appends one entry. cmdErr is the command's result; nil is success.
func (a *auditLogger) Record(command, stackName, callerARN string, cmdErr error) error {
	entry := AuditLogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
		StackName: stackName,
		CallerARN: callerARN,
		Result:    "success",
	}
	if cmdErr != nil {
		entry.Result = "error"
		entry.Error = cmdErr.Error()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.file.Write(data); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// Close closes the underlying audit log file.
func (a *auditLogger) Close() error {
	return a.file.Close()
}
