package stack

import "fmt"

// Severity is how a resource status is presented to the operator.
type Severity int

const (
	// SeverityInfo marks work in progress.
	SeverityInfo Severity = iota
	// SeveritySuccess marks a completed create or update.
	SeveritySuccess
	// SeverityMuted marks resources that are gone or were skipped.
	SeverityMuted
	// SeverityFailure marks failures and rollbacks.
	SeverityFailure
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityMuted:
		return "muted"
	case SeverityFailure:
		return "failure"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Classification describes one resource status.
type Classification struct {
	Severity Severity
	// Terminal is true when the status is the end of a transition for the
	// resource. In-progress statuses are transient.
	Terminal bool
	// Failed is true for failure and rollback statuses.
	Failed bool
}

var (
	inProgress  = Classification{Severity: SeverityInfo}
	completed   = Classification{Severity: SeveritySuccess, Terminal: true}
	gone        = Classification{Severity: SeverityMuted, Terminal: true}
	failed      = Classification{Severity: SeverityFailure, Terminal: true, Failed: true}
	rollingBack = Classification{Severity: SeverityFailure, Failed: true}
)

// classifications is the closed set of statuses stackrun understands. The
// stack's own events use the stack-level rollback statuses as well.
var classifications = map[string]Classification{
	"CREATE_IN_PROGRESS":                  inProgress,
	"CREATE_FAILED":                       failed,
	"CREATE_COMPLETE":                     completed,
	"DELETE_IN_PROGRESS":                  inProgress,
	"DELETE_FAILED":                       failed,
	"DELETE_COMPLETE":                     gone,
	"DELETE_SKIPPED":                      gone,
	"UPDATE_IN_PROGRESS":                  inProgress,
	"UPDATE_COMPLETE_CLEANUP_IN_PROGRESS": inProgress,
	"UPDATE_FAILED":                       failed,
	"UPDATE_COMPLETE":                     completed,
	"ROLLBACK_IN_PROGRESS":                rollingBack,
	"ROLLBACK_COMPLETE":                   failed,

	"ROLLBACK_FAILED":                              failed,
	"UPDATE_ROLLBACK_IN_PROGRESS":                  rollingBack,
	"UPDATE_ROLLBACK_COMPLETE_CLEANUP_IN_PROGRESS": rollingBack,
	"UPDATE_ROLLBACK_COMPLETE":                     failed,
	"UPDATE_ROLLBACK_FAILED":                       failed,
}

// Classify maps a CloudFormation resource status to its classification.
// A status outside the recognized set is a defect in the caller's
// assumptions about the service and yields ErrUnknownStatus.
func Classify(status string) (Classification, error) {
	c, ok := classifications[status]
	if !ok {
		return Classification{}, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	return c, nil
}

// MustClassify is like Classify but panics on an unknown status.
func MustClassify(status string) Classification {
	c, err := Classify(status)
	if err != nil {
		panic(err)
	}
	return c
}

// Statuses returns every recognized status in no particular order.
func Statuses() []string {
	out := make([]string, 0, len(classifications))
	for s := range classifications {
		out = append(out, s)
	}
	return out
}

// IsTerminalStackStatus reports whether status ends a stack-level operation.
// Used on the stack's own events to detect the end of the event stream.
func IsTerminalStackStatus(status string) bool {
	switch status {
	case "CREATE_COMPLETE",
		"CREATE_FAILED",
		"UPDATE_COMPLETE",
		"UPDATE_FAILED",
		"UPDATE_ROLLBACK_COMPLETE",
		"UPDATE_ROLLBACK_FAILED",
		"ROLLBACK_COMPLETE",
		"ROLLBACK_FAILED",
		"DELETE_COMPLETE",
		"DELETE_FAILED":
		return true
	}
	return false
}
