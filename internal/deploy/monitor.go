package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/SpiceLabsHQ/stackrun/internal/stack"
)

// ErrMonitorActive is returned when a second monitor is started for a stack
// name that is already being monitored.
var ErrMonitorActive = errors.New("stack is already being monitored")

// EventSource opens live event subscriptions for a stack name.
type EventSource interface {
	Subscribe(ctx context.Context, name string, opts stack.SubscribeOptions) stack.EventStream
}

// StackDescriber looks up the current state of a stack.
type StackDescriber interface {
	Describe(ctx context.Context, name string) ([]stack.Summary, error)
}

// Outcome is what the monitor concluded once the event stream ended.
type Outcome struct {
	Action stack.Action

	// FinalStatus is the last stack-level status observed, or the status
	// returned by the post-create describe.
	FinalStatus string

	// NeedsCleanupDelete is set when a create ended in ROLLBACK_COMPLETE and
	// the stack has to be deleted before it can be created again.
	NeedsCleanupDelete bool

	// CleanupSkipped is set when the post-create describe did not match
	// exactly one stack.
	CleanupSkipped bool
}

// Monitor follows one stack operation through its event stream.
type Monitor struct {
	source       EventSource
	stacks       StackDescriber
	report       *Reporter
	pollInterval time.Duration

	mu     sync.Mutex
	active map[string]struct{}
}

// NewMonitor constructs a Monitor. A zero pollInterval uses
// stack.DefaultPollInterval.
func NewMonitor(source EventSource, stacks StackDescriber, report *Reporter, pollInterval time.Duration) *Monitor {
	if pollInterval <= 0 {
		pollInterval = stack.DefaultPollInterval
	}
	return &Monitor{
		source:       source,
		stacks:       stacks,
		report:       report,
		pollInterval: pollInterval,
		active:       make(map[string]struct{}),
	}
}

// Monitor consumes name's events for the current operation, writing one line
// per event, until the stream ends or fails. The stream anchors on the
// stack's own operation start time; since is used only when the service
// reports none.
//
// For a delete, a stream that fails because the stack no longer exists is a
// successful completion. For a create, the stack is described once more at
// the end to detect a ROLLBACK_COMPLETE stack that needs deleting.
func (m *Monitor) Monitor(ctx context.Context, name string, action stack.Action, since time.Time) (Outcome, error) {
	if err := m.acquire(name); err != nil {
		return Outcome{Action: action}, err
	}
	defer m.release(name)

	outcome := Outcome{Action: action}
	events := m.source.Subscribe(ctx, name, stack.SubscribeOptions{
		PollInterval: m.pollInterval,
		Since:        since,
	})

	for {
		ev, err := events.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if action == stack.ActionDelete && stack.IsNotFound(err) {
				m.report.Printf("Deletion complete.")
				outcome.FinalStatus = "DELETE_COMPLETE"
				return outcome, nil
			}
			return outcome, fmt.Errorf("monitor stack %q: %w", name, err)
		}

		c, err := stack.Classify(ev.Status)
		if err != nil {
			return outcome, fmt.Errorf("monitor stack %q: event %s for %s: %w",
				name, ev.EventID, ev.LogicalResourceID, err)
		}
		m.report.Event(ev, c)
		if ev.IsStackEvent() {
			outcome.FinalStatus = ev.Status
		}
	}

	if action != stack.ActionCreate {
		return outcome, nil
	}
	return m.checkCreate(ctx, name, outcome)
}

// checkCreate describes the stack after a create finished and flags a
// ROLLBACK_COMPLETE stack for deletion.
func (m *Monitor) checkCreate(ctx context.Context, name string, outcome Outcome) (Outcome, error) {
	m.report.Printf("Starting cleanup...")

	summaries, err := m.stacks.Describe(ctx, name)
	if err != nil && !stack.IsNotFound(err) {
		m.report.Printf("Error getting stack info for cleanup: %v", err)
		return outcome, fmt.Errorf("describe stack %q for cleanup: %w", name, err)
	}

	if len(summaries) != 1 {
		m.report.Printf("Skipping cleanup: %v (%d matches)", stack.ErrAmbiguousIdentity, len(summaries))
		outcome.CleanupSkipped = true
		return outcome, nil
	}

	outcome.FinalStatus = summaries[0].Status
	if summaries[0].Status == "ROLLBACK_COMPLETE" {
		outcome.NeedsCleanupDelete = true
	}
	return outcome, nil
}

func (m *Monitor) acquire(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[name]; ok {
		return fmt.Errorf("%w: %s", ErrMonitorActive, name)
	}
	m.active[name] = struct{}{}
	return nil
}

func (m *Monitor) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, name)
}
