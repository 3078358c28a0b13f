package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/SpiceLabsHQ/stackrun/internal/cli"
	"github.com/SpiceLabsHQ/stackrun/internal/deploy"
	"github.com/SpiceLabsHQ/stackrun/internal/stack"
)

// defaultStatusEvents is how many recent events status shows.
const defaultStatusEvents = 10

// recentEvents returns the latest events of a stack without waiting.
type recentEvents interface {
	Recent(ctx context.Context, name string, limit int) ([]stack.Event, error)
}

// statusDeps holds the injectable dependencies for the status command.
type statusDeps struct {
	stacks deploy.StackDescriber
	events recentEvents
	color  bool
}

// newStatusCommand creates the production status command.
func newStatusCommand() *cobra.Command {
	return newStatusCommandWithDeps(nil)
}

// newStatusCommandWithDeps creates the status command with explicit dependencies
// for testing.
func newStatusCommandWithDeps(deps *statusDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <stack-name>",
		Short: "Show a stack's status and its most recent events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runStatus(cmd, args[0], deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			return runStatus(cmd, args[0], &statusDeps{
				stacks: stack.NewService(clients.cfnClient),
				events: stack.NewPoller(clients.cfnClient),
				color:  clients.useColor(cli.FromCommand(cmd)),
			})
		},
	}

	cmd.Flags().Int("events", defaultStatusEvents, "Number of recent events to show (0 for none)")

	return cmd
}

// statusJSON is the JSON representation of a stack for --json output.
type statusJSON struct {
	Name         string            `json:"name"`
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	StatusReason string            `json:"status_reason,omitempty"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	Events       []statusEventJSON `json:"events,omitempty"`
}

type statusEventJSON struct {
	Timestamp         time.Time `json:"timestamp"`
	LogicalResourceID string    `json:"logical_resource_id"`
	ResourceType      string    `json:"resource_type"`
	Status            string    `json:"status"`
	Reason            string    `json:"reason,omitempty"`
}

// runStatus executes the status command logic.
func runStatus(cmd *cobra.Command, stackName string, deps *statusDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	jsonOutput := false
	if cliCtx := cli.FromCommand(cmd); cliCtx != nil {
		jsonOutput = cliCtx.JSON
	}
	limit, _ := cmd.Flags().GetInt("events")

	summary, events, err := describeStack(ctx, stackName, limit, deps)
	if err != nil {
		if jsonOutput {
			return reportJSONError(cmd, err)
		}
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return writeStatusJSON(w, summary, events)
	}
	writeStatusHuman(w, summary, events, deps.color)
	return nil
}

func describeStack(ctx context.Context, stackName string, limit int, deps *statusDeps) (stack.Summary, []stack.Event, error) {
	summaries, err := deps.stacks.Describe(ctx, stackName)
	if err != nil {
		if stack.IsNotFound(err) {
			return stack.Summary{}, nil, fmt.Errorf("stack %q not found", stackName)
		}
		return stack.Summary{}, nil, err
	}
	if len(summaries) != 1 {
		return stack.Summary{}, nil, fmt.Errorf("%w: %q matched %d stacks", stack.ErrAmbiguousIdentity, stackName, len(summaries))
	}

	if limit <= 0 {
		return summaries[0], nil, nil
	}
	events, err := deps.events.Recent(ctx, stackName, limit)
	if err != nil {
		return stack.Summary{}, nil, err
	}
	return summaries[0], events, nil
}

// writeStatusJSON outputs the stack and its events as a JSON object.
func writeStatusJSON(w io.Writer, s stack.Summary, events []stack.Event) error {
	obj := statusJSON{
		Name:         s.Name,
		ID:           s.ID,
		Status:       s.Status,
		StatusReason: s.StatusReason,
		Parameters:   s.Parameters,
	}
	for _, ev := range events {
		obj.Events = append(obj.Events, statusEventJSON{
			Timestamp:         ev.Timestamp,
			LogicalResourceID: ev.LogicalResourceID,
			ResourceType:      ev.ResourceType,
			Status:            ev.Status,
			Reason:            ev.Reason,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(obj)
}

// writeStatusHuman outputs the stack as aligned key-value lines followed by
// its recent events in the same format deploy streams them.
func writeStatusHuman(w io.Writer, s stack.Summary, events []stack.Event, color bool) {
	fmt.Fprintf(w, "%-8s %s\n", "Stack", s.Name)
	fmt.Fprintf(w, "%-8s %s\n", "ID", s.ID)
	fmt.Fprintf(w, "%-8s %s\n", "Status", s.Status)
	if s.StatusReason != "" {
		fmt.Fprintf(w, "%-8s %s\n", "Reason", s.StatusReason)
	}

	if len(events) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recent events:")
	report := deploy.NewReporter(w, color)
	for _, ev := range events {
		c, err := stack.Classify(ev.Status)
		if err != nil {
			c = stack.Classification{Severity: stack.SeverityInfo}
		}
		report.Event(ev, c)
	}
}
