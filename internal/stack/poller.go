package stack

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	sraws "github.com/SpiceLabsHQ/stackrun/internal/aws"
)

// DefaultPollInterval is how often the event stream polls CloudFormation
// when no interval is configured.
const DefaultPollInterval = 4 * time.Second

// SubscribeOptions configures an event subscription.
type SubscribeOptions struct {
	// PollInterval is the delay between polls.
	PollInterval time.Duration

	// Since is the lower bound for reported events when the stack carries no
	// operation start time of its own. The stack's server-side creation,
	// update or deletion time takes precedence, so the local clock never
	// decides which events belong to the operation. Zero with no server
	// time means the most recent page.
	Since time.Time
}

// EventStream yields a stack's provisioning events in chronological order.
// Next returns io.EOF once DescribeStacks reports a terminal stack status and
// every event up to that point has been returned. Any other error ends the
// stream and is returned on every following call.
type EventStream interface {
	Next(ctx context.Context) (Event, error)
}

// Poller is an event source that polls DescribeStacks and
// DescribeStackEvents.
type Poller struct {
	cfn sraws.StackEventsAPI
}

// NewPoller constructs a Poller backed by the given CloudFormation client.
func NewPoller(cfn sraws.StackEventsAPI) *Poller {
	return &Poller{cfn: cfn}
}

// Subscribe opens a stream of events for name. Nothing is fetched until the
// first call to Next.
func (p *Poller) Subscribe(_ context.Context, name string, opts SubscribeOptions) EventStream {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &pollStream{
		cfn:      p.cfn,
		name:     name,
		interval: interval,
		since:    opts.Since,
		seen:     make(map[string]struct{}),
	}
}

type pollStream struct {
	cfn      sraws.StackEventsAPI
	name     string
	interval time.Duration
	since    time.Time

	seen     map[string]struct{}
	pending  []Event
	polled   bool
	anchored bool
	done     bool
	err      error
}

func (s *pollStream) Next(ctx context.Context) (Event, error) {
	for {
		// Fetched events are always handed out before cancellation or
		// errors are reported.
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.err != nil {
			return Event{}, s.err
		}
		if s.done {
			return Event{}, io.EOF
		}

		if s.polled {
			select {
			case <-ctx.Done():
				return Event{}, ctx.Err()
			case <-time.After(s.interval):
			}
		}
		s.polled = true

		if err := s.poll(ctx); err != nil {
			s.err = err
		}
	}
}

// poll reads the stack status, then queues the events that are new since
// the last poll. The status is read first so that a terminal status is only
// acted on once the events leading up to it have been fetched.
func (s *pollStream) poll(ctx context.Context) error {
	out, err := s.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(s.name),
	})
	if err != nil {
		return fmt.Errorf("poll stack %q status: %w", s.name, translateError(err))
	}
	if len(out.Stacks) == 0 {
		return fmt.Errorf("stack %q disappeared during polling: %w", s.name, ErrNotFound)
	}
	st := out.Stacks[0]

	// The first status read happens after the action was issued, so the
	// stack's latest timestamp marks the start of this operation.
	if !s.anchored {
		s.anchored = true
		if started := operationStart(st); !started.IsZero() {
			s.since = started
		}
	}

	if err := s.fetchEvents(ctx); err != nil {
		return err
	}
	if IsTerminalStackStatus(string(st.StackStatus)) {
		s.done = true
	}
	return nil
}

// fetchEvents queues events newer than anything already seen, oldest
// first. Paging stops at the first seen or pre-since event since
// CloudFormation returns events newest first.
func (s *pollStream) fetchEvents(ctx context.Context) error {
	paginator := cloudformation.NewDescribeStackEventsPaginator(s.cfn, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(s.name),
	})

	var fresh []Event
	stop := false
	for !stop && paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("describe stack events for %q: %w", s.name, translateError(err))
		}
		for _, e := range page.StackEvents {
			id := aws.ToString(e.EventId)
			if _, ok := s.seen[id]; ok {
				stop = true
				break
			}
			if e.Timestamp != nil && e.Timestamp.Before(s.since) {
				stop = true
				break
			}
			s.seen[id] = struct{}{}
			fresh = append(fresh, toEvent(e))
		}
		if s.since.IsZero() {
			break
		}
	}

	for i := len(fresh) - 1; i >= 0; i-- {
		s.pending = append(s.pending, fresh[i])
	}
	return nil
}

// operationStart returns the latest of the stack's creation, update and
// deletion times, truncated to the second so that the operation's own first
// event is never cut off by sub-second differences.
func operationStart(st cftypes.Stack) time.Time {
	var latest time.Time
	for _, t := range []*time.Time{st.CreationTime, st.LastUpdatedTime, st.DeletionTime} {
		if t != nil && t.After(latest) {
			latest = *t
		}
	}
	return latest.Truncate(time.Second)
}

// Recent returns up to limit of the most recent events for name, oldest
// first. Unlike Subscribe it never waits for the stack to settle.
func (p *Poller) Recent(ctx context.Context, name string, limit int) ([]Event, error) {
	out, err := p.cfn.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("describe stack events for %q: %w", name, translateError(err))
	}

	events := out.StackEvents
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	recent := make([]Event, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		recent = append(recent, toEvent(events[i]))
	}
	return recent, nil
}

func toEvent(e cftypes.StackEvent) Event {
	return Event{
		EventID:           aws.ToString(e.EventId),
		StackName:         aws.ToString(e.StackName),
		LogicalResourceID: aws.ToString(e.LogicalResourceId),
		ResourceType:      aws.ToString(e.ResourceType),
		Status:            string(e.ResourceStatus),
		Reason:            aws.ToString(e.ResourceStatusReason),
		Timestamp:         aws.ToTime(e.Timestamp),
	}
}
