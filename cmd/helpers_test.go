package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/SpiceLabsHQ/stackrun/internal/cli"
	"github.com/SpiceLabsHQ/stackrun/internal/stack"
)

// fakeStacks implements deploy.StackService. Describe results are served in
// order; the last one repeats.
type fakeStacks struct {
	mu        sync.Mutex
	describes []describeResult
	createErr error
	updateErr error
	deleteErr error
	requests  []stack.Request
	calls     []string
}

type describeResult struct {
	summaries []stack.Summary
	err       error
}

func (f *fakeStacks) Describe(_ context.Context, name string) ([]stack.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "describe "+name)
	if len(f.describes) == 0 {
		return nil, errors.New("unexpected describe")
	}
	r := f.describes[0]
	if len(f.describes) > 1 {
		f.describes = f.describes[1:]
	}
	return r.summaries, r.err
}

func (f *fakeStacks) Create(_ context.Context, req stack.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create "+req.Name)
	f.requests = append(f.requests, req)
	return f.createErr
}

func (f *fakeStacks) Update(_ context.Context, req stack.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update "+req.Name)
	f.requests = append(f.requests, req)
	return f.updateErr
}

func (f *fakeStacks) Delete(_ context.Context, req stack.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete "+req.Name)
	f.requests = append(f.requests, req)
	return f.deleteErr
}

func found(name, status string) describeResult {
	return describeResult{summaries: []stack.Summary{{
		Name:   name,
		ID:     "arn:aws:cloudformation:us-east-1:123456789012:stack/" + name + "/abc",
		Status: status,
	}}}
}

func notFound(name string) describeResult {
	return describeResult{err: errors.New("ValidationError: Stack with id " + name + " does not exist")}
}

// fakeEvents implements deploy.EventSource and recentEvents. Each Subscribe
// call consumes the next batch of events.
type fakeEvents struct {
	mu      sync.Mutex
	batches [][]stack.Event
	endErr  []error
	recent  []stack.Event
	limit   int
}

func (f *fakeEvents) Subscribe(context.Context, string, stack.SubscribeOptions) stack.EventStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &sliceStream{}
	if len(f.batches) > 0 {
		s.events = f.batches[0]
		f.batches = f.batches[1:]
	}
	if len(f.endErr) > 0 {
		s.err = f.endErr[0]
		f.endErr = f.endErr[1:]
	}
	return s
}

func (f *fakeEvents) Recent(_ context.Context, _ string, limit int) ([]stack.Event, error) {
	f.limit = limit
	return f.recent, nil
}

type sliceStream struct {
	events []stack.Event
	err    error
}

func (s *sliceStream) Next(context.Context) (stack.Event, error) {
	if len(s.events) == 0 {
		if s.err != nil {
			return stack.Event{}, s.err
		}
		return stack.Event{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func stackEv(name, status string) stack.Event {
	return stack.Event{
		EventID:           name + "-" + status,
		StackName:         name,
		LogicalResourceID: name,
		ResourceType:      "AWS::CloudFormation::Stack",
		Status:            status,
	}
}

// fakeStorage implements deploy.ObjectStorage.
type fakeStorage struct {
	mu      sync.Mutex
	buckets map[string][]string
}

func (f *fakeStorage) ListBuckets(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.buckets {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeStorage) ListObjects(_ context.Context, bucket string, _ int32) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[bucket], nil
}

func (f *fakeStorage) DeleteBucket(_ context.Context, bucket string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.buckets, bucket)
	return nil
}

// fakeAuditor implements logging.Auditor.
type fakeAuditor struct {
	records []auditRecord
	closed  bool
}

type auditRecord struct {
	command, stackName, callerARN string
	err                           error
}

func (a *fakeAuditor) Record(command, stackName, callerARN string, cmdErr error) error {
	a.records = append(a.records, auditRecord{command, stackName, callerARN, cmdErr})
	return nil
}

func (a *fakeAuditor) Close() error {
	a.closed = true
	return nil
}

// execute runs cmd with args and the given global flags, returning stdout
// and stderr.
func execute(t *testing.T, cmd *cobra.Command, cliCtx *cli.CLIContext, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("STACKRUN_NO_SPINNER", "1")

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	// Subcommands run standalone here; mirror the root command's setting.
	cmd.SilenceUsage = true
	if cliCtx == nil {
		cliCtx = &cli.CLIContext{}
	}
	cmd.SetContext(cli.WithContext(context.Background(), cliCtx))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
