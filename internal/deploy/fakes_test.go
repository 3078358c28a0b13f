package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SpiceLabsHQ/stackrun/internal/stack"
)

// ---------------------------------------------------------------------------
// Event source
// ---------------------------------------------------------------------------

// scriptedStream yields events, then err (io.EOF when nil).
type scriptedStream struct {
	events []stack.Event
	err    error
	i      int
}

func (s *scriptedStream) Next(ctx context.Context) (stack.Event, error) {
	if s.i < len(s.events) {
		ev := s.events[s.i]
		s.i++
		return ev, nil
	}
	if s.err != nil {
		return stack.Event{}, s.err
	}
	return stack.Event{}, io.EOF
}

// blockingStream blocks until release is closed or ctx is done.
type blockingStream struct {
	release chan struct{}
}

func (s *blockingStream) Next(ctx context.Context) (stack.Event, error) {
	select {
	case <-s.release:
		return stack.Event{}, io.EOF
	case <-ctx.Done():
		return stack.Event{}, ctx.Err()
	}
}

type subscription struct {
	name string
	opts stack.SubscribeOptions
}

// fakeSource hands out streams in order, one per Subscribe call.
type fakeSource struct {
	mu         sync.Mutex
	streams    []stack.EventStream
	subs       []subscription
	subscribed chan struct{}
}

func (f *fakeSource) Subscribe(_ context.Context, name string, opts stack.SubscribeOptions) stack.EventStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, subscription{name: name, opts: opts})
	if f.subscribed != nil {
		f.subscribed <- struct{}{}
	}
	if len(f.streams) == 0 {
		return &scriptedStream{}
	}
	s := f.streams[0]
	f.streams = f.streams[1:]
	return s
}

func streams(s ...stack.EventStream) *fakeSource {
	return &fakeSource{streams: s}
}

// ---------------------------------------------------------------------------
// Stack service
// ---------------------------------------------------------------------------

type describeResult struct {
	summaries []stack.Summary
	err       error
}

// fakeStacks serves Describe results in order and records every call.
type fakeStacks struct {
	mu        sync.Mutex
	describes []describeResult
	createErr error
	updateErr error
	deleteErr error
	calls     []string
}

func (f *fakeStacks) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeStacks) Describe(_ context.Context, name string) ([]stack.Summary, error) {
	f.record("describe " + name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.describes) == 0 {
		return nil, errors.New("unexpected describe")
	}
	r := f.describes[0]
	f.describes = f.describes[1:]
	return r.summaries, r.err
}

func (f *fakeStacks) Create(_ context.Context, req stack.Request) error {
	f.record("create " + req.Name)
	return f.createErr
}

func (f *fakeStacks) Update(_ context.Context, req stack.Request) error {
	f.record("update " + req.Name)
	return f.updateErr
}

func (f *fakeStacks) Delete(_ context.Context, req stack.Request) error {
	f.record("delete " + req.Name)
	return f.deleteErr
}

func exists(name, status string) describeResult {
	return describeResult{summaries: []stack.Summary{{Name: name, Status: status}}}
}

func missing(name string) describeResult {
	return describeResult{err: fmt.Errorf("describe stack %q: %w", name, stack.ErrNotFound)}
}

// ---------------------------------------------------------------------------
// Object storage
// ---------------------------------------------------------------------------

// fakeStorage holds bucket contents. Safe for the concurrent sweep.
type fakeStorage struct {
	mu        sync.Mutex
	buckets   map[string][]string
	listErr   error
	objectErr map[string]error
	deleteErr map[string]error
	deleted   []string
}

func (f *fakeStorage) ListBuckets(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.buckets))
	for name := range f.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeStorage) ListObjects(_ context.Context, bucket string, limit int32) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.objectErr[bucket]; err != nil {
		return nil, err
	}
	keys := f.buckets[bucket]
	if int32(len(keys)) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

func (f *fakeStorage) DeleteBucket(_ context.Context, bucket string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[bucket]; err != nil {
		return err
	}
	delete(f.buckets, bucket)
	f.deleted = append(f.deleted, bucket)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// syncBuffer collects reporter output from concurrent sweeps.
type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func (b *syncBuffer) Lines() []string {
	return strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
}

func newTestReporter() (*Reporter, *syncBuffer) {
	buf := &syncBuffer{}
	return NewReporter(buf, false), buf
}

var testStart = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func stackEvent(name, status, reason string) stack.Event {
	return stack.Event{
		EventID:           name + "-" + status,
		StackName:         name,
		LogicalResourceID: name,
		ResourceType:      "AWS::CloudFormation::Stack",
		Status:            status,
		Reason:            reason,
	}
}

func resourceEvent(stackName, logical, status, reason string) stack.Event {
	return stack.Event{
		EventID:           logical + "-" + status,
		StackName:         stackName,
		LogicalResourceID: logical,
		ResourceType:      "AWS::S3::Bucket",
		Status:            status,
		Reason:            reason,
	}
}
