package deploy

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/SpiceLabsHQ/stackrun/internal/stack"
)

// ObjectStorage is the bucket API used by the orphan bucket sweep.
type ObjectStorage interface {
	ListBuckets(ctx context.Context) ([]string, error)
	// ListObjects returns up to limit object keys from bucket.
	ListObjects(ctx context.Context, bucket string, limit int32) ([]string, error)
	DeleteBucket(ctx context.Context, bucket string) error
}

// CleanupReport records what the post-create cleanup did.
type CleanupReport struct {
	RollbackDeleted bool
	DeletedBuckets  []string
}

// Cleaner runs the cleanup that follows a create: deleting a stack left in
// ROLLBACK_COMPLETE and sweeping empty buckets named after the stack.
type Cleaner struct {
	storage     ObjectStorage
	report      *Reporter
	deleteStack func(ctx context.Context, req stack.Request) (Outcome, error)
}

// NewCleaner constructs a Cleaner. deleteStack must delete the stack and
// monitor the deletion to completion. A nil storage disables the sweep.
func NewCleaner(storage ObjectStorage, report *Reporter, deleteStack func(context.Context, stack.Request) (Outcome, error)) *Cleaner {
	return &Cleaner{
		storage:     storage,
		report:      report,
		deleteStack: deleteStack,
	}
}

// AfterCreate runs both cleanup steps for a create that was monitored to
// completion. Only a failed rollback delete is returned as an error; sweep
// failures are reported and swallowed.
func (c *Cleaner) AfterCreate(ctx context.Context, req stack.Request, outcome Outcome) (*CleanupReport, error) {
	report := &CleanupReport{}

	var deleteErr error
	if outcome.NeedsCleanupDelete {
		if _, err := c.deleteStack(ctx, req); err != nil {
			deleteErr = fmt.Errorf("delete rolled back stack %q: %w", req.Name, err)
		} else {
			report.RollbackDeleted = true
		}
	}

	report.DeletedBuckets = c.SweepBuckets(ctx, req.Name)
	return report, deleteErr
}

// SweepBuckets deletes every empty bucket whose name contains stackName,
// ignoring case, and returns the names it deleted. Buckets are checked and
// deleted concurrently. Non-empty buckets are never touched.
func (c *Cleaner) SweepBuckets(ctx context.Context, stackName string) []string {
	if c.storage == nil || stackName == "" {
		return nil
	}

	names, err := c.storage.ListBuckets(ctx)
	if err != nil {
		c.report.Printf("Error listing buckets: %v", err)
		return nil
	}

	needle := strings.ToLower(stackName)
	var candidates []string
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), needle) {
			candidates = append(candidates, name)
		}
	}

	if len(candidates) == 0 {
		c.report.Stepf("No buckets match %q.", stackName)
		return nil
	}
	c.report.Stepf("Checking %d bucket(s) matching %q: %s", len(candidates), stackName, strings.Join(candidates, ", "))

	// Each goroutine owns its slot.
	deleted := make([]bool, len(candidates))
	var g errgroup.Group
	for i, name := range candidates {
		g.Go(func() error {
			deleted[i] = c.sweepBucket(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	var out []string
	for i, name := range candidates {
		if deleted[i] {
			out = append(out, name)
		}
	}
	return out
}

func (c *Cleaner) sweepBucket(ctx context.Context, bucket string) bool {
	keys, err := c.storage.ListObjects(ctx, bucket, 1)
	if err != nil {
		c.report.Printf("Error listing objects in bucket %s: %v", bucket, err)
		return false
	}
	if len(keys) > 0 {
		c.report.Stepf("Bucket %s is not empty, keeping it.", bucket)
		return false
	}

	if err := c.storage.DeleteBucket(ctx, bucket); err != nil {
		c.report.Printf("Error deleting orphan bucket %s: %v", bucket, err)
		return false
	}
	c.report.Printf("Orphan bucket %s deleted.", bucket)
	return true
}
