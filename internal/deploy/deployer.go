// Package deploy drives a stack deployment from start to finish: it decides
// between create and update, follows the stack's events until the operation
// settles, and cleans up after failed or completed creates.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SpiceLabsHQ/stackrun/internal/stack"
)

// ErrEmptyStackName is returned when a request has no stack name.
var ErrEmptyStackName = errors.New("stack name is required")

// StackService issues the stack RPCs. Describe failing with a not-found
// error (see stack.IsNotFound) is what routes a deploy to create.
type StackService interface {
	StackDescriber
	Create(ctx context.Context, req stack.Request) error
	Update(ctx context.Context, req stack.Request) error
	Delete(ctx context.Context, req stack.Request) error
}

// Result describes what one Deploy or Delete call did.
type Result struct {
	StackName       string       `json:"stack_name"`
	Action          stack.Action `json:"action"`
	NoOp            bool         `json:"no_op"`
	FinalStatus     string       `json:"final_status,omitempty"`
	RollbackDeleted bool         `json:"rollback_deleted"`
	CleanupSkipped  bool         `json:"cleanup_skipped"`
	DeletedBuckets  []string     `json:"deleted_buckets,omitempty"`
}

// Deployer runs one deployment at a time through existence check, action,
// monitor and cleanup. All collaborators are injected for testability.
type Deployer struct {
	stacks  StackService
	monitor *Monitor
	cleaner *Cleaner
	report  *Reporter

	// clock returns the current time. Injectable for tests.
	clock func() time.Time
}

// NewDeployer wires a Deployer. storage may be nil to skip the orphan
// bucket sweep; a zero pollInterval uses stack.DefaultPollInterval.
func NewDeployer(stacks StackService, events EventSource, storage ObjectStorage, report *Reporter, pollInterval time.Duration) *Deployer {
	if report == nil {
		report = NewReporter(nil, false)
	}
	d := &Deployer{
		stacks: stacks,
		report: report,
		clock:  time.Now,
	}
	d.monitor = NewMonitor(events, stacks, report, pollInterval)
	d.cleaner = NewCleaner(storage, report, d.deleteAndMonitor)
	return d
}

// Deploy creates or updates req.Name:
//  1. Describe the stack to learn whether it exists.
//  2. If it exists, update it. "No updates are to be performed" is success.
//  3. If it does not exist, create it, then run the post-create cleanup.
//  4. In both cases monitor the stack's events until the operation settles.
func (d *Deployer) Deploy(ctx context.Context, req stack.Request) (*Result, error) {
	if req.Name == "" {
		return nil, ErrEmptyStackName
	}

	summaries, err := d.stacks.Describe(ctx, req.Name)
	switch {
	case err == nil:
		if len(summaries) > 0 {
			d.report.Stepf("Stack %s exists in %s.", req.Name, summaries[0].Status)
		}
		return d.update(ctx, req)
	case stack.IsNotFound(err):
		d.report.Stepf("Stack %s does not exist.", req.Name)
		return d.create(ctx, req)
	default:
		return nil, fmt.Errorf("check stack existence: %w", err)
	}
}

// Delete deletes req.Name and monitors the deletion. A stack that is already
// gone counts as deleted.
func (d *Deployer) Delete(ctx context.Context, req stack.Request) (*Result, error) {
	if req.Name == "" {
		return nil, ErrEmptyStackName
	}

	outcome, err := d.deleteAndMonitor(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Result{
		StackName:   req.Name,
		Action:      stack.ActionDelete,
		FinalStatus: outcome.FinalStatus,
	}, nil
}

func (d *Deployer) update(ctx context.Context, req stack.Request) (*Result, error) {
	d.report.Printf("Updating the stack...")
	start := d.clock()

	if err := d.stacks.Update(ctx, req); err != nil {
		if stack.IsNoUpdates(err) {
			d.report.Printf("No resource updates are to be performed.")
			return &Result{StackName: req.Name, Action: stack.ActionUpdate, NoOp: true}, nil
		}
		return nil, err
	}

	outcome, err := d.monitor.Monitor(ctx, req.Name, stack.ActionUpdate, start)
	if err != nil {
		return nil, err
	}
	return &Result{
		StackName:   req.Name,
		Action:      stack.ActionUpdate,
		FinalStatus: outcome.FinalStatus,
	}, nil
}

func (d *Deployer) create(ctx context.Context, req stack.Request) (*Result, error) {
	d.report.Printf("Creating the stack...")
	start := d.clock()

	if err := d.stacks.Create(ctx, req); err != nil {
		return nil, err
	}

	outcome, err := d.monitor.Monitor(ctx, req.Name, stack.ActionCreate, start)
	if err != nil {
		return nil, err
	}

	result := &Result{
		StackName:      req.Name,
		Action:         stack.ActionCreate,
		FinalStatus:    outcome.FinalStatus,
		CleanupSkipped: outcome.CleanupSkipped,
	}

	cleanup, err := d.cleaner.AfterCreate(ctx, req, outcome)
	result.RollbackDeleted = cleanup.RollbackDeleted
	result.DeletedBuckets = cleanup.DeletedBuckets
	if err != nil {
		return result, err
	}
	return result, nil
}

// deleteAndMonitor issues the delete and follows it to completion. Shared by
// explicit deletes and the rollback cleanup.
func (d *Deployer) deleteAndMonitor(ctx context.Context, req stack.Request) (Outcome, error) {
	d.report.Printf("Deleting the stack...")
	start := d.clock()

	if err := d.stacks.Delete(ctx, req); err != nil {
		return Outcome{Action: stack.ActionDelete}, err
	}
	d.report.Stepf("Delete of %s accepted, following its events.", req.Name)
	return d.monitor.Monitor(ctx, req.Name, stack.ActionDelete, start)
}
