// Package aws provides thin wrappers around AWS SDK clients used by stackrun.
// This file defines narrow interfaces for the CloudFormation operations needed
// to deploy, monitor and delete stacks. Each interface wraps exactly one AWS
// SDK method, enabling mock injection in tests.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
)

// ---------------------------------------------------------------------------
// CloudFormation stack management interfaces
// ---------------------------------------------------------------------------

// CreateStackAPI defines the subset of the CloudFormation API used for creating
// new stacks when the existence check reports the stack is absent.
type CreateStackAPI interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
}

// UpdateStackAPI defines the subset of the CloudFormation API used for updating
// existing stacks.
type UpdateStackAPI interface {
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
}

// DeleteStackAPI defines the subset of the CloudFormation API used for deleting
// a stack, either on explicit request or to remove a ROLLBACK_COMPLETE stack
// left behind by a failed create.
type DeleteStackAPI interface {
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
}

// DescribeStacksAPI defines the subset of the CloudFormation API used for the
// existence check and the post-create status check.
type DescribeStacksAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

// DescribeStackEventsAPI defines the subset of the CloudFormation API polled
// by the event stream.
type DescribeStackEventsAPI interface {
	DescribeStackEvents(ctx context.Context, params *cloudformation.DescribeStackEventsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error)
}

// GetTemplateSummaryAPI defines the subset of the CloudFormation API used to
// discover a template's declared parameters and required capabilities.
type GetTemplateSummaryAPI interface {
	GetTemplateSummary(ctx context.Context, params *cloudformation.GetTemplateSummaryInput, optFns ...func(*cloudformation.Options)) (*cloudformation.GetTemplateSummaryOutput, error)
}

// CloudFormationAPI groups every CloudFormation operation the stack service
// adapter needs into a single interface for mock injection in tests.
type CloudFormationAPI interface {
	CreateStackAPI
	UpdateStackAPI
	DeleteStackAPI
	DescribeStacksAPI
	GetTemplateSummaryAPI
}

// StackEventsAPI groups the calls the event stream makes on each poll: the
// stack status that decides when the stream ends, and the events themselves.
type StackEventsAPI interface {
	DescribeStacksAPI
	DescribeStackEventsAPI
}

// ---------------------------------------------------------------------------
// Compile-time interface satisfaction checks
// ---------------------------------------------------------------------------

var (
	_ CreateStackAPI         = (*cloudformation.Client)(nil)
	_ UpdateStackAPI         = (*cloudformation.Client)(nil)
	_ DeleteStackAPI         = (*cloudformation.Client)(nil)
	_ DescribeStacksAPI      = (*cloudformation.Client)(nil)
	_ DescribeStackEventsAPI = (*cloudformation.Client)(nil)
	_ GetTemplateSummaryAPI  = (*cloudformation.Client)(nil)
	_ CloudFormationAPI      = (*cloudformation.Client)(nil)
	_ StackEventsAPI         = (*cloudformation.Client)(nil)
)
