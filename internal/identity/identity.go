package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Owner is the resolved caller identity.
type Owner struct {
	Name    string
	ARN     string
	Account string
}

// STSClient defines the subset of the STS API used for identity resolution.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Resolver resolves the current AWS caller identity to an Owner.
type Resolver struct {
	client STSClient
}

// NewResolver creates a Resolver with the given STS client.
func NewResolver(client STSClient) *Resolver {
	return &Resolver{client: client}
}

// Resolve calls STS GetCallerIdentity and derives the Owner.
func (r *Resolver) Resolve(ctx context.Context) (*Owner, error) {
	out, err := r.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("sts get-caller-identity: %w", err)
	}
	if out.Arn == nil {
		return nil, fmt.Errorf("sts get-caller-identity returned nil ARN")
	}

	name, err := OwnerName(*out.Arn)
	if err != nil {
		return nil, err
	}

	return &Owner{
		Name:    name,
		ARN:     *out.Arn,
		Account: aws.ToString(out.Account),
	}, nil
}
