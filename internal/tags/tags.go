// Package tags provides the tag schema stackrun applies to every stack it
// creates or updates, and a builder that merges operator-supplied tags.
//
// CloudFormation propagates stack tags to the resources it provisions, so the
// stackrun tags also identify those resources.
package tags

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Tag key constants
// ---------------------------------------------------------------------------

const (
	// TagManaged marks a stack as deployed by stackrun. Value is always "true".
	TagManaged = "stackrun:managed"

	// TagOwner is the friendly owner name derived from STS at runtime.
	TagOwner = "stackrun:owner"

	// TagOwnerARN is the full IAM ARN of the owner.
	TagOwnerARN = "stackrun:owner-arn"
)

// reservedPrefixes may not be used by operator-supplied tags. "aws:" is
// rejected by CloudFormation itself.
var reservedPrefixes = []string{"stackrun:", "aws:"}

// maxTags is the CloudFormation limit on tags per stack.
const maxTags = 50

// ---------------------------------------------------------------------------
// TagBuilder
// ---------------------------------------------------------------------------

// TagBuilder constructs the tag set for a stack. The stackrun tags are always
// included; the owner tags only when an owner is known.
type TagBuilder struct {
	owner    string
	ownerARN string
	extra    map[string]string
}

// NewTagBuilder creates a TagBuilder for the given owner. Both values may be
// empty when identity resolution was skipped.
func NewTagBuilder(owner, ownerARN string) *TagBuilder {
	return &TagBuilder{owner: owner, ownerARN: ownerARN}
}

// WithTags adds operator-supplied tags.
func (b *TagBuilder) WithTags(extra map[string]string) *TagBuilder {
	if b.extra == nil {
		b.extra = make(map[string]string, len(extra))
	}
	for k, v := range extra {
		b.extra[k] = v
	}
	return b
}

// Build produces the full tag set. It fails if an operator tag uses a
// reserved prefix or the set exceeds the CloudFormation limit.
func (b *TagBuilder) Build() (map[string]string, error) {
	out := map[string]string{TagManaged: "true"}
	if b.owner != "" {
		out[TagOwner] = b.owner
	}
	if b.ownerARN != "" {
		out[TagOwnerARN] = b.ownerARN
	}

	for k, v := range b.extra {
		for _, prefix := range reservedPrefixes {
			if strings.HasPrefix(strings.ToLower(k), prefix) {
				return nil, fmt.Errorf("tag key %q uses reserved prefix %q", k, prefix)
			}
		}
		out[k] = v
	}

	if len(out) > maxTags {
		return nil, fmt.Errorf("%d tags exceeds the limit of %d per stack", len(out), maxTags)
	}
	return out, nil
}
