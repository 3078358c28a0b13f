// Package identity derives the caller identity from STS. The owner name and
// ARN are written to stack tags and to the audit log; the account ID names
// the default template bucket.
package identity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// OwnerName reduces a caller ARN to a short tag-safe name: the last path
// segment of the resource, without an email domain, lowercased, with runs of
// other characters collapsed to a hyphen.
func OwnerName(callerARN string) (string, error) {
	parsed, err := arn.Parse(callerARN)
	if err != nil {
		return "", fmt.Errorf("parse caller ARN: %w", err)
	}
	if parsed.Resource == "" {
		return "", fmt.Errorf("caller ARN %q has an empty resource", callerARN)
	}

	segments := strings.Split(parsed.Resource, "/")
	name := segments[len(segments)-1]
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	name = strings.Trim(nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if name == "" {
		return "", fmt.Errorf("caller ARN %q normalized to an empty name", callerARN)
	}
	return name, nil
}
