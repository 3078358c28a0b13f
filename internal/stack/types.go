// Package stack holds the CloudFormation-facing half of stackrun: the stack
// request and event types, the resource-status classifier, and the adapters
// that turn CloudFormation API calls into the stack service and event source
// used by the deploy package.
package stack

import "time"

// Action is the top-level operation applied to a stack in one invocation.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// stackResourceType is the ResourceType CloudFormation reports on events that
// describe the stack itself rather than one of its resources.
const stackResourceType = "AWS::CloudFormation::Stack"

// Template references a CloudFormation template either inline or by URL.
// Exactly one of Body and URL is set.
type Template struct {
	Body string
	URL  string
}

// Request describes one deployment. It is built once per invocation and not
// modified afterwards.
type Request struct {
	Name       string
	Template   Template
	Region     string
	Parameters map[string]string
	Tags       map[string]string
}

// Event is a single resource-status transition reported by CloudFormation.
type Event struct {
	EventID           string
	StackName         string
	LogicalResourceID string
	ResourceType      string
	Status            string
	Reason            string
	Timestamp         time.Time
}

// IsStackEvent reports whether ev describes the stack itself.
func (ev Event) IsStackEvent() bool {
	return ev.ResourceType == stackResourceType && ev.LogicalResourceID == ev.StackName
}

// Summary is the subset of a described stack that stackrun acts on.
type Summary struct {
	Name         string
	ID           string
	Status       string
	StatusReason string
	Parameters   map[string]string
}
