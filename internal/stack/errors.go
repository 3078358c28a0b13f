package stack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

var (
	// ErrNotFound is returned when CloudFormation reports the stack does not
	// exist. The orchestrator treats it as the signal to create.
	ErrNotFound = errors.New("stack does not exist")

	// ErrNoUpdates is returned by Update when the template and parameters
	// produce no change set. Callers treat it as a successful no-op.
	ErrNoUpdates = errors.New("no updates are to be performed")

	// ErrAmbiguousIdentity is reported when more than one stack matches a
	// name during the post-create status check.
	ErrAmbiguousIdentity = errors.New("stack could not be uniquely identified")

	// ErrUnknownStatus is returned by Classify for a resource status outside
	// the recognized set.
	ErrUnknownStatus = errors.New("unknown resource status")
)

// Wording CloudFormation uses in ValidationError messages. The service has no
// dedicated error codes for these conditions.
const (
	notFoundMsg  = "does not exist"
	noUpdatesMsg = "No updates are to be performed"
)

// IsNotFound reports whether err means the stack does not exist. Besides the
// typed ErrNotFound it matches the CloudFormation wording so that errors from
// collaborators without a typed error channel are still recognized. Errors
// raised by the AWS SDK never match on wording: translateError has already
// classified those, and SDK failures such as a missing credentials profile
// also say "does not exist".
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	return !isSDKError(err) && strings.Contains(err.Error(), notFoundMsg)
}

// IsNoUpdates reports whether err is the "No updates are to be performed."
// signal from an update call. SDK errors only match through ErrNoUpdates.
func IsNoUpdates(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoUpdates) {
		return true
	}
	return !isSDKError(err) && strings.Contains(err.Error(), noUpdatesMsg)
}

// isSDKError reports whether err came out of an AWS SDK call.
func isSDKError(err error) bool {
	var apiErr smithy.APIError
	var opErr *smithy.OperationError
	return errors.As(err, &apiErr) || errors.As(err, &opErr)
}

// translateError maps a raw CloudFormation error onto the package's typed
// errors. Errors it does not recognize are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError" {
		msg := apiErr.ErrorMessage()
		switch {
		case strings.Contains(msg, notFoundMsg):
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case strings.Contains(msg, noUpdatesMsg):
			return fmt.Errorf("%w: %w", ErrNoUpdates, err)
		}
	}
	return err
}
