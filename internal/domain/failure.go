package domain

import (
	"errors"
	"fmt"
)

// FailureKind classifies provider failures into the small taxonomy the
// discovery engine acts on. Only NotFound on the primary lookup aborts a
// run; every other kind degrades the affected lookup to unavailable.
type FailureKind string

const (
	// FailureNotFound means the identifier does not exist under the given
	// kind and region
	FailureNotFound FailureKind = "NotFound"
	// FailureAccessDenied means the caller lacks permission for a lookup
	FailureAccessDenied FailureKind = "AccessDenied"
	// FailureRateLimited means the provider throttled the call
	FailureRateLimited FailureKind = "RateLimited"
	// FailureTransient means a network or service blip
	FailureTransient FailureKind = "Transient"
	// FailureMalformed means the payload had an unexpected or incomplete shape
	FailureMalformed FailureKind = "Malformed"
)

// Failure is a normalized provider error. It wraps the underlying error so
// callers can still unwrap SDK details when needed.
type Failure struct {
	Kind     FailureKind
	Op       string
	Resource string
	Err      error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s %s", f.Kind, f.Op, f.Resource)
	}
	return fmt.Sprintf("%s: %s %s: %v", f.Kind, f.Op, f.Resource, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure builds a Failure for the given operation and resource
func NewFailure(kind FailureKind, op, resource string, err error) *Failure {
	return &Failure{Kind: kind, Op: op, Resource: resource, Err: err}
}

// KindOf extracts the failure kind from an error chain. Unclassified errors
// report as Transient so they stay retryable rather than aborting a run.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureTransient
}

// IsNotFound reports whether err is a NotFound failure
func IsNotFound(err error) bool {
	return KindOf(err) == FailureNotFound
}

// IsAccessDenied reports whether err is an AccessDenied failure
func IsAccessDenied(err error) bool {
	return KindOf(err) == FailureAccessDenied
}

// Retryable reports whether the failure should be retried with backoff
func (k FailureKind) Retryable() bool {
	return k == FailureRateLimited || k == FailureTransient
}
