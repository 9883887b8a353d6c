package crawler

import (
	"errors"
	"fmt"
)

// ErrStartupConfigMissing indicates a required input is absent before any crawling starts.
var ErrStartupConfigMissing = errors.New("startup configuration missing")

// ErrEmptyMetadata is returned when a page has neither a title nor a description.
var ErrEmptyMetadata = errors.New("failed to scrape meta information")

// FailureKind classifies why a visit failed.
type FailureKind string

// Failure kinds recorded on FailureRecord.
const (
	FailureNavigation FailureKind = "navigation"
	FailureMetadata   FailureKind = "metadata"
	FailureScreenshot FailureKind = "screenshot"
	FailureUnexpected FailureKind = "unexpected"
)

// VisitError is the failure variant of a visit.
type VisitError struct {
	Kind FailureKind
	URL  string
	Err  error
}

// Error returns the message persisted into the failures document.
func (e *VisitError) Error() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case FailureNavigation:
		return fmt.Sprintf("navigation failed: %v", e.Err)
	case FailureMetadata:
		return fmt.Sprintf("metadata extraction failed: %v", e.Err)
	case FailureScreenshot:
		return fmt.Sprintf("screenshot failed: %v", e.Err)
	default:
		return fmt.Sprintf("unexpected error: %v", e.Err)
	}
}

// Unwrap exposes the underlying cause.
func (e *VisitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newVisitError(kind FailureKind, url string, err error) *VisitError {
	return &VisitError{Kind: kind, URL: url, Err: err}
}
