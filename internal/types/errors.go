package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrFetch           = errors.New("fetch failed")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrEmptyGraph      = errors.New("empty graph: no article passed the crawl filters")
	ErrDeltaSet        = errors.New("delta already set")
	ErrUnknownNode     = errors.New("unknown node")
	ErrUnsupported     = errors.New("operation not supported by backend")
)

// FetchError wraps errors that occur while retrieving an article's links or
// pageviews. It is always recoverable: the article simply contributes nothing.
type FetchError struct {
	Title      string
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	target := e.Title
	if target == "" {
		target = e.URL
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %q (status %d): %v", target, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %q: %v", target, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes every FetchError match ErrFetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// InvalidArgumentError reports inconsistent sampling or crawl parameters.
// It aborts the crawl.
type InvalidArgumentError struct {
	Op     string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid argument: %s", e.Op, e.Reason)
}

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// InvalidArgument builds an InvalidArgumentError with a formatted reason.
func InvalidArgument(op, format string, args ...any) error {
	return &InvalidArgumentError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// StorageError wraps errors that occur while saving or loading graphs.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s %s): %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in a pipeline stage.
type PipelineError struct {
	Stage string
	Seed  string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %q: %v", e.Stage, e.Seed, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// ParseError wraps errors that occur while extracting links from a page.
type ParseError struct {
	Title string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %q: %v", e.Title, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
