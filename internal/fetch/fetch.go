package fetch

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNetworkFailure = errors.New("network failure")
	ErrInvalidURL     = errors.New("invalid URL")
	ErrEmptyBody      = errors.New("empty response body")
)

// Fetcher retrieves the raw content behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// OutcomeKind classifies a single fetch attempt.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Retryable
	Terminal
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome is the result of one attempt.
type Outcome struct {
	Kind       OutcomeKind
	Body       string
	StatusCode int
	Err        error
}

// FetchError is returned once all attempts for a URL are used up or a
// terminal failure occurred.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s failed after %d attempt(s), last status %d: %v", e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrNetworkFailure, e.Err}
}
