package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
)

// Error is a classified GitHub API failure. Callers record it against the
// item being processed and carry on.
type Error struct {
	Kind       candidate.FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("github: %s: %v", e.Message, e.Err)
	}
	return "github: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Failure converts the error into the per-item record.
func (e *Error) Failure() *candidate.Failure {
	return &candidate.Failure{Kind: e.Kind, Message: e.Message}
}

// Classify reports whether err is an expected failure of a GitHub call.
// Cancellation of the caller's context is never classified.
func Classify(err error) (*Error, bool) {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil, false
	}

	var ghErr *Error
	if errors.As(err, &ghErr) {
		return ghErr, true
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: candidate.FailureTimeout, Message: "Request timed out.", Err: err}, true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &Error{Kind: candidate.FailureNetwork, Message: "Network error while contacting GitHub.", Err: err}, true
	}
	return nil, false
}

// statusError maps a non-200 response to a classified error. notFound is the
// message used for 404s.
func statusError(resp *http.Response, notFound string) *Error {
	e := &Error{StatusCode: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		e.Kind, e.Message = candidate.FailureNotFound, notFound
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		e.Kind, e.Message = candidate.FailureRateLimited, "API rate limit exceeded."
	case resp.StatusCode == http.StatusForbidden:
		e.Kind, e.Message = candidate.FailureForbidden, "Access forbidden (private repository or missing token)."
	default:
		e.Kind, e.Message = candidate.FailureHTTP, fmt.Sprintf("bad status: %s", resp.Status)
	}
	return e
}

func malformed(what string, err error) *Error {
	return &Error{Kind: candidate.FailureMalformed, Message: what, Err: err}
}
