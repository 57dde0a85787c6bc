package sourcectx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/cli/go-gh/v2/pkg/api"
)

var (
	// ErrSourceFetchTimeout is returned when a fetch call exceeds its per-call timeout
	ErrSourceFetchTimeout = errors.New("source fetch timed out")

	// ErrNotFound is returned when the file does not exist at the requested ref
	ErrNotFound = errors.New("source file not found")

	// ErrNoLine is returned for findings without a line number
	ErrNoLine = errors.New("finding has no line number")

	// ErrLineOutOfRange is returned when the line is past the end of the file
	ErrLineOutOfRange = errors.New("line out of range")

	// ErrBinaryFile is returned when the file has no text representation
	ErrBinaryFile = errors.New("source file is binary")
)

// SourceAccessError means the code host rejected our credentials. It ends
// enrichment for the whole run.
type SourceAccessError struct {
	Repository string
	StatusCode int
	Err        error
}

func (e *SourceAccessError) Error() string {
	return fmt.Sprintf("access to %s denied (HTTP %d): %v", e.Repository, e.StatusCode, e.Err)
}

func (e *SourceAccessError) Unwrap() error {
	return e.Err
}

// StatusError carries a non-success HTTP status observed by a Source
type StatusError struct {
	StatusCode int
	Header     http.Header
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// TransientError marks a failure worth retrying
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// classify maps a raw Source error onto the package's error taxonomy.
// Transient errors come back wrapped in *TransientError.
func classify(repo string, err error, callTimedOut bool) error {
	if err == nil {
		return nil
	}

	if callTimedOut {
		return &TransientError{Err: fmt.Errorf("%w: %v", ErrSourceFetchTimeout, err)}
	}

	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBinaryFile) {
		return err
	}

	if status, header, ok := statusOf(err); ok {
		switch {
		case status == http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case status == http.StatusForbidden && rateLimitExhausted(header):
			return &TransientError{Err: fmt.Errorf("rate limit exhausted: %w", err)}
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return &SourceAccessError{Repository: repo, StatusCode: status, Err: err}
		case isRetryableStatus(status):
			return &TransientError{Err: err}
		default:
			return err
		}
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientError{Err: err}
	}

	return err
}

// statusOf extracts an HTTP status from go-gh or transport-level errors
func statusOf(err error) (int, http.Header, bool) {
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, httpErr.Headers, true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, statusErr.Header, true
	}
	return 0, nil, false
}

// isRetryableStatus checks if an HTTP status code is retryable
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// rateLimitExhausted reports whether GitHub rate limit headers show zero remaining
func rateLimitExhausted(header http.Header) bool {
	if header == nil {
		return false
	}
	remaining, err := strconv.Atoi(header.Get("X-RateLimit-Remaining"))
	return err == nil && remaining == 0
}
