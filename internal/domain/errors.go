package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for broad classification.
var (
	ErrInvalidRequest = errors.New("missing required parameters")
	ErrNotFound       = errors.New("not found")
	ErrNotConfigured  = errors.New("not configured")
)

// ErrorKind is a coarse-grained categorization of relay failures.
type ErrorKind string

const (
	KindInvalidRequest     ErrorKind = "invalid_request"
	KindUpstreamSubmission ErrorKind = "upstream_submission"
	KindUpstreamAuth       ErrorKind = "upstream_auth"
	KindUpstreamStatus     ErrorKind = "upstream_status"
	KindUpstreamJobFailed  ErrorKind = "upstream_job_failed"
	KindUpstreamTimeout    ErrorKind = "upstream_timeout"
	KindCanceled           ErrorKind = "canceled"
	KindInternal           ErrorKind = "internal"
)

// RelayError wraps an underlying error with operation context and a kind.
type RelayError struct {
	Op     string
	Kind   ErrorKind
	Status PredictionStatus // terminal job status, set for KindUpstreamJobFailed
	Err    error
}

func (e *RelayError) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != "" {
		base += fmt.Sprintf(" (status=%s)", e.Status)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *RelayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the first RelayError in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var re *RelayError
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, ErrInvalidRequest) {
		return KindInvalidRequest
	}
	return KindInternal
}

// HTTPStatus maps a kind onto the status code returned to relay callers.
// Only malformed input is a client error; every upstream failure is a 500.
func HTTPStatus(kind ErrorKind) int {
	if kind == KindInvalidRequest {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
