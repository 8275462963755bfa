// Package command contains the worker's write operations: delivering queued
// statements to the LRS and copying LRS statements into the archive.
package command

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alem-hub/xapi/pkg/retry"
	"github.com/alem-hub/xapi/pkg/xapi/lrs"
)

// LRSError describes an unsuccessful LRS exchange.
type LRSError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *LRSError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

func (e *LRSError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the exchange may succeed if repeated: transport
// failures, server errors, timeouts and rate limiting.
func (e *LRSError) Temporary() bool {
	if e.Err != nil {
		return true
	}
	switch {
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	}
	return false
}

// responseError turns a failed response into an error marked for the retrier.
func responseError(op string, r lrs.Response) error {
	err := &LRSError{Op: op, StatusCode: r.StatusCode, Message: r.ErrMessage, Err: r.Err}
	if err.Temporary() {
		return retry.Retryable(err)
	}
	return retry.Permanent(err)
}

// isRejection reports whether the LRS refused the request itself, as opposed
// to being unreachable or overloaded.
func isRejection(err error) bool {
	var lrsErr *LRSError
	if !errors.As(err, &lrsErr) || lrsErr.Err != nil {
		return false
	}
	return lrsErr.StatusCode >= 400 && lrsErr.StatusCode < 500 && !lrsErr.Temporary()
}

// IsOutage reports whether err points at an unavailable LRS rather than a
// rejected request. Errors that are not LRS errors count as outages.
func IsOutage(err error) bool {
	if err == nil {
		return false
	}
	var lrsErr *LRSError
	if errors.As(err, &lrsErr) {
		return lrsErr.Temporary()
	}
	return true
}
