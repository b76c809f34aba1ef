package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrBadStatus covers any other non-success HTTP status.
type ErrBadStatus struct {
	StatusCode int
}

func (e ErrBadStatus) Error() string {
	return fmt.Sprintf("bad_status: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ErrInvalidImage indicates downloaded bytes that do not decode as an image.
type ErrInvalidImage struct {
	Err error
}

func (e ErrInvalidImage) Error() string {
	return fmt.Errorf("invalid_image: %w", e.Err).Error()
}

func (e ErrInvalidImage) Unwrap() error {
	return e.Err
}

// ErrResolve indicates the metadata resolver failed or produced unusable output.
type ErrResolve struct {
	URL string
	Err error
}

func (e ErrResolve) Error() string {
	return fmt.Errorf("resolve %s: %w", e.URL, e.Err).Error()
}

func (e ErrResolve) Unwrap() error {
	return e.Err
}

// ClassifyError maps a transport error and/or HTTP status to one of the typed errors above.
func ClassifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
		if statusCode >= http.StatusBadRequest || statusCode < http.StatusOK {
			return ErrBadStatus{StatusCode: statusCode}
		}
	}

	return err
}

// ErrorTypeLabel returns the metrics/log label for err.
func ErrorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var badStatus ErrBadStatus
	if errors.As(err, &badStatus) {
		return "bad_status"
	}
	var invalidImage ErrInvalidImage
	if errors.As(err, &invalidImage) {
		return "invalid_image"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "resolver_exit"
	}
	var resolveErr ErrResolve
	if errors.As(err, &resolveErr) {
		return "resolve"
	}
	return "other"
}
