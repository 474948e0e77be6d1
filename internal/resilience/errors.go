// Package resilience classifies upstream failures so report builders can
// decide what to surface to the user.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// ErrorCategory is the coarse classification of an upstream failure.
type ErrorCategory string

const (
	CategoryRateLimit ErrorCategory = "rate_limit"
	CategoryTransient ErrorCategory = "transient"
	CategoryFatal     ErrorCategory = "fatal"
)

// TransientError wraps an error that is safe to retry later (5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// statusCoder is implemented by API errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatusCode() int
}

// rateLimitSignatures are matched against the lowercased error text. The CRM
// reports throttling only through status codes and message text, so this is
// the fallback when no typed error survives wrapping.
var rateLimitSignatures = []string{
	"status 429",
	"rate_limit",
	"ratelimit",
	"ten_secondly_rolling",
	"secondly_rolling",
	"too many requests",
}

// IsRateLimit reports whether err is a remote throttling response: a typed
// error with status 429 anywhere in the chain, or a known signature in the
// message.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() == 429 {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, an API error with a transient status, or a common network
// failure (timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var sc statusCoder
	if errors.As(err, &sc) && IsTransientHTTPStatus(sc.HTTPStatusCode()) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"client.timeout exceeded",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// Classify buckets err. Rate limits are checked first because a 429 is also
// transient.
func Classify(err error) ErrorCategory {
	switch {
	case IsRateLimit(err):
		return CategoryRateLimit
	case IsTransient(err):
		return CategoryTransient
	default:
		return CategoryFatal
	}
}
