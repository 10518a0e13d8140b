package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Tag attaches a taxonomy category to a raw transport failure coming back
// from the LLM API or the browser tool connection: deadlines and socket
// timeouts become CategoryTimeout, connection-level failures become
// CategoryNetwork. Errors that already carry a category, and errors that look
// like neither, are returned unchanged so that Classify reports them as unknown.
func Tag(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case isTimeout(err):
		return WrapError(err, CategoryTimeout, op)
	case isNetwork(err):
		return WrapError(err, CategoryNetwork, op)
	default:
		return err
	}
}

// TagHTTPStatus tags an API error by its HTTP status: 408 is a timeout, 429
// and 5xx are network-level, anything else falls through to Tag.
func TagHTTPStatus(err error, statusCode int, op string) error {
	if err == nil {
		return nil
	}
	if !IsTransientHTTPStatus(statusCode) {
		return Tag(err, op)
	}
	if statusCode == 408 {
		return WrapError(err, CategoryTimeout, op)
	}
	return WrapError(err, CategoryNetwork, op)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timed out") || strings.Contains(msg, "i/o timeout")
}

func isNetwork(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP and stdio clients.
	msg := strings.ToLower(err.Error())
	patterns := []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"server closed idle connection",
		"transport connection broken",
		"connection closed",
		"net::err_",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
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
