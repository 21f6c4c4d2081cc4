package falapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// APIError is a non-2xx response from any Fal.ai API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fal api returned HTTP %d: %s", e.StatusCode, e.Body)
}

// StatusCodeOf returns the HTTP status of err when it is an APIError.
func StatusCodeOf(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

// IsTimeout reports whether err is a client-side timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsConnectionError reports whether err is a transport-level failure that
// never produced a response (DNS, refused connection, reset).
func IsConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return !urlErr.Timeout()
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
