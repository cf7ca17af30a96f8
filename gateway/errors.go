package gateway

import (
	"errors"
	"fmt"
)

// ErrNoCredential means neither a tenant-specific nor a system-wide API
// credential exists for the service. Fails fast before any external call;
// surfaced as a client-visible configuration error, never retried.
var ErrNoCredential = errors.New("gateway: no usable API credential configured")

// ErrUnknownService means the requested service slug is not registered or not
// active.
var ErrUnknownService = errors.New("gateway: unknown service")

// ErrUpstreamTimeout marks an upstream call that exceeded its bounded timeout.
var ErrUpstreamTimeout = errors.New("gateway: upstream call timed out")

// UpstreamTransportError wraps a transport-level failure (connection refused,
// DNS, TLS) reaching the upstream API. Transport failures are the only errors
// that propagate out of Fetch.
type UpstreamTransportError struct {
	Endpoint string
	Err      error
}

func (e *UpstreamTransportError) Error() string {
	return fmt.Sprintf("upstream transport failure on %s: %v", e.Endpoint, e.Err)
}

func (e *UpstreamTransportError) Unwrap() error { return e.Err }

// UpstreamHTTPError carries a non-2xx upstream status for callers that
// surface it as an error (the gateway itself returns non-200 statuses as
// structured results, not errors).
type UpstreamHTTPError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}
