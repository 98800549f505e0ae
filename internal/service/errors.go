package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ClientInputError reports a missing or invalid request parameter.
type ClientInputError struct {
	Msg string
}

func (e *ClientInputError) Error() string { return e.Msg }

func clientInputf(format string, args ...any) error {
	return &ClientInputError{Msg: fmt.Sprintf(format, args...)}
}

// LocalProcessingError reports a failure while preparing the outbound request,
// such as a malformed inbound body.
type LocalProcessingError struct {
	Op  string
	Err error
}

func (e *LocalProcessingError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *LocalProcessingError) Unwrap() error { return e.Err }

// TransportError reports that the upstream could not be reached or did not answer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "upstream transport: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// Message returns a generic, client-safe description of the failure.
func (e *TransportError) Message() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return "upstream request timed out"
	}
	if errors.Is(e.Err, context.Canceled) {
		return "upstream request canceled"
	}

	var dnsErr *net.DNSError
	if errors.As(e.Err, &dnsErr) {
		return "upstream host unreachable"
	}

	var urlErr *url.Error
	if errors.As(e.Err, &urlErr) {
		if urlErr.Timeout() {
			return "upstream request timed out"
		}
		return "upstream connection failed"
	}

	return "upstream request failed"
}

// UpstreamError is a non-2xx answer from the upstream.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}
