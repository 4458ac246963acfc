package protocol

import (
	"errors"
	"fmt"
)

// Domain errors for the protocol package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnsupportedAuthentication is returned when no authenticator is
	// registered for the transport of an authentication request.
	ErrUnsupportedAuthentication = errors.New("protocol: unsupported authentication request")

	// ErrDeviceNotFound is returned by device lookups for unknown devices.
	ErrDeviceNotFound = errors.New("protocol: device not found")

	// ErrInvalidSupport is returned when a Support is built with missing
	// required fields.
	ErrInvalidSupport = errors.New("protocol: invalid support options")

	// ErrInitFailed is returned when an init callback fails.
	ErrInitFailed = errors.New("protocol: init callback failed")
)

// UnsupportedAuthenticationError carries the request that could not be
// dispatched. It matches ErrUnsupportedAuthentication with errors.Is.
type UnsupportedAuthenticationError struct {
	Request AuthenticationRequest
}

// Error implements error.
func (e *UnsupportedAuthenticationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedAuthentication.Error(), e.Request)
}

// Unwrap returns ErrUnsupportedAuthentication.
func (e *UnsupportedAuthenticationError) Unwrap() error {
	return ErrUnsupportedAuthentication
}
