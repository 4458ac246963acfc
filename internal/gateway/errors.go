package gateway

import "errors"

var (
	// ErrNoCodec is returned when a transport has no message codec.
	ErrNoCodec = errors.New("gateway: no message codec for transport")

	// ErrUnknownDevice is returned for traffic naming an uncatalogued device.
	ErrUnknownDevice = errors.New("gateway: unknown device")

	// ErrMalformedRequest is returned for undecodable command or auth payloads.
	ErrMalformedRequest = errors.New("gateway: malformed request")

	// ErrMissingClientID is returned for auth requests that cannot be answered.
	ErrMissingClientID = errors.New("gateway: auth request has no client_id")

	// ErrStopped is returned for messages arriving after Stop.
	ErrStopped = errors.New("gateway: stopped")
)
