package builtin

import "errors"

// Domain errors for the builtin package.
var (
	// ErrUnsupportedMetadataFormat is returned when a default metadata file
	// has an extension no registered metadata codec handles.
	ErrUnsupportedMetadataFormat = errors.New("builtin: unsupported metadata format")

	// ErrUnknownCodec is returned for a transport codec that is not built in.
	ErrUnknownCodec = errors.New("builtin: unknown message codec")

	// ErrUnknownAuthenticator is returned for an authenticator that is not built in.
	ErrUnknownAuthenticator = errors.New("builtin: unknown authenticator")
)
