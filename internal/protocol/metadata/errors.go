package metadata

import "errors"

// Domain errors for metadata codecs.
var (
	// ErrEmptySource is returned when decoding an empty document.
	ErrEmptySource = errors.New("metadata: empty source")

	// ErrNilMetadata is returned when encoding a nil DeviceMetadata.
	ErrNilMetadata = errors.New("metadata: nil device metadata")

	// ErrDecodeFailed is returned when a document cannot be parsed.
	ErrDecodeFailed = errors.New("metadata: decode failed")

	// ErrEncodeFailed is returned when a model cannot be serialised.
	ErrEncodeFailed = errors.New("metadata: encode failed")
)
