package codec

import "errors"

// Domain errors for message codecs.
var (
	// ErrEmptyPayload is returned when decoding an empty payload.
	ErrEmptyPayload = errors.New("codec: empty payload")

	// ErrMalformedPayload is returned when a payload is not a JSON object or array.
	ErrMalformedPayload = errors.New("codec: malformed payload")

	// ErrUnknownMessageType is returned for a missing or unrecognised message type.
	ErrUnknownMessageType = errors.New("codec: unknown message type")

	// ErrNilMessage is returned when encoding a nil message.
	ErrNilMessage = errors.New("codec: nil message")
)
