package protocol

import (
	"context"
	"iter"
	"reflect"
	"time"

	"github.com/nerrad567/gray-logic-protocols/internal/protocol/metadata"
)

// Provider lazily produces a capability instance.
//
// A Provider is invoked on every lookup and its result is never cached.
// Returning a nil value with a nil error means "nothing available", which
// lookups report as absent rather than as an error.
type Provider[T any] func(ctx context.Context) (T, error)

// Just returns a Provider that always yields v.
func Just[T any](v T) Provider[T] {
	return func(context.Context) (T, error) {
		return v, nil
	}
}

// MessageType classifies a device message.
type MessageType string

// Message type constants.
const (
	MessageReportProperty MessageType = "report_property"
	MessageReadProperty   MessageType = "read_property"
	MessageWriteProperty  MessageType = "write_property"
	MessageInvokeFunction MessageType = "invoke_function"
	MessageEvent          MessageType = "event"
	MessageReply          MessageType = "reply"
	MessageOnline         MessageType = "online"
	MessageOffline        MessageType = "offline"
)

// Message is a decoded, transport-independent device message.
type Message struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"device_id"`
	Type      MessageType    `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Headers   map[string]any `json:"headers,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Header returns a header value.
func (m *Message) Header(key string) (any, bool) {
	if m == nil || m.Headers == nil {
		return nil, false
	}
	v, ok := m.Headers[key]
	return v, ok
}

// SetHeader sets a header value, allocating the header map if needed.
func (m *Message) SetHeader(key string, value any) {
	if m.Headers == nil {
		m.Headers = make(map[string]any)
	}
	m.Headers[key] = value
}

// EncodedMessage is a message in its on-the-wire form for a transport.
type EncodedMessage struct {
	// DeviceID is the device the payload came from or is addressed to.
	DeviceID string

	// Topic is the transport-level address (MQTT topic, CoAP path, ...). Optional.
	Topic string

	// Payload is the raw bytes.
	Payload []byte
}

// MessageCodec converts between wire payloads and Messages for one transport.
type MessageCodec interface {
	// SupportTransport returns the transport this codec handles.
	SupportTransport() Transport

	// Decode parses a wire payload into zero or more messages.
	Decode(ctx context.Context, in *EncodedMessage) ([]*Message, error)

	// Encode serialises a message for sending to a device.
	Encode(ctx context.Context, msg *Message) (*EncodedMessage, error)
}

// DeviceOperator gives authenticators and interceptors access to a single device.
type DeviceOperator interface {
	// DeviceID returns the device identifier.
	DeviceID() string

	// Config returns a device configuration value.
	Config(ctx context.Context, key string) (string, bool, error)
}

// DeviceRegistry resolves devices by ID.
// Implementations return an error wrapping ErrDeviceNotFound for unknown IDs.
type DeviceRegistry interface {
	Device(ctx context.Context, deviceID string) (DeviceOperator, error)
}

// DeviceState is the connectivity state reported by a StateChecker.
type DeviceState string

// Device state constants.
const (
	StateOnline  DeviceState = "online"
	StateOffline DeviceState = "offline"
	StateUnknown DeviceState = "unknown"
)

// StateChecker determines whether a device is currently reachable.
type StateChecker interface {
	CheckState(ctx context.Context, device DeviceOperator) (DeviceState, error)
}

// ExpandsConfigSupplier returns config schema fragments for a specific part
// of a device model (a property, function, event or tag) on a transport.
type ExpandsConfigSupplier interface {
	ExpandsConfig(ctx context.Context, metadataType metadata.Type, metadataID, dataTypeID string) iter.Seq2[*metadata.ConfigMetadata, error]
}

// ExpandsConfigFunc adapts a function to ExpandsConfigSupplier.
type ExpandsConfigFunc func(ctx context.Context, metadataType metadata.Type, metadataID, dataTypeID string) iter.Seq2[*metadata.ConfigMetadata, error]

// ExpandsConfig implements ExpandsConfigSupplier.
func (f ExpandsConfigFunc) ExpandsConfig(ctx context.Context, metadataType metadata.Type, metadataID, dataTypeID string) iter.Seq2[*metadata.ConfigMetadata, error] {
	return f(ctx, metadataType, metadataID, dataTypeID)
}

// isNil reports whether v is nil, including typed nil pointers and interfaces.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// emptySeq2 yields nothing.
func emptySeq2[K, V any]() iter.Seq2[K, V] {
	return func(func(K, V) bool) {}
}
