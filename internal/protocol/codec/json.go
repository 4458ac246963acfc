package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// knownTypes is the set of message types the codec accepts.
var knownTypes = map[protocol.MessageType]bool{
	protocol.MessageReportProperty: true,
	protocol.MessageReadProperty:   true,
	protocol.MessageWriteProperty:  true,
	protocol.MessageInvokeFunction: true,
	protocol.MessageEvent:          true,
	protocol.MessageReply:          true,
	protocol.MessageOnline:         true,
	protocol.MessageOffline:        true,
}

// wireMessage is the JSON shape of a message on the wire.
type wireMessage struct {
	ID        string               `json:"id,omitempty"`
	DeviceID  string               `json:"deviceId,omitempty"`
	Type      protocol.MessageType `json:"type"`
	Timestamp int64                `json:"timestamp,omitempty"`
	Headers   map[string]any       `json:"headers,omitempty"`
	Payload   map[string]any       `json:"payload,omitempty"`
}

// JSONCodec encodes and decodes JSON device messages for one transport.
type JSONCodec struct {
	transport protocol.Transport
	now       func() time.Time
}

// NewJSONCodec creates a JSON codec bound to a transport.
func NewJSONCodec(transport protocol.Transport) *JSONCodec {
	return &JSONCodec{
		transport: transport,
		now:       time.Now,
	}
}

// SupportTransport implements protocol.MessageCodec.
func (c *JSONCodec) SupportTransport() protocol.Transport {
	return c.transport
}

// Decode implements protocol.MessageCodec.
//
// The device ID of the encoded message applies to every decoded message
// that does not carry its own. Messages without an ID get a fresh UUID and
// messages without a timestamp are stamped with the current time.
func (c *JSONCodec) Decode(_ context.Context, in *protocol.EncodedMessage) ([]*protocol.Message, error) {
	if in == nil {
		return nil, ErrEmptyPayload
	}
	raw := bytes.TrimSpace(in.Payload)
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	var wire []wireMessage
	switch raw[0] {
	case '{':
		var single wireMessage
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		wire = []wireMessage{single}
	case '[':
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
	default:
		return nil, fmt.Errorf("%w: expected object or array", ErrMalformedPayload)
	}

	msgs := make([]*protocol.Message, 0, len(wire))
	for i := range wire {
		msg, err := c.fromWire(&wire[i], in.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Encode implements protocol.MessageCodec.
func (c *JSONCodec) Encode(_ context.Context, msg *protocol.Message) (*protocol.EncodedMessage, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if !knownTypes[msg.Type] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}

	wire := wireMessage{
		ID:       msg.ID,
		DeviceID: msg.DeviceID,
		Type:     msg.Type,
		Headers:  msg.Headers,
		Payload:  msg.Payload,
	}
	if wire.ID == "" {
		wire.ID = uuid.NewString()
	}
	if !msg.Timestamp.IsZero() {
		wire.Timestamp = msg.Timestamp.UnixMilli()
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding message %s: %w", wire.ID, err)
	}

	return &protocol.EncodedMessage{
		DeviceID: msg.DeviceID,
		Payload:  data,
	}, nil
}

func (c *JSONCodec) fromWire(w *wireMessage, deviceID string) (*protocol.Message, error) {
	if !knownTypes[w.Type] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, w.Type)
	}

	msg := &protocol.Message{
		ID:       w.ID,
		DeviceID: w.DeviceID,
		Type:     w.Type,
		Headers:  w.Headers,
		Payload:  w.Payload,
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.DeviceID == "" {
		msg.DeviceID = deviceID
	}
	if w.Timestamp > 0 {
		msg.Timestamp = time.UnixMilli(w.Timestamp).UTC()
	} else {
		msg.Timestamp = c.now().UTC()
	}
	return msg, nil
}
