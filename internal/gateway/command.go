package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// Headers set on the local send receipt passed to AfterSent.
const (
	HeaderTransport     = "transport"
	HeaderDownlinkTopic = "downlink_topic"
	HeaderDownlinkBytes = "downlink_bytes"
)

// handleCommand sends a message to a device: the registry's sender
// interceptor sees it before encoding and after publishing.
func (g *Gateway) handleCommand(topic string, payload []byte) error {
	ctx, done, err := g.begin()
	if err != nil {
		return err
	}
	defer done()

	dt, err := mqtt.ParseDeviceTopic(topic)
	if err != nil {
		return err
	}

	var msg protocol.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	msg.DeviceID = dt.DeviceID
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = g.now()
	}

	_, err = g.Send(ctx, protocol.LookupTransport(dt.Transport), &msg)
	return err
}

// Send runs msg through the sender interceptor chain, encodes it with the
// transport's codec and publishes it on the device's downlink topic.
//
// Returns the reply produced by AfterSent: a receipt message of type
// protocol.MessageReply unless an interceptor replaced it.
func (g *Gateway) Send(ctx context.Context, transport protocol.Transport, msg *protocol.Message) (*protocol.Message, error) {
	operator, err := g.devices.Lookup().Device(ctx, msg.DeviceID)
	if err != nil {
		if errors.Is(err, protocol.ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, msg.DeviceID)
		}
		return nil, err
	}

	interceptor := g.support.SenderInterceptor()

	out, err := interceptor.PreSend(ctx, operator, msg)
	if err != nil {
		return nil, fmt.Errorf("pre-send for %s: %w", msg.DeviceID, err)
	}
	if out == nil {
		g.logger.Debug("send suppressed by interceptor", "device_id", msg.DeviceID, "message_id", msg.ID)
		return nil, nil
	}

	codec, err := g.codecFor(ctx, transport)
	if err != nil {
		return nil, err
	}
	encoded, err := codec.Encode(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("encoding message for %s: %w", out.DeviceID, err)
	}

	downlink := encoded.Topic
	if downlink == "" {
		downlink = mqtt.Topics{}.Downlink(transport.ID(), out.DeviceID)
	}
	if err := g.mqtt.Publish(downlink, encoded.Payload, g.mqtt.QoS(), false); err != nil {
		return nil, fmt.Errorf("publishing downlink: %w", err)
	}

	receipt := &protocol.Message{
		ID:        out.ID,
		DeviceID:  out.DeviceID,
		Type:      protocol.MessageReply,
		Timestamp: g.now(),
		Headers: map[string]any{
			HeaderTransport:     transport.ID(),
			HeaderDownlinkTopic: downlink,
			HeaderDownlinkBytes: len(encoded.Payload),
		},
	}
	reply, err := interceptor.AfterSent(ctx, operator, out, receipt)
	if err != nil {
		return nil, fmt.Errorf("after-sent for %s: %w", out.DeviceID, err)
	}
	return reply, nil
}
