package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// handleUplink decodes a raw device frame with the transport's codec and
// republishes each decoded message on the message topic.
func (g *Gateway) handleUplink(topic string, payload []byte) error {
	ctx, done, err := g.begin()
	if err != nil {
		return err
	}
	defer done()

	dt, err := mqtt.ParseDeviceTopic(topic)
	if err != nil {
		return err
	}
	transport := protocol.LookupTransport(dt.Transport)
	start := g.now()

	flow := influxdb.MessageFlow{
		Protocol:  g.support.ID(),
		Transport: dt.Transport,
		DeviceID:  dt.DeviceID,
		Direction: influxdb.DirectionUplink,
		Bytes:     len(payload),
		Time:      start,
	}
	defer func() {
		flow.Duration = g.now().Sub(start)
		flow.Err = err
		g.recorder.WriteMessageFlow(flow)
	}()

	if _, err = g.devices.Lookup().Device(ctx, dt.DeviceID); err != nil {
		if errors.Is(err, protocol.ErrDeviceNotFound) {
			err = fmt.Errorf("%w: %s", ErrUnknownDevice, dt.DeviceID)
			g.logger.Warn("dropping uplink from unknown device", "transport", dt.Transport, "device_id", dt.DeviceID)
		}
		return err
	}

	codec, err := g.codecFor(ctx, transport)
	if err != nil {
		return err
	}

	messages, err := codec.Decode(ctx, &protocol.EncodedMessage{
		DeviceID: dt.DeviceID,
		Topic:    topic,
		Payload:  payload,
	})
	if err != nil {
		err = fmt.Errorf("decoding uplink from %s: %w", dt.DeviceID, err)
		return err
	}
	if len(messages) > 0 {
		flow.MessageType = string(messages[0].Type)
	}

	out := mqtt.Topics{}.Message(dt.Transport, dt.DeviceID)
	for _, msg := range messages {
		body, mErr := json.Marshal(msg)
		if mErr != nil {
			err = fmt.Errorf("encoding decoded message: %w", mErr)
			return err
		}
		if err = g.mqtt.Publish(out, body, g.mqtt.QoS(), false); err != nil {
			return err
		}
	}

	if tErr := g.devices.TouchLastSeen(ctx, dt.DeviceID); tErr != nil {
		g.logger.Warn("failed to record last seen", "device_id", dt.DeviceID, "error", tErr)
	}

	g.logger.Debug("uplink decoded",
		"transport", dt.Transport,
		"device_id", dt.DeviceID,
		"messages", len(messages))
	return nil
}
