package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementMessageFlow = "protocol_message_flow"
	MeasurementAuth        = "protocol_auth"
)

// Flow directions.
const (
	DirectionUplink   = "uplink"
	DirectionDownlink = "downlink"
)

// MessageFlow describes one message passing through a codec.
type MessageFlow struct {
	Protocol    string
	Transport   string
	DeviceID    string
	Direction   string
	MessageType string
	Bytes       int
	Duration    time.Duration
	Err         error
	Time        time.Time
}

// AuthAttempt describes one authentication round trip.
type AuthAttempt struct {
	Protocol  string
	Transport string
	Success   bool
	Code      int
	Duration  time.Duration
	Time      time.Time
}

// NewMessageFlowPoint converts f into a line-protocol point. Device ids are
// fields rather than tags to keep series cardinality bounded by transport.
func NewMessageFlowPoint(f MessageFlow) *write.Point {
	ts := f.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := map[string]any{
		"device_id":   f.DeviceID,
		"bytes":       int64(f.Bytes),
		"duration_ms": float64(f.Duration) / float64(time.Millisecond),
		"success":     f.Err == nil,
	}
	if f.Err != nil {
		fields["error"] = f.Err.Error()
	}

	tags := map[string]string{
		"protocol":  f.Protocol,
		"transport": f.Transport,
		"direction": f.Direction,
	}
	if f.MessageType != "" {
		tags["message_type"] = f.MessageType
	}

	return write.NewPoint(MeasurementMessageFlow, tags, fields, ts)
}

// NewAuthPoint converts a into a line-protocol point.
func NewAuthPoint(a AuthAttempt) *write.Point {
	ts := a.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementAuth,
		map[string]string{
			"protocol":  a.Protocol,
			"transport": a.Transport,
		},
		map[string]any{
			"success":     a.Success,
			"code":        int64(a.Code),
			"duration_ms": float64(a.Duration) / float64(time.Millisecond),
		},
		ts,
	)
}

// WriteMessageFlow queues a message-flow point. Dropped silently when
// the client is not connected.
func (c *Client) WriteMessageFlow(f MessageFlow) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(NewMessageFlowPoint(f))
}

// WriteAuthAttempt queues an authentication point.
func (c *Client) WriteAuthAttempt(a AuthAttempt) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(NewAuthPoint(a))
}
