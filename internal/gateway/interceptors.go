package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// LoggingInterceptor logs every device send.
type LoggingInterceptor struct {
	logger Logger
}

// NewLoggingInterceptor returns an interceptor that logs to logger.
func NewLoggingInterceptor(logger Logger) *LoggingInterceptor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LoggingInterceptor{logger: logger}
}

// PreSend implements protocol.SenderInterceptor.
func (l *LoggingInterceptor) PreSend(_ context.Context, device protocol.DeviceOperator, msg *protocol.Message) (*protocol.Message, error) {
	l.logger.Debug("sending message",
		"device_id", device.DeviceID(),
		"message_id", msg.ID,
		"type", msg.Type)
	return msg, nil
}

// AfterSent implements protocol.SenderInterceptor.
func (l *LoggingInterceptor) AfterSent(_ context.Context, device protocol.DeviceOperator, msg *protocol.Message, reply *protocol.Message) (*protocol.Message, error) {
	l.logger.Info("message sent",
		"device_id", device.DeviceID(),
		"message_id", msg.ID,
		"type", msg.Type)
	return reply, nil
}

// TelemetryInterceptor records downlink timings in InfluxDB.
//
// PreSend stamps the start time; AfterSent writes a protocol_message_flow
// point. Sends that never reach AfterSent (encode or publish failure) are
// forgotten once their start stamp expires.
type TelemetryInterceptor struct {
	recorder Recorder
	protocol string
	now      func() time.Time

	mu      sync.Mutex
	started map[string]time.Time // by message ID
}

// staleAfter bounds how long an unmatched PreSend stamp is kept.
const staleAfter = time.Minute

// NewTelemetryInterceptor returns an interceptor writing to recorder.
func NewTelemetryInterceptor(recorder Recorder, protocolID string) *TelemetryInterceptor {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &TelemetryInterceptor{
		recorder: recorder,
		protocol: protocolID,
		now:      time.Now,
		started:  make(map[string]time.Time),
	}
}

// PreSend implements protocol.SenderInterceptor.
func (t *TelemetryInterceptor) PreSend(_ context.Context, _ protocol.DeviceOperator, msg *protocol.Message) (*protocol.Message, error) {
	now := t.now()

	t.mu.Lock()
	for id, at := range t.started {
		if now.Sub(at) > staleAfter {
			delete(t.started, id)
		}
	}
	t.started[msg.ID] = now
	t.mu.Unlock()

	return msg, nil
}

// AfterSent implements protocol.SenderInterceptor.
func (t *TelemetryInterceptor) AfterSent(_ context.Context, device protocol.DeviceOperator, msg *protocol.Message, reply *protocol.Message) (*protocol.Message, error) {
	now := t.now()

	t.mu.Lock()
	start, ok := t.started[msg.ID]
	delete(t.started, msg.ID)
	t.mu.Unlock()
	if !ok {
		start = now
	}

	flow := influxdb.MessageFlow{
		Protocol:    t.protocol,
		DeviceID:    device.DeviceID(),
		Direction:   influxdb.DirectionDownlink,
		MessageType: string(msg.Type),
		Duration:    now.Sub(start),
		Time:        start,
	}
	if n, ok := reply.Header(HeaderDownlinkBytes); ok {
		flow.Bytes, _ = n.(int)
	}
	if tr, ok := reply.Header(HeaderTransport); ok {
		flow.Transport, _ = tr.(string)
	}
	t.recorder.WriteMessageFlow(flow)

	return reply, nil
}

// pending returns the number of unmatched PreSend stamps.
func (t *TelemetryInterceptor) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.started)
}
