package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// handleTimeout bounds the work done for one inbound message.
const handleTimeout = 10 * time.Second

// MQTTClient is the broker connection the gateway needs.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	QoS() byte
}

// DeviceCatalogue resolves devices and records their activity.
// *device.Registry satisfies it.
type DeviceCatalogue interface {
	Lookup() protocol.DeviceRegistry
	TouchLastSeen(ctx context.Context, id string) error
}

// Recorder receives telemetry. *influxdb.Client satisfies it.
type Recorder interface {
	WriteMessageFlow(f influxdb.MessageFlow)
	WriteAuthAttempt(a influxdb.AuthAttempt)
}

// Logger is the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopRecorder struct{}

func (noopRecorder) WriteMessageFlow(influxdb.MessageFlow) {}
func (noopRecorder) WriteAuthAttempt(influxdb.AuthAttempt) {}

// Options configures a Gateway.
type Options struct {
	// Support is the protocol registry consulted for every message. Required.
	Support *protocol.Support

	// MQTT is the broker connection. Required.
	MQTT MQTTClient

	// Devices is the device catalogue. Required.
	Devices DeviceCatalogue

	// Recorder is optional; uplink and auth telemetry is dropped when nil.
	Recorder Recorder

	// Logger is optional.
	Logger Logger
}

// Gateway subscribes to device traffic and routes it through the registry.
//
// Thread Safety: handlers run concurrently on the MQTT client's goroutines.
type Gateway struct {
	support  *protocol.Support
	mqtt     MQTTClient
	devices  DeviceCatalogue
	recorder Recorder
	logger   Logger
	now      func() time.Time

	topics []string

	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	stopMu    sync.Mutex // orders wg.Add against Stop
	stopped   bool
	stopOnce  sync.Once
}

// New creates a gateway. Call Start to subscribe.
func New(opts Options) (*Gateway, error) {
	if opts.Support == nil {
		return nil, fmt.Errorf("protocol support is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Devices == nil {
		return nil, fmt.Errorf("device catalogue is required")
	}

	g := &Gateway{
		support:  opts.Support,
		mqtt:     opts.MQTT,
		devices:  opts.Devices,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if g.recorder == nil {
		g.recorder = noopRecorder{}
	}
	if g.logger == nil {
		g.logger = noopLogger{}
	}
	g.ctx, g.ctxCancel = context.WithCancel(context.Background())
	return g, nil
}

// Start subscribes to uplink, command and auth topics.
func (g *Gateway) Start(_ context.Context) error {
	topics := mqtt.Topics{}
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{topics.AllUplinks(), g.handleUplink},
		{topics.AllCommands(), g.handleCommand},
		{topics.AllAuthRequests(), g.handleAuthRequest},
	}

	for _, s := range subs {
		if err := g.mqtt.Subscribe(s.topic, g.mqtt.QoS(), s.handler); err != nil {
			return fmt.Errorf("subscribe to %s: %w", s.topic, err)
		}
		g.topics = append(g.topics, s.topic)
		g.logger.Info("subscribed", "topic", s.topic)
	}

	g.logger.Info("gateway started", "protocol", g.support.ID())
	return nil
}

// Stop unsubscribes, cancels in-flight handlers and waits for them.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		g.stopMu.Lock()
		g.stopped = true
		g.stopMu.Unlock()

		g.ctxCancel()
		for _, topic := range g.topics {
			if err := g.mqtt.Unsubscribe(topic); err != nil {
				g.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
			}
		}
		g.wg.Wait()
		g.logger.Info("gateway stopped")
	})
}

// begin registers an in-flight handler and returns its context.
func (g *Gateway) begin() (context.Context, context.CancelFunc, error) {
	g.stopMu.Lock()
	defer g.stopMu.Unlock()
	if g.stopped {
		return nil, nil, ErrStopped
	}
	g.wg.Add(1)
	ctx, cancel := context.WithTimeout(g.ctx, handleTimeout)
	return ctx, func() {
		cancel()
		g.wg.Done()
	}, nil
}

func (g *Gateway) codecFor(ctx context.Context, transport protocol.Transport) (protocol.MessageCodec, error) {
	codec, ok, err := g.support.MessageCodec(ctx, transport)
	if err != nil {
		return nil, fmt.Errorf("resolving codec for %s: %w", transport.ID(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCodec, transport.ID())
	}
	return codec, nil
}
