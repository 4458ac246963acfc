//go:build integration

package mqtt

import (
	"sync/atomic"
	"testing"
	"time"
)

// These tests need a broker at 127.0.0.1:1883:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func connectForTest(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID

	c, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // test cleanup
	return c
}

func TestIntegration_UplinkRoundtrip(t *testing.T) {
	c := connectForTest(t, "graylogic-int-roundtrip")

	received := make(chan DeviceTopic, 1)
	err := c.Subscribe(Topics{}.AllUplinks(), 1, func(topic string, _ []byte) error {
		dt, err := ParseDeviceTopic(topic)
		if err != nil {
			return err
		}
		received <- dt
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !c.HasSubscription(Topics{}.AllUplinks()) {
		t.Error("subscription not tracked")
	}

	if err := c.PublishDefault(Topics{}.Uplink("mqtt", "int-dev"), []byte(`{"type":"REPORT_PROPERTY"}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case dt := <-received:
		if dt.DeviceID != "int-dev" || dt.Transport != "mqtt" {
			t.Errorf("received %+v", dt)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("uplink not received")
	}

	if err := c.Unsubscribe(Topics{}.AllUplinks()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after Unsubscribe", c.SubscriptionCount())
	}
}

func TestIntegration_CloseMarksDisconnected(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "graylogic-int-close"

	c, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	var connects atomic.Int32
	c.SetOnConnect(func() { connects.Add(1) })

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}
