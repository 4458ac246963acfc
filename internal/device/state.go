package device

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// DefaultOnlineWindow is how recently a device must have been seen to be
// reported online.
const DefaultOnlineWindow = 5 * time.Minute

// LastSeenChecker reports device connectivity from the last-seen timestamp.
//
// Devices seen within the window are online, devices seen earlier are
// offline and devices never seen are unknown.
type LastSeenChecker struct {
	registry *Registry
	window   time.Duration
	now      func() time.Time
}

// NewLastSeenChecker creates a state checker. A non-positive window falls
// back to DefaultOnlineWindow.
func NewLastSeenChecker(registry *Registry, window time.Duration) *LastSeenChecker {
	if window <= 0 {
		window = DefaultOnlineWindow
	}
	return &LastSeenChecker{
		registry: registry,
		window:   window,
		now:      time.Now,
	}
}

// CheckState implements protocol.StateChecker.
func (c *LastSeenChecker) CheckState(ctx context.Context, device protocol.DeviceOperator) (protocol.DeviceState, error) {
	d, err := c.registry.GetDevice(ctx, device.DeviceID())
	if err != nil {
		return protocol.StateUnknown, toProtocolError(device.DeviceID(), err)
	}
	if d.LastSeen == nil {
		return protocol.StateUnknown, nil
	}
	if c.now().Sub(*d.LastSeen) <= c.window {
		return protocol.StateOnline, nil
	}
	return protocol.StateOffline, nil
}
