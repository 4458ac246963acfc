package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// Operator exposes one catalogued device to the protocol registry.
// Config reads go through the Registry so they see the latest values.
type Operator struct {
	registry *Registry
	id       string
}

// Operator returns a protocol.DeviceOperator for a device ID.
// The device is not looked up until Config is called.
func (r *Registry) Operator(id string) *Operator {
	return &Operator{registry: r, id: id}
}

// DeviceID implements protocol.DeviceOperator.
func (o *Operator) DeviceID() string {
	return o.id
}

// Config implements protocol.DeviceOperator.
func (o *Operator) Config(ctx context.Context, key string) (string, bool, error) {
	d, err := o.registry.GetDevice(ctx, o.id)
	if err != nil {
		return "", false, toProtocolError(o.id, err)
	}
	v, ok := d.ConfigValue(key)
	return v, ok, nil
}

// lookup adapts a Registry to protocol.DeviceRegistry.
type lookup struct {
	registry *Registry
}

// Lookup returns the registry as a protocol.DeviceRegistry.
// Unknown devices yield an error matching protocol.ErrDeviceNotFound.
func (r *Registry) Lookup() protocol.DeviceRegistry {
	return lookup{registry: r}
}

func (l lookup) Device(ctx context.Context, id string) (protocol.DeviceOperator, error) {
	if _, err := l.registry.GetDevice(ctx, id); err != nil {
		return nil, toProtocolError(id, err)
	}
	return l.registry.Operator(id), nil
}

// toProtocolError maps ErrDeviceNotFound onto protocol.ErrDeviceNotFound,
// keeping both in the chain.
func toProtocolError(id string, err error) error {
	if errors.Is(err, ErrDeviceNotFound) {
		return fmt.Errorf("%w: %w: %s", protocol.ErrDeviceNotFound, err, id)
	}
	return err
}
