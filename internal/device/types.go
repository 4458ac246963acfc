package device

import (
	"maps"
	"regexp"
	"time"
)

// Validation limits.
const (
	// MaxNameLength is the maximum length of a device name.
	MaxNameLength = 100

	// MaxConfigEntries is the maximum number of config values per device.
	MaxConfigEntries = 64
)

// idPattern matches device and transport identifiers: a leading
// alphanumeric followed by up to 127 of [A-Za-z0-9_.:-].
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

// Config key served from Device.SecretHash rather than Device.Config.
const configKeySecretHash = "secret_hash"

// Device is a device allowed to connect to the protocol service.
type Device struct {
	// ID is the device identifier presented on the transport
	// (MQTT client ID / username, CoAP endpoint name, ...).
	ID string `json:"id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// Transport is the ID of the transport the device connects over.
	Transport string `json:"transport"`

	// SecretHash is the Argon2id PHC hash of the device's shared secret.
	// Empty when the device authenticates by token only.
	SecretHash string `json:"-"`

	// Config holds transport-specific settings (keepalive, PSK identity, ...).
	Config map[string]string `json:"config,omitempty"`

	// LastSeen is when the device last sent a message.
	LastSeen *time.Time `json:"last_seen,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns a copy that shares no mutable state with d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	out := *d
	out.Config = maps.Clone(d.Config)
	if d.LastSeen != nil {
		t := *d.LastSeen
		out.LastSeen = &t
	}
	return &out
}

// ConfigValue returns a config value. The "secret_hash" key is served from
// SecretHash.
func (d *Device) ConfigValue(key string) (string, bool) {
	if key == configKeySecretHash {
		return d.SecretHash, d.SecretHash != ""
	}
	v, ok := d.Config[key]
	return v, ok
}

// HasSecret reports whether the device has a stored secret hash.
func (d *Device) HasSecret() bool {
	return d.SecretHash != ""
}
