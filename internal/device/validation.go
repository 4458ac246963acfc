package device

import (
	"fmt"
	"unicode/utf8"
)

// ValidateDevice checks a device before it is stored.
//
// Returns an error wrapping ErrInvalidDevice and the specific cause
// (ErrInvalidID, ErrInvalidName, ErrInvalidTransport).
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidDevice)
	}
	if !idPattern.MatchString(d.ID) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidDevice, ErrInvalidID, d.ID)
	}
	if utf8.RuneCountInString(d.Name) > MaxNameLength {
		return fmt.Errorf("%w: %w: longer than %d characters", ErrInvalidDevice, ErrInvalidName, MaxNameLength)
	}
	if !idPattern.MatchString(d.Transport) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidDevice, ErrInvalidTransport, d.Transport)
	}
	if len(d.Config) > MaxConfigEntries {
		return fmt.Errorf("%w: more than %d config entries", ErrInvalidDevice, MaxConfigEntries)
	}
	if _, reserved := d.Config[configKeySecretHash]; reserved {
		return fmt.Errorf("%w: config key %q is reserved", ErrInvalidDevice, configKeySecretHash)
	}
	return nil
}
