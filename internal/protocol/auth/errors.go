package auth

import "errors"

// Domain errors for the auth package.
var (
	// ErrInvalidHash is returned when a stored secret hash cannot be parsed.
	ErrInvalidHash = errors.New("auth: invalid secret hash")

	// ErrTokenInvalid is returned when a device token fails validation.
	ErrTokenInvalid = errors.New("auth: invalid device token")

	// ErrSigningSecretMissing is returned when tokens are issued or checked
	// before a signing secret is configured.
	ErrSigningSecretMissing = errors.New("auth: token signing secret not configured")
)
