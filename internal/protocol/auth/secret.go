package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// Argon2id parameters.
const (
	argonTime    = 3         // iterations
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 1         // parallelism
	argonKeyLen  = 32        // output hash length
	argonSaltLen = 16        // salt length

	// Bounds on parameters read back from stored hashes.
	maxArgonTime    = 10
	maxArgonMemory  = 256 * 1024 // 256 MiB
	maxArgonThreads = 16
	minArgonKeyLen  = 16
	maxArgonKeyLen  = 64
)

// ConfigKeySecretHash is the device config key holding the Argon2id hash.
const ConfigKeySecretHash = "secret_hash"

// HashSecret hashes a device secret using Argon2id and returns it in PHC
// string format: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func HashSecret(secret string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifySecret checks a plaintext secret against an Argon2id PHC hash string.
func VerifySecret(secret, encodedHash string) (bool, error) {
	salt, hash, params, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(secret), salt, params.time, params.memory, params.threads, uint32(len(hash))) //nolint:gosec // G115: hash length always fits uint32

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// validate rejects parameters argon2 would panic on or that cost more than
// any hash this package produces.
func (p argonParams) validate() error {
	switch {
	case p.time < 1 || p.time > maxArgonTime:
		return fmt.Errorf("%w: t=%d out of range", ErrInvalidHash, p.time)
	case p.threads < 1 || p.threads > maxArgonThreads:
		return fmt.Errorf("%w: p=%d out of range", ErrInvalidHash, p.threads)
	case p.memory < 8*uint32(p.threads) || p.memory > maxArgonMemory:
		return fmt.Errorf("%w: m=%d out of range", ErrInvalidHash, p.memory)
	}
	return nil
}

// decodePHC splits an Argon2id PHC string into salt, hash and parameters.
func decodePHC(encoded string) (salt, hash []byte, params argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, fmt.Errorf("%w: expected 6 fields", ErrInvalidHash)
	}
	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("%w: unsupported algorithm %s", ErrInvalidHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("%w: version: %w", ErrInvalidHash, err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("%w: parameters: %w", ErrInvalidHash, err)
	}

	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}
	if err := params.validate(); err != nil { //nolint:govet // shadow
		return nil, nil, params, err
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, params, fmt.Errorf("%w: salt: %w", ErrInvalidHash, err)
	}
	if hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, params, fmt.Errorf("%w: hash: %w", ErrInvalidHash, err)
	}
	if len(hash) < minArgonKeyLen || len(hash) > maxArgonKeyLen {
		return nil, nil, params, fmt.Errorf("%w: hash length %d", ErrInvalidHash, len(hash))
	}

	return salt, hash, params, nil
}

// SecretAuthenticator verifies a shared device secret.
//
// The device is taken from the request's DeviceID, falling back to the
// Username for transports (like MQTT) where devices log in with their ID.
// The presented secret is the request Password.
//
// A device without a stored hash yields no verdict (nil response).
type SecretAuthenticator struct{}

// NewSecretAuthenticator creates a secret authenticator.
func NewSecretAuthenticator() *SecretAuthenticator {
	return &SecretAuthenticator{}
}

// Authenticate implements protocol.Authenticator.
func (a *SecretAuthenticator) Authenticate(ctx context.Context, req protocol.AuthenticationRequest, lookup protocol.DeviceLookup) (*protocol.AuthenticationResponse, error) {
	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = req.Username
	}

	dev, err := lookup.Device(ctx, deviceID)
	if err != nil {
		if errors.Is(err, protocol.ErrDeviceNotFound) {
			return protocol.AuthenticationError(protocol.CodeUnauthorized, "unknown device"), nil
		}
		return nil, err
	}

	stored, ok, err := dev.Config(ctx, ConfigKeySecretHash)
	if err != nil {
		return nil, fmt.Errorf("reading secret hash for %s: %w", dev.DeviceID(), err)
	}
	if !ok || stored == "" {
		return nil, nil
	}

	match, err := VerifySecret(req.Password, stored)
	if err != nil {
		return nil, fmt.Errorf("verifying secret for %s: %w", dev.DeviceID(), err)
	}
	if !match {
		return protocol.AuthenticationError(protocol.CodeUnauthorized, "invalid credentials"), nil
	}
	return protocol.AuthenticationSuccess(dev.DeviceID()), nil
}
