package auth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// InitKeyTokenSecret is the Init config key that replaces the signing secret.
const InitKeyTokenSecret = "token_secret"

// ConfigKeyTokenTTL is the device config key overriding the token lifetime, in hours.
const ConfigKeyTokenTTL = "token_ttl"

// defaultTokenTTL applies when IssueToken is given a non-positive TTL.
const defaultTokenTTL = 24 * time.Hour

// DeviceClaims are the JWT claims of a device token.
type DeviceClaims struct {
	jwt.RegisteredClaims
	Transport string `json:"transport,omitempty"`
}

// IssueToken creates a signed device token.
//
// Parameters:
//   - deviceID: Token subject
//   - transport: Transport the token is valid on; empty for any
//   - secret: HS256 signing secret
//   - ttl: Token lifetime (defaults to 24h when not positive)
func IssueToken(deviceID string, transport protocol.Transport, secret string, ttl time.Duration) (string, error) {
	token, _, err := issueToken(deviceID, transport, secret, ttl, time.Now())
	return token, err
}

func issueToken(deviceID string, transport protocol.Transport, secret string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, ErrSigningSecretMissing
	}
	if deviceID == "" {
		return "", time.Time{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	expires := now.Add(ttl)
	claims := DeviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	if transport != nil {
		claims.Transport = transport.ID()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing device token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates a device token and returns its claims.
func ParseToken(tokenString, secret string) (*DeviceClaims, error) {
	if secret == "" {
		return nil, ErrSigningSecretMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}

// TokenAuthenticator verifies device JWTs.
//
// The token is read from the request Token, falling back to Password for
// transports that only carry a username/password pair.
//
// Thread Safety: the signing secret may be replaced with SetSecret while
// authentications are in flight.
type TokenAuthenticator struct {
	secret atomic.Pointer[string]
}

// NewTokenAuthenticator creates a token authenticator with a signing secret.
func NewTokenAuthenticator(secret string) *TokenAuthenticator {
	a := &TokenAuthenticator{}
	a.SetSecret(secret)
	return a
}

// SetSecret replaces the signing secret.
func (a *TokenAuthenticator) SetSecret(secret string) {
	a.secret.Store(&secret)
}

func (a *TokenAuthenticator) currentSecret() string {
	if p := a.secret.Load(); p != nil {
		return *p
	}
	return ""
}

// Issue signs a device token with the current secret and returns it with
// its expiry. It fails with ErrSigningSecretMissing once the secret has been
// cleared.
func (a *TokenAuthenticator) Issue(deviceID string, transport protocol.Transport, ttl time.Duration) (string, time.Time, error) {
	return issueToken(deviceID, transport, a.currentSecret(), ttl, time.Now())
}

// InitFunc returns an init callback that picks up a new signing secret from
// the InitKeyTokenSecret entry. A missing entry leaves the secret unchanged.
func (a *TokenAuthenticator) InitFunc() protocol.InitFunc {
	return func(config map[string]any) error {
		raw, ok := config[InitKeyTokenSecret]
		if !ok {
			return nil
		}
		secret, ok := raw.(string)
		if !ok || secret == "" {
			return fmt.Errorf("%s must be a non-empty string", InitKeyTokenSecret)
		}
		a.SetSecret(secret)
		return nil
	}
}

// Authenticate implements protocol.Authenticator.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, req protocol.AuthenticationRequest, lookup protocol.DeviceLookup) (*protocol.AuthenticationResponse, error) {
	raw := req.Token
	if raw == "" {
		raw = req.Password
	}
	if raw == "" {
		return protocol.AuthenticationError(protocol.CodeUnauthorized, "missing token"), nil
	}

	claims, err := ParseToken(raw, a.currentSecret())
	if err != nil {
		if errors.Is(err, ErrSigningSecretMissing) {
			return nil, err
		}
		return protocol.AuthenticationError(protocol.CodeUnauthorized, "invalid token"), nil
	}

	if req.DeviceID != "" && req.DeviceID != claims.Subject {
		return protocol.AuthenticationError(protocol.CodeUnauthorized, "token subject mismatch"), nil
	}
	if claims.Transport != "" && req.Transport != nil && claims.Transport != req.Transport.ID() {
		return protocol.AuthenticationError(protocol.CodeUnauthorized, "token not valid for transport"), nil
	}

	dev, err := lookup.Device(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, protocol.ErrDeviceNotFound) {
			return protocol.AuthenticationError(protocol.CodeUnauthorized, "unknown device"), nil
		}
		return nil, err
	}
	return protocol.AuthenticationSuccess(dev.DeviceID()), nil
}
