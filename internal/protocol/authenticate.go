package protocol

import (
	"context"
	"fmt"
	"strings"
)

// Authentication response codes.
const (
	// CodeAuthenticated is set on successful responses.
	CodeAuthenticated = 200

	// CodeNoAuthenticationResult is set when an authenticator ran but
	// produced no response.
	CodeNoAuthenticationResult = 400

	// CodeUnauthorized is set when credentials were rejected.
	CodeUnauthorized = 401
)

// messageNoAuthenticationResult is the message paired with CodeNoAuthenticationResult.
const messageNoAuthenticationResult = "could not obtain an authentication result"

// AuthenticationRequest carries device credentials presented on a transport.
type AuthenticationRequest struct {
	// Transport the device connected over (required for dispatch).
	Transport Transport

	// DeviceID claimed by the device, if known up front.
	DeviceID string

	// ClientID is the transport-level client identifier (e.g., MQTT client ID).
	ClientID string

	// Username and Password for credential-based transports.
	Username string
	Password string

	// Token for token-based transports.
	Token string

	// RemoteAddr of the connecting peer, for diagnostics.
	RemoteAddr string
}

// String describes the request without secrets.
func (r AuthenticationRequest) String() string {
	var b strings.Builder
	b.WriteString("transport=")
	if r.Transport != nil {
		b.WriteString(r.Transport.ID())
	} else {
		b.WriteString("<nil>")
	}
	if r.DeviceID != "" {
		fmt.Fprintf(&b, " device=%s", r.DeviceID)
	}
	if r.ClientID != "" {
		fmt.Fprintf(&b, " client=%s", r.ClientID)
	}
	if r.Username != "" {
		fmt.Fprintf(&b, " username=%s", r.Username)
	}
	if r.RemoteAddr != "" {
		fmt.Fprintf(&b, " remote=%s", r.RemoteAddr)
	}
	return b.String()
}

// AuthenticationResponse is the outcome of an authentication attempt.
type AuthenticationResponse struct {
	Success  bool   `json:"success"`
	DeviceID string `json:"device_id,omitempty"`
	Code     int    `json:"code"`
	Message  string `json:"message,omitempty"`
}

// AuthenticationSuccess returns a successful response for a device.
func AuthenticationSuccess(deviceID string) *AuthenticationResponse {
	return &AuthenticationResponse{
		Success:  true,
		DeviceID: deviceID,
		Code:     CodeAuthenticated,
	}
}

// AuthenticationError returns a failed response.
func AuthenticationError(code int, message string) *AuthenticationResponse {
	return &AuthenticationResponse{
		Code:    code,
		Message: message,
	}
}

// DeviceLookup resolves the device an authentication request refers to.
//
// It is the context an Authenticator works in: either a single known device
// (OperatorScope) or the whole device catalogue (RegistryScope).
type DeviceLookup interface {
	Device(ctx context.Context, deviceID string) (DeviceOperator, error)
}

// operatorScope binds authentication to one already-known device.
type operatorScope struct {
	operator DeviceOperator
}

// OperatorScope returns a DeviceLookup bound to a single device. Lookups
// for an empty ID or the operator's own ID return the operator; anything
// else is ErrDeviceNotFound.
func OperatorScope(operator DeviceOperator) DeviceLookup {
	return operatorScope{operator: operator}
}

func (o operatorScope) Device(_ context.Context, deviceID string) (DeviceOperator, error) {
	if isNil(o.operator) {
		return nil, ErrDeviceNotFound
	}
	if deviceID != "" && deviceID != o.operator.DeviceID() {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return o.operator, nil
}

// registryScope resolves devices through a DeviceRegistry.
type registryScope struct {
	registry DeviceRegistry
}

// RegistryScope returns a DeviceLookup backed by a device registry.
func RegistryScope(registry DeviceRegistry) DeviceLookup {
	return registryScope{registry: registry}
}

func (r registryScope) Device(ctx context.Context, deviceID string) (DeviceOperator, error) {
	if isNil(r.registry) {
		return nil, ErrDeviceNotFound
	}
	return r.registry.Device(ctx, deviceID)
}

// Authenticator verifies device credentials for a transport.
//
// Returning (nil, nil) means the authenticator could not reach a verdict;
// the registry converts that into a CodeNoAuthenticationResult response.
type Authenticator interface {
	Authenticate(ctx context.Context, req AuthenticationRequest, lookup DeviceLookup) (*AuthenticationResponse, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, req AuthenticationRequest, lookup DeviceLookup) (*AuthenticationResponse, error)

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, req AuthenticationRequest, lookup DeviceLookup) (*AuthenticationResponse, error) {
	return f(ctx, req, lookup)
}

// AddAuthenticator registers the authenticator for a transport, replacing
// any earlier registration.
func (s *Support) AddAuthenticator(transport Transport, authenticator Authenticator) {
	if isNil(authenticator) {
		return
	}
	register(s, s.authenticators, "authenticator", transport, authenticator)
}

// Authenticate dispatches a request to the authenticator registered for its
// transport.
//
// Returns:
//   - *AuthenticationResponse: The authenticator's response, or a
//     CodeNoAuthenticationResult response if it produced none
//   - error: *UnsupportedAuthenticationError when no authenticator is
//     registered; otherwise the authenticator's own error, unchanged
func (s *Support) Authenticate(ctx context.Context, req AuthenticationRequest, lookup DeviceLookup) (*AuthenticationResponse, error) {
	var (
		authenticator Authenticator
		ok            bool
	)
	if req.Transport != nil && !s.disposed.Load() {
		authenticator, ok = s.authenticators.get(req.Transport.ID())
	}
	if !ok || isNil(authenticator) {
		return nil, &UnsupportedAuthenticationError{Request: req}
	}

	resp, err := authenticator.Authenticate(ctx, req, lookup)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return AuthenticationError(CodeNoAuthenticationResult, messageNoAuthenticationResult), nil
	}
	return resp, nil
}

// AuthenticateDevice authenticates a request against a known device.
func (s *Support) AuthenticateDevice(ctx context.Context, req AuthenticationRequest, operator DeviceOperator) (*AuthenticationResponse, error) {
	return s.Authenticate(ctx, req, OperatorScope(operator))
}

// AuthenticateWithRegistry authenticates a request, resolving the device
// through a registry.
func (s *Support) AuthenticateWithRegistry(ctx context.Context, req AuthenticationRequest, registry DeviceRegistry) (*AuthenticationResponse, error) {
	return s.Authenticate(ctx, req, RegistryScope(registry))
}
