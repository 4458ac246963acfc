package protocol

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeRegistry is a DeviceRegistry backed by a map.
type fakeRegistry struct {
	devices map[string]*fakeOperator
}

func (r *fakeRegistry) Device(_ context.Context, id string) (DeviceOperator, error) {
	if d, ok := r.devices[id]; ok {
		return d, nil
	}
	return nil, ErrDeviceNotFound
}

// passwordAuthenticator accepts requests whose password matches the
// device's "secret" config value.
func passwordAuthenticator() Authenticator {
	return AuthenticatorFunc(func(ctx context.Context, req AuthenticationRequest, lookup DeviceLookup) (*AuthenticationResponse, error) {
		dev, err := lookup.Device(ctx, req.DeviceID)
		if err != nil {
			return AuthenticationError(CodeUnauthorized, err.Error()), nil
		}
		secret, _, err := dev.Config(ctx, "secret")
		if err != nil {
			return nil, err
		}
		if secret != req.Password {
			return AuthenticationError(CodeUnauthorized, "bad credentials"), nil
		}
		return AuthenticationSuccess(dev.DeviceID()), nil
	})
}

func TestAuthenticate_DispatchesToTransportAuthenticator(t *testing.T) {
	s := newTestSupport(t)
	s.AddAuthenticator(MQTT, passwordAuthenticator())

	dev := &fakeOperator{id: "sensor-1", config: map[string]string{"secret": "s3cret"}}

	tests := []struct {
		name        string
		password    string
		wantSuccess bool
		wantCode    int
	}{
		{name: "valid credentials", password: "s3cret", wantSuccess: true, wantCode: CodeAuthenticated},
		{name: "invalid credentials", password: "nope", wantSuccess: false, wantCode: CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := AuthenticationRequest{Transport: MQTT, DeviceID: "sensor-1", Password: tt.password}
			resp, err := s.AuthenticateDevice(context.Background(), req, dev)
			if err != nil {
				t.Fatalf("AuthenticateDevice() error = %v", err)
			}
			if resp.Success != tt.wantSuccess || resp.Code != tt.wantCode {
				t.Errorf("response = %+v, want success=%v code=%d", resp, tt.wantSuccess, tt.wantCode)
			}
		})
	}
}

func TestAuthenticate_NilResponseBecomesNoResult(t *testing.T) {
	s := newTestSupport(t)
	s.AddAuthenticator(MQTT, AuthenticatorFunc(func(context.Context, AuthenticationRequest, DeviceLookup) (*AuthenticationResponse, error) {
		return nil, nil
	}))

	resp, err := s.AuthenticateDevice(context.Background(), AuthenticationRequest{Transport: MQTT}, &fakeOperator{id: "d"})
	if err != nil {
		t.Fatalf("AuthenticateDevice() error = %v", err)
	}
	if resp == nil {
		t.Fatal("AuthenticateDevice() returned nil response")
	}
	if resp.Success || resp.Code != CodeNoAuthenticationResult {
		t.Errorf("response = %+v, want failed response with code %d", resp, CodeNoAuthenticationResult)
	}
	if resp.Message == "" {
		t.Error("response message is empty")
	}
}

func TestAuthenticate_UnsupportedTransport(t *testing.T) {
	s := newTestSupport(t)
	s.AddAuthenticator(MQTT, passwordAuthenticator())

	req := AuthenticationRequest{Transport: CoAP, DeviceID: "lamp-7", Password: "secret"}
	resp, err := s.AuthenticateDevice(context.Background(), req, &fakeOperator{id: "lamp-7"})

	if resp != nil {
		t.Errorf("response = %+v, want nil", resp)
	}
	if !errors.Is(err, ErrUnsupportedAuthentication) {
		t.Fatalf("error = %v, want ErrUnsupportedAuthentication", err)
	}

	var unsupported *UnsupportedAuthenticationError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %T, want *UnsupportedAuthenticationError", err)
	}
	if unsupported.Request.Transport.ID() != "coap" || unsupported.Request.DeviceID != "lamp-7" {
		t.Errorf("error request = %v, want the original request", unsupported.Request)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("error message leaks the password: %q", err.Error())
	}
}

func TestAuthenticate_NilTransport(t *testing.T) {
	s := newTestSupport(t)
	s.AddAuthenticator(MQTT, passwordAuthenticator())

	_, err := s.Authenticate(context.Background(), AuthenticationRequest{}, OperatorScope(&fakeOperator{id: "d"}))
	if !errors.Is(err, ErrUnsupportedAuthentication) {
		t.Errorf("error = %v, want ErrUnsupportedAuthentication", err)
	}
}

func TestAuthenticate_AuthenticatorErrorPropagates(t *testing.T) {
	s := newTestSupport(t)
	errBackend := errors.New("credential store offline")
	s.AddAuthenticator(TCP, AuthenticatorFunc(func(context.Context, AuthenticationRequest, DeviceLookup) (*AuthenticationResponse, error) {
		return nil, errBackend
	}))

	resp, err := s.AuthenticateDevice(context.Background(), AuthenticationRequest{Transport: TCP}, &fakeOperator{id: "d"})
	if !errors.Is(err, errBackend) || resp != nil {
		t.Errorf("AuthenticateDevice() = (%v, %v), want (nil, %v)", resp, err, errBackend)
	}
}

func TestAuthenticate_LastRegistrationWins(t *testing.T) {
	s := newTestSupport(t)
	s.AddAuthenticator(MQTT, AuthenticatorFunc(func(context.Context, AuthenticationRequest, DeviceLookup) (*AuthenticationResponse, error) {
		return AuthenticationError(CodeUnauthorized, "first"), nil
	}))
	s.AddAuthenticator(MQTT, AuthenticatorFunc(func(context.Context, AuthenticationRequest, DeviceLookup) (*AuthenticationResponse, error) {
		return AuthenticationSuccess("second"), nil
	}))

	resp, err := s.AuthenticateDevice(context.Background(), AuthenticationRequest{Transport: MQTT}, &fakeOperator{id: "d"})
	if err != nil || !resp.Success || resp.DeviceID != "second" {
		t.Errorf("AuthenticateDevice() = (%+v, %v), want second authenticator", resp, err)
	}
}

func TestAuthenticateWithRegistry(t *testing.T) {
	s := newTestSupport(t)
	s.AddAuthenticator(MQTT, passwordAuthenticator())

	registry := &fakeRegistry{devices: map[string]*fakeOperator{
		"meter-1": {id: "meter-1", config: map[string]string{"secret": "m1"}},
		"meter-2": {id: "meter-2", config: map[string]string{"secret": "m2"}},
	}}

	tests := []struct {
		name        string
		deviceID    string
		password    string
		wantSuccess bool
	}{
		{name: "first device", deviceID: "meter-1", password: "m1", wantSuccess: true},
		{name: "second device", deviceID: "meter-2", password: "m2", wantSuccess: true},
		{name: "wrong device secret", deviceID: "meter-2", password: "m1"},
		{name: "unknown device", deviceID: "meter-9", password: "m9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := AuthenticationRequest{Transport: MQTT, DeviceID: tt.deviceID, Password: tt.password}
			resp, err := s.AuthenticateWithRegistry(context.Background(), req, registry)
			if err != nil {
				t.Fatalf("AuthenticateWithRegistry() error = %v", err)
			}
			if resp.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", resp.Success, tt.wantSuccess)
			}
		})
	}
}

func TestOperatorScope(t *testing.T) {
	dev := &fakeOperator{id: "d1"}
	scope := OperatorScope(dev)
	ctx := context.Background()

	for _, id := range []string{"", "d1"} {
		got, err := scope.Device(ctx, id)
		if err != nil || got != DeviceOperator(dev) {
			t.Errorf("Device(%q) = (%v, %v), want the bound operator", id, got, err)
		}
	}

	if _, err := scope.Device(ctx, "d2"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Device(d2) error = %v, want ErrDeviceNotFound", err)
	}

	if _, err := OperatorScope(nil).Device(ctx, ""); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("nil operator error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistryScope_NilRegistry(t *testing.T) {
	var reg *fakeRegistry
	if _, err := RegistryScope(reg).Device(context.Background(), "x"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}

func TestAuthenticationRequest_StringOmitsSecrets(t *testing.T) {
	req := AuthenticationRequest{
		Transport:  MQTT,
		DeviceID:   "d1",
		ClientID:   "c1",
		Username:   "user",
		Password:   "hunter2",
		Token:      "eyJtoken",
		RemoteAddr: "10.0.0.5:1883",
	}

	got := req.String()
	for _, want := range []string{"transport=mqtt", "device=d1", "client=c1", "username=user", "remote=10.0.0.5:1883"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
	for _, secret := range []string{"hunter2", "eyJtoken"} {
		if strings.Contains(got, secret) {
			t.Errorf("String() = %q, leaks %q", got, secret)
		}
	}
}
