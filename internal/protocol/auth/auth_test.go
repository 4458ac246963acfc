package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/metadata"
)

// testDevice is a protocol.DeviceOperator with in-memory config.
type testDevice struct {
	id     string
	config map[string]string
	err    error
}

func (d *testDevice) DeviceID() string { return d.id }

func (d *testDevice) Config(_ context.Context, key string) (string, bool, error) {
	if d.err != nil {
		return "", false, d.err
	}
	v, ok := d.config[key]
	return v, ok, nil
}

// testRegistry is a protocol.DeviceRegistry over a map.
type testRegistry map[string]*testDevice

func (r testRegistry) Device(_ context.Context, id string) (protocol.DeviceOperator, error) {
	if d, ok := r[id]; ok {
		return d, nil
	}
	return nil, protocol.ErrDeviceNotFound
}

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	h, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}
	return h
}

func TestHashSecret_RoundTrip(t *testing.T) {
	hash := mustHash(t, "device-psk")

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash should start with $argon2id$, got %q", hash)
	}

	ok, err := VerifySecret("device-psk", hash)
	if err != nil || !ok {
		t.Errorf("VerifySecret(correct) = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = VerifySecret("other", hash)
	if err != nil || ok {
		t.Errorf("VerifySecret(wrong) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestHashSecret_UniqueSalts(t *testing.T) {
	if mustHash(t, "same") == mustHash(t, "same") {
		t.Error("two hashes of the same secret should have different salts")
	}
}

func TestVerifySecret_InvalidHash(t *testing.T) {
	// 32 zero bytes, the length HashSecret produces.
	validHash := base64.RawStdEncoding.EncodeToString(make([]byte, argonKeyLen))

	tests := []struct {
		name string
		hash string
	}{
		{name: "empty", hash: ""},
		{name: "wrong algorithm", hash: "$bcrypt$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{name: "bad params", hash: "$argon2id$v=19$garbage$c2FsdA$aGFzaA"},
		{name: "bad salt", hash: "$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA"},
		{name: "zero threads", hash: "$argon2id$v=19$m=65536,t=3,p=0$c2FsdHNhbHRzYWx0c2FsdA$" + validHash},
		{name: "zero time", hash: "$argon2id$v=19$m=65536,t=0,p=1$c2FsdHNhbHRzYWx0c2FsdA$" + validHash},
		{name: "huge memory", hash: "$argon2id$v=19$m=4294967295,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$" + validHash},
		{name: "old version", hash: "$argon2id$v=16$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$" + validHash},
		{name: "empty hash", hash: "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$"},
		{name: "short hash", hash: "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := VerifySecret("x", tt.hash); !errors.Is(err, ErrInvalidHash) {
				t.Errorf("VerifySecret() error = %v, want ErrInvalidHash", err)
			}
		})
	}
}

func TestSecretAuthenticator(t *testing.T) {
	registry := testRegistry{
		"meter-1":   {id: "meter-1", config: map[string]string{ConfigKeySecretHash: mustHash(t, "m1-secret")}},
		"unmanaged": {id: "unmanaged", config: map[string]string{}},
	}
	a := NewSecretAuthenticator()

	tests := []struct {
		name     string
		req      protocol.AuthenticationRequest
		wantNil  bool
		wantCode int
	}{
		{
			name:     "valid by device id",
			req:      protocol.AuthenticationRequest{Transport: protocol.MQTT, DeviceID: "meter-1", Password: "m1-secret"},
			wantCode: protocol.CodeAuthenticated,
		},
		{
			name:     "valid by username",
			req:      protocol.AuthenticationRequest{Transport: protocol.MQTT, Username: "meter-1", Password: "m1-secret"},
			wantCode: protocol.CodeAuthenticated,
		},
		{
			name:     "wrong secret",
			req:      protocol.AuthenticationRequest{Transport: protocol.MQTT, DeviceID: "meter-1", Password: "guess"},
			wantCode: protocol.CodeUnauthorized,
		},
		{
			name:     "unknown device",
			req:      protocol.AuthenticationRequest{Transport: protocol.MQTT, DeviceID: "ghost", Password: "x"},
			wantCode: protocol.CodeUnauthorized,
		},
		{
			name:    "no stored secret",
			req:     protocol.AuthenticationRequest{Transport: protocol.MQTT, DeviceID: "unmanaged", Password: "x"},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := a.Authenticate(context.Background(), tt.req, protocol.RegistryScope(registry))
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if tt.wantNil {
				if resp != nil {
					t.Errorf("Authenticate() = %+v, want nil", resp)
				}
				return
			}
			if resp == nil || resp.Code != tt.wantCode {
				t.Errorf("Authenticate() = %+v, want code %d", resp, tt.wantCode)
			}
		})
	}
}

func TestSecretAuthenticator_ConfigErrorPropagates(t *testing.T) {
	errStore := errors.New("store unavailable")
	dev := &testDevice{id: "d1", err: errStore}

	_, err := NewSecretAuthenticator().Authenticate(context.Background(),
		protocol.AuthenticationRequest{Transport: protocol.MQTT, DeviceID: "d1"},
		protocol.OperatorScope(dev))
	if !errors.Is(err, errStore) {
		t.Errorf("Authenticate() error = %v, want %v", err, errStore)
	}
}

func TestSecretAuthenticator_NoVerdictThroughSupport(t *testing.T) {
	s, err := protocol.New(protocol.Options{ID: "auth-test", MetadataCodec: metadataCodec()})
	if err != nil {
		t.Fatalf("protocol.New() error = %v", err)
	}
	s.AddAuthenticator(protocol.MQTT, NewSecretAuthenticator())

	resp, err := s.AuthenticateDevice(context.Background(),
		protocol.AuthenticationRequest{Transport: protocol.MQTT, DeviceID: "bare"},
		&testDevice{id: "bare", config: map[string]string{}})
	if err != nil {
		t.Fatalf("AuthenticateDevice() error = %v", err)
	}
	if resp.Code != protocol.CodeNoAuthenticationResult {
		t.Errorf("Code = %d, want %d", resp.Code, protocol.CodeNoAuthenticationResult)
	}
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken("sensor-9", protocol.CoAP, "signing-key", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := ParseToken(token, "signing-key")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "sensor-9" || claims.Transport != "coap" || claims.ID == "" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ParseToken(token, "other-key"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(wrong key) error = %v, want ErrTokenInvalid", err)
	}
	if _, err := IssueToken("x", nil, "", time.Hour); !errors.Is(err, ErrSigningSecretMissing) {
		t.Errorf("IssueToken(no secret) error = %v, want ErrSigningSecretMissing", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	claims := DeviceClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "d1",
		IssuedAt:  jwt.NewNumericDate(past),
		ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if _, err := ParseToken(token, "k"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(expired) error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenAuthenticator(t *testing.T) {
	registry := testRegistry{"sensor-1": {id: "sensor-1"}}
	a := NewTokenAuthenticator("key-1")

	valid, _ := IssueToken("sensor-1", protocol.MQTT, "key-1", time.Hour)
	anyTransport, _ := IssueToken("sensor-1", nil, "key-1", time.Hour)
	unknown, _ := IssueToken("sensor-404", nil, "key-1", time.Hour)
	coapOnly, _ := IssueToken("sensor-1", protocol.CoAP, "key-1", time.Hour)

	tests := []struct {
		name     string
		req      protocol.AuthenticationRequest
		wantCode int
	}{
		{name: "token field", req: protocol.AuthenticationRequest{Transport: protocol.MQTT, Token: valid}, wantCode: protocol.CodeAuthenticated},
		{name: "password field", req: protocol.AuthenticationRequest{Transport: protocol.MQTT, Password: anyTransport}, wantCode: protocol.CodeAuthenticated},
		{name: "missing token", req: protocol.AuthenticationRequest{Transport: protocol.MQTT}, wantCode: protocol.CodeUnauthorized},
		{name: "garbage token", req: protocol.AuthenticationRequest{Transport: protocol.MQTT, Token: "not-a-jwt"}, wantCode: protocol.CodeUnauthorized},
		{name: "subject mismatch", req: protocol.AuthenticationRequest{Transport: protocol.MQTT, DeviceID: "other", Token: valid}, wantCode: protocol.CodeUnauthorized},
		{name: "wrong transport", req: protocol.AuthenticationRequest{Transport: protocol.MQTT, Token: coapOnly}, wantCode: protocol.CodeUnauthorized},
		{name: "unknown device", req: protocol.AuthenticationRequest{Transport: protocol.MQTT, Token: unknown}, wantCode: protocol.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := a.Authenticate(context.Background(), tt.req, protocol.RegistryScope(registry))
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("Code = %d (%s), want %d", resp.Code, resp.Message, tt.wantCode)
			}
		})
	}
}

func TestTokenAuthenticator_InitRotatesSecret(t *testing.T) {
	a := NewTokenAuthenticator("old-key")
	registry := testRegistry{"d1": {id: "d1"}}

	s, err := protocol.New(protocol.Options{ID: "token-test", MetadataCodec: metadataCodec()})
	if err != nil {
		t.Fatalf("protocol.New() error = %v", err)
	}
	s.AddAuthenticator(protocol.MQTT, a)
	s.DoOnInit(a.InitFunc())

	newToken, _ := IssueToken("d1", nil, "new-key", time.Hour)
	req := protocol.AuthenticationRequest{Transport: protocol.MQTT, Token: newToken}

	resp, err := s.AuthenticateWithRegistry(context.Background(), req, registry)
	if err != nil || resp.Success {
		t.Fatalf("before rotation = (%+v, %v), want rejection", resp, err)
	}

	if err := s.Init(map[string]any{InitKeyTokenSecret: "new-key"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	resp, err = s.AuthenticateWithRegistry(context.Background(), req, registry)
	if err != nil || !resp.Success {
		t.Errorf("after rotation = (%+v, %v), want success", resp, err)
	}

	if err := s.Init(map[string]any{InitKeyTokenSecret: 42}); !errors.Is(err, protocol.ErrInitFailed) {
		t.Errorf("Init(bad secret) error = %v, want ErrInitFailed", err)
	}
}

func TestTokenAuthenticator_NoSecret(t *testing.T) {
	a := NewTokenAuthenticator("")
	_, err := a.Authenticate(context.Background(),
		protocol.AuthenticationRequest{Transport: protocol.MQTT, Token: "x.y.z"},
		protocol.RegistryScope(testRegistry{}))
	if !errors.Is(err, ErrSigningSecretMissing) {
		t.Errorf("Authenticate() error = %v, want ErrSigningSecretMissing", err)
	}
}

func metadataCodec() metadata.Codec { return metadata.NewJSONCodec() }

func TestTokenAuthenticator_Issue(t *testing.T) {
	a := NewTokenAuthenticator("0123456789abcdef0123456789abcdef")

	token, expires, err := a.Issue("meter-1", protocol.CoAP, 2*time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := ParseToken(token, "0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "meter-1" || claims.Transport != "coap" || !claims.ExpiresAt.Time.Equal(expires.Truncate(time.Second)) {
		t.Errorf("claims = %+v, expires = %v", claims, expires)
	}

	if _, _, err := a.Issue("", protocol.CoAP, time.Hour); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Issue(no subject) error = %v, want ErrTokenInvalid", err)
	}

	a.SetSecret("")
	if _, _, err := a.Issue("meter-1", nil, time.Hour); !errors.Is(err, ErrSigningSecretMissing) {
		t.Errorf("Issue(no secret) error = %v, want ErrSigningSecretMissing", err)
	}
}
