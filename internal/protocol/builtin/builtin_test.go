package builtin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-protocols/internal/device"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/auth"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/metadata"
)

const testTokenSecret = "0123456789abcdef0123456789abcdef"

// nopRecorder implements gateway.Recorder.
type nopRecorder struct{}

func (nopRecorder) WriteMessageFlow(influxdb.MessageFlow) {}
func (nopRecorder) WriteAuthAttempt(influxdb.AuthAttempt) {}

// testDevice is a protocol.DeviceOperator with in-memory config.
type testDevice struct {
	id     string
	config map[string]string
}

func (d *testDevice) DeviceID() string { return d.id }

func (d *testDevice) Config(_ context.Context, key string) (string, bool, error) {
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

func testConfig() config.ProtocolConfig {
	return config.ProtocolConfig{
		ID:          "graylogic",
		Name:        "Gray Logic Device Protocol",
		StateWindow: 60,
		Transports: []config.TransportConfig{
			{ID: "mqtt", Codec: config.CodecJSON, Authenticator: config.AuthenticatorSecret},
			{ID: "coap", Name: "Constrained", Codec: config.CodecJSON, Authenticator: config.AuthenticatorToken},
			{ID: "tcp", Codec: config.CodecJSON, Authenticator: config.AuthenticatorNone},
		},
	}
}

func newTestSupport(t *testing.T, cfg config.ProtocolConfig) *protocol.Support {
	t.Helper()
	support, err := New(Options{Config: cfg, TokenSecret: testTokenSecret})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = support.Dispose() })
	return support
}

func TestNewRegistersTransports(t *testing.T) {
	ctx := context.Background()
	support := newTestSupport(t, testConfig())

	if support.ID() != "graylogic" || support.Name() != "Gray Logic Device Protocol" {
		t.Errorf("identity = %q/%q", support.ID(), support.Name())
	}

	transports, err := support.SupportedTransports(ctx)
	if err != nil {
		t.Fatalf("SupportedTransports() error = %v", err)
	}
	var ids []string
	for _, tr := range transports {
		ids = append(ids, tr.ID())
	}
	want := []string{"coap", "mqtt", "tcp"}
	if len(ids) != len(want) {
		t.Fatalf("transports = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("transports[%d] = %q, want %q", i, ids[i], want[i])
		}
	}

	c, ok, err := support.MessageCodec(ctx, protocol.LookupTransport("coap"))
	if err != nil || !ok {
		t.Fatalf("MessageCodec(coap) = %v, %v", ok, err)
	}
	if got := c.SupportTransport().Name(); got != "Constrained" {
		t.Errorf("coap transport name = %q, want Constrained", got)
	}

	tests := []struct {
		transport string
		wantName  string
		wantOK    bool
	}{
		{"mqtt", "Secret authentication", true},
		{"coap", "Token authentication", true},
		{"tcp", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.transport, func(t *testing.T) {
			md, ok, err := support.ConfigMetadata(ctx, protocol.LookupTransport(tt.transport))
			if err != nil {
				t.Fatalf("ConfigMetadata() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ConfigMetadata() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && md.Name != tt.wantName {
				t.Errorf("ConfigMetadata().Name = %q, want %q", md.Name, tt.wantName)
			}
		})
	}
}

func TestNewRejectsUnknownComponents(t *testing.T) {
	tests := []struct {
		name    string
		tc      config.TransportConfig
		wantErr error
	}{
		{"codec", config.TransportConfig{ID: "mqtt", Codec: "cbor"}, ErrUnknownCodec},
		{"authenticator", config.TransportConfig{ID: "mqtt", Codec: config.CodecJSON, Authenticator: "ldap"}, ErrUnknownAuthenticator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Transports = []config.TransportConfig{tt.tc}
			_, err := New(Options{Config: cfg})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := New(Options{}); !errors.Is(err, protocol.ErrInvalidSupport) {
		t.Errorf("New() without id error = %v, want ErrInvalidSupport", err)
	}
}

func TestAuthentication(t *testing.T) {
	ctx := context.Background()
	support := newTestSupport(t, testConfig())

	hash, err := auth.HashSecret("s3cret")
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}
	registry := testRegistry{
		"thermo-1": {id: "thermo-1", config: map[string]string{auth.ConfigKeySecretHash: hash}},
	}

	token, err := auth.IssueToken("thermo-1", nil, testTokenSecret, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name     string
		req      protocol.AuthenticationRequest
		wantCode int
		wantErr  error
	}{
		{"secret accepted", protocol.AuthenticationRequest{Transport: protocol.MQTT, Username: "thermo-1", Password: "s3cret"}, protocol.CodeAuthenticated, nil},
		{"secret rejected", protocol.AuthenticationRequest{Transport: protocol.MQTT, Username: "thermo-1", Password: "wrong"}, protocol.CodeUnauthorized, nil},
		{"token accepted", protocol.AuthenticationRequest{Transport: protocol.CoAP, Token: token}, protocol.CodeAuthenticated, nil},
		{"no authenticator", protocol.AuthenticationRequest{Transport: protocol.TCP, Username: "thermo-1"}, 0, protocol.ErrUnsupportedAuthentication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := support.AuthenticateWithRegistry(ctx, tt.req, registry)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d (%s)", resp.Code, tt.wantCode, resp.Message)
			}
		})
	}
}

func TestInitRotatesTokenSecret(t *testing.T) {
	ctx := context.Background()
	support := newTestSupport(t, testConfig())
	registry := testRegistry{"meter-1": {id: "meter-1"}}

	md, ok := support.InitConfigMetadata()
	if !ok || len(md.Properties) != 1 || md.Properties[0].Property != auth.InitKeyTokenSecret {
		t.Fatalf("InitConfigMetadata() = %+v, %v", md, ok)
	}

	const rotated = "fedcba9876543210fedcba9876543210"
	if err := support.Init(map[string]any{auth.InitKeyTokenSecret: rotated}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	oldToken, _ := auth.IssueToken("meter-1", protocol.CoAP, testTokenSecret, time.Hour)
	newToken, _ := auth.IssueToken("meter-1", protocol.CoAP, rotated, time.Hour)

	resp, err := support.AuthenticateWithRegistry(ctx, protocol.AuthenticationRequest{Transport: protocol.CoAP, Token: oldToken}, registry)
	if err != nil || resp.Code != protocol.CodeUnauthorized {
		t.Errorf("old token = %+v, %v; want 401", resp, err)
	}
	resp, err = support.AuthenticateWithRegistry(ctx, protocol.AuthenticationRequest{Transport: protocol.CoAP, Token: newToken}, registry)
	if err != nil || resp.Code != protocol.CodeAuthenticated {
		t.Errorf("new token = %+v, %v; want 200", resp, err)
	}

	if err := support.Init(map[string]any{auth.InitKeyTokenSecret: 42}); !errors.Is(err, protocol.ErrInitFailed) {
		t.Errorf("Init(bad secret) error = %v, want ErrInitFailed", err)
	}
}

func TestSharedTokenAuthenticator(t *testing.T) {
	ctx := context.Background()
	tokens := auth.NewTokenAuthenticator(testTokenSecret)
	support, err := New(Options{Config: testConfig(), Tokens: tokens})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	registry := testRegistry{"meter-1": {id: "meter-1"}}

	token, expires, err := tokens.Issue("meter-1", protocol.CoAP, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if d := time.Until(expires); d <= 0 || d > time.Hour {
		t.Errorf("expiry in %v, want within the hour", d)
	}
	resp, err := support.AuthenticateWithRegistry(ctx, protocol.AuthenticationRequest{Transport: protocol.CoAP, Token: token}, registry)
	if err != nil || resp.Code != protocol.CodeAuthenticated {
		t.Fatalf("issued token = %+v, %v; want 200", resp, err)
	}

	// Dispose clears the shared secret, so nothing more can be issued.
	if err := support.Dispose(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := tokens.Issue("meter-1", protocol.CoAP, time.Hour); !errors.Is(err, auth.ErrSigningSecretMissing) {
		t.Errorf("Issue() after dispose error = %v, want ErrSigningSecretMissing", err)
	}
}

func TestInitConfigWithoutTokens(t *testing.T) {
	cfg := testConfig()
	cfg.Transports = cfg.Transports[:1]
	support := newTestSupport(t, cfg)

	md, ok := support.InitConfigMetadata()
	if !ok {
		t.Fatal("InitConfigMetadata() not set")
	}
	if len(md.Properties) != 0 {
		t.Errorf("Properties = %+v, want none", md.Properties)
	}
	if err := support.Init(map[string]any{auth.InitKeyTokenSecret: "ignored"}); err != nil {
		t.Errorf("Init() error = %v", err)
	}
}

func TestDefaultMetadataFromFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "thermostat.json")
	yamlPath := filepath.Join(dir, "meter.yaml")

	writeFile(t, jsonPath, `{"id":"thermostat","name":"Thermostat"}`)
	writeFile(t, yamlPath, "id: meter\nname: Meter\n")

	cfg := testConfig()
	cfg.Transports[0].DefaultMetadata = jsonPath
	cfg.Transports[1].DefaultMetadata = yamlPath
	cfg.Transports[2].DefaultMetadata = filepath.Join(dir, "missing.json")

	t.Run("json re-read on every lookup", func(t *testing.T) {
		support := newTestSupport(t, cfg)

		md, ok, err := support.DefaultMetadata(ctx, protocol.MQTT)
		if err != nil || !ok || md.Name != "Thermostat" {
			t.Fatalf("DefaultMetadata() = %+v, %v, %v", md, ok, err)
		}

		writeFile(t, jsonPath, `{"id":"thermostat","name":"Thermostat v2"}`)
		md, _, _ = support.DefaultMetadata(ctx, protocol.MQTT)
		if md.Name != "Thermostat v2" {
			t.Errorf("Name after edit = %q, want Thermostat v2", md.Name)
		}
	})

	t.Run("missing file is absent", func(t *testing.T) {
		support := newTestSupport(t, cfg)
		md, ok, err := support.DefaultMetadata(ctx, protocol.TCP)
		if err != nil || ok || md != nil {
			t.Errorf("DefaultMetadata() = %+v, %v, %v; want absent", md, ok, err)
		}
	})

	t.Run("yaml needs the yaml codec", func(t *testing.T) {
		support := newTestSupport(t, cfg)
		_, _, err := support.DefaultMetadata(ctx, protocol.CoAP)
		if !errors.Is(err, ErrUnsupportedMetadataFormat) {
			t.Errorf("error = %v, want ErrUnsupportedMetadataFormat", err)
		}
	})

	t.Run("yaml enabled", func(t *testing.T) {
		withYAML := cfg
		withYAML.MetadataFormats = []string{MetadataFormatYAML}
		support := newTestSupport(t, withYAML)

		md, ok, err := support.DefaultMetadata(ctx, protocol.CoAP)
		if err != nil || !ok || md.ID != "meter" {
			t.Errorf("DefaultMetadata() = %+v, %v, %v", md, ok, err)
		}

		var ids []string
		for c := range support.MetadataCodecs() {
			ids = append(ids, c.ID())
		}
		if len(ids) != 2 || ids[0] != metadata.JSONCodecID || ids[1] != metadata.YAMLCodecID {
			t.Errorf("MetadataCodecs() = %v", ids)
		}
	})

	t.Run("unknown extension", func(t *testing.T) {
		support, err := protocol.New(protocol.Options{ID: "x", MetadataCodec: metadata.NewJSONCodec()})
		if err != nil {
			t.Fatal(err)
		}
		provider := FileMetadata(support, filepath.Join(dir, "model.txt"))
		if _, err := provider(ctx); !errors.Is(err, ErrUnsupportedMetadataFormat) {
			t.Errorf("error = %v, want ErrUnsupportedMetadataFormat", err)
		}
	})

	t.Run("malformed document", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		writeFile(t, bad, `{"id":`)
		support, err := protocol.New(protocol.Options{ID: "x", MetadataCodec: metadata.NewJSONCodec()})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := FileMetadata(support, bad)(ctx); !errors.Is(err, metadata.ErrDecodeFailed) {
			t.Errorf("error = %v, want ErrDecodeFailed", err)
		}
	})
}

func TestExpandsConfig(t *testing.T) {
	ctx := context.Background()
	support := newTestSupport(t, testConfig())

	tests := []struct {
		name       string
		transport  protocol.Transport
		typ        metadata.Type
		dataTypeID string
		want       []string
	}{
		{"numeric property on mqtt", protocol.MQTT, metadata.TypeProperty, "float", []string{"MQTT mapping", "Scaling"}},
		{"string property", protocol.TCP, metadata.TypeProperty, "string", []string{"TCP mapping"}},
		{"event", protocol.MQTT, metadata.TypeEvent, "object", []string{"MQTT mapping"}},
		{"function", protocol.MQTT, metadata.TypeFunction, "", []string{"Invocation"}},
		{"tag", protocol.MQTT, metadata.TypeTag, "string", nil},
		{"unregistered transport", protocol.UDP, metadata.TypeProperty, "int", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for md, err := range support.MetadataExpandsConfig(ctx, tt.transport, tt.typ, "temperature", tt.dataTypeID) {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				got = append(got, md.Name)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}

	// Stopping after the first fragment must not panic.
	for range support.MetadataExpandsConfig(ctx, protocol.MQTT, metadata.TypeProperty, "temperature", "int") {
		break
	}

	var source *metadata.ConfigMetadata
	for md := range support.MetadataExpandsConfig(ctx, protocol.MQTT, metadata.TypeProperty, "temperature", "string") {
		source = md
	}
	if source == nil || source.Properties[0].Name != "Source topic suffix" {
		t.Errorf("mqtt source config = %+v", source)
	}
}

func TestStateCheckerAndInterceptors(t *testing.T) {
	ctx := context.Background()

	withoutDevices := newTestSupport(t, testConfig())
	if _, ok := withoutDevices.StateChecker(); ok {
		t.Error("StateChecker() set without a device registry")
	}

	support, err := New(Options{
		Config:   testConfig(),
		Devices:  device.NewRegistry(nil),
		Recorder: nopRecorder{},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer support.Dispose()

	checker, ok := support.StateChecker()
	if !ok {
		t.Fatal("StateChecker() not set")
	}
	if _, isLastSeen := checker.(*device.LastSeenChecker); !isLastSeen {
		t.Errorf("StateChecker() = %T, want *device.LastSeenChecker", checker)
	}

	msg := &protocol.Message{ID: "m-1", DeviceID: "thermo-1", Type: protocol.MessageWriteProperty}
	out, err := support.SenderInterceptor().PreSend(ctx, &testDevice{id: "thermo-1"}, msg)
	if err != nil || out != msg {
		t.Errorf("PreSend() = %v, %v; want message passed through", out, err)
	}
}

func TestDispose(t *testing.T) {
	support, err := New(Options{Config: testConfig(), TokenSecret: testTokenSecret})
	if err != nil {
		t.Fatal(err)
	}
	if err := support.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	if !support.IsDisposed() {
		t.Error("IsDisposed() = false")
	}
	if _, ok, _ := support.MessageCodec(context.Background(), protocol.MQTT); ok {
		t.Error("codec still resolvable after Dispose")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
