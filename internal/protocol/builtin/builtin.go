package builtin

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-protocols/internal/device"
	"github.com/nerrad567/gray-logic-protocols/internal/gateway"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/auth"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/codec"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/metadata"
)

// MetadataFormatYAML enables the YAML metadata codec.
const MetadataFormatYAML = "yaml"

// Logger defines the logging interface used by the assembled support and
// its interceptors.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures New.
type Options struct {
	// Config is the protocol section of the service configuration.
	Config config.ProtocolConfig

	// TokenSecret signs and verifies device tokens. It may be replaced
	// later through Init with the token_secret key.
	TokenSecret string

	// Tokens is the token authenticator for token transports, shared with
	// whatever issues device tokens. Created from TokenSecret when nil.
	Tokens *auth.TokenAuthenticator

	// Devices backs the last-seen state checker. Optional.
	Devices *device.Registry

	// Recorder receives downlink telemetry. Optional.
	Recorder gateway.Recorder

	// Logger is used by the support and the logging interceptor. Optional.
	Logger Logger
}

// New assembles the protocol support described by opts.
//
// Parameters:
//   - opts: Protocol configuration and optional collaborators
//
// Returns:
//   - *protocol.Support: Support with every configured capability registered
//   - error: If the configuration names an unknown codec or authenticator
func New(opts Options) (*protocol.Support, error) {
	cfg := opts.Config

	var logger protocol.Logger
	var gwLogger gateway.Logger
	if opts.Logger != nil {
		logger = opts.Logger
		gwLogger = opts.Logger
	}

	support, err := protocol.New(protocol.Options{
		ID:            cfg.ID,
		Name:          cfg.Name,
		Description:   cfg.Description,
		MetadataCodec: metadata.NewJSONCodec(),
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating protocol support: %w", err)
	}

	for _, format := range cfg.MetadataFormats {
		if format == MetadataFormatYAML {
			support.AddMetadataCodec(metadata.NewYAMLCodec())
		}
	}

	// One token authenticator is shared by all token transports so a single
	// Init call rotates the secret everywhere.
	var tokens *auth.TokenAuthenticator
	secrets := auth.NewSecretAuthenticator()

	for _, tc := range cfg.Transports {
		transport := transportFor(tc)

		if err := registerCodec(support, transport, tc.Codec); err != nil {
			return nil, err
		}

		switch tc.Authenticator {
		case config.AuthenticatorSecret:
			support.AddAuthenticator(transport, secrets)
			support.AddConfigMetadataInstance(transport, SecretConfigMetadata())
		case config.AuthenticatorToken:
			if tokens == nil {
				tokens = opts.Tokens
			}
			if tokens == nil {
				tokens = auth.NewTokenAuthenticator(opts.TokenSecret)
			}
			support.AddAuthenticator(transport, tokens)
			support.AddConfigMetadataInstance(transport, TokenConfigMetadata())
		case config.AuthenticatorNone, "":
		default:
			return nil, fmt.Errorf("%w: %q on transport %s", ErrUnknownAuthenticator, tc.Authenticator, tc.ID)
		}

		if tc.DefaultMetadata != "" {
			support.AddDefaultMetadata(transport, FileMetadata(support, tc.DefaultMetadata))
		}

		support.SetExpandsConfigMetadata(transport, ExpandsConfig(transport))
	}

	support.SetInitConfigMetadata(InitConfigMetadata(tokens != nil))

	if tokens != nil {
		support.DoOnInit(tokens.InitFunc())
		support.DoOnDispose(protocol.DisposeFunc(func() error {
			tokens.SetSecret("")
			return nil
		}))
	}

	if opts.Devices != nil {
		window := time.Duration(cfg.StateWindow) * time.Second
		support.SetStateChecker(device.NewLastSeenChecker(opts.Devices, window))
	}

	support.AddSenderInterceptor(gateway.NewLoggingInterceptor(gwLogger))
	if opts.Recorder != nil {
		support.AddSenderInterceptor(gateway.NewTelemetryInterceptor(opts.Recorder, cfg.ID))
	}

	return support, nil
}

// transportFor resolves the transport of a configuration entry.
func transportFor(tc config.TransportConfig) protocol.Transport {
	if tc.Name == "" {
		return protocol.LookupTransport(tc.ID)
	}
	return protocol.NewTransport(tc.ID, tc.Name)
}

// registerCodec registers the named message codec for transport.
func registerCodec(support *protocol.Support, transport protocol.Transport, name string) error {
	switch name {
	case config.CodecJSON, "":
		support.AddMessageCodecFor(codec.NewJSONCodec(transport))
		return nil
	default:
		return fmt.Errorf("%w: %q on transport %s", ErrUnknownCodec, name, transport.ID())
	}
}
