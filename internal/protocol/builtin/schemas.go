package builtin

import (
	"context"
	"iter"

	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/auth"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/metadata"
)

// Data type identifiers used in the built-in schemas.
const (
	dataTypeString   = "string"
	dataTypePassword = "password"
	dataTypeInt      = "int"
	dataTypeFloat    = "float"
	dataTypeDouble   = "double"
	dataTypeLong     = "long"
	dataTypeBoolean  = "boolean"
)

// SecretConfigMetadata describes the device configuration used by the
// secret authenticator.
func SecretConfigMetadata() *metadata.ConfigMetadata {
	return &metadata.ConfigMetadata{
		Name:        "Secret authentication",
		Description: "Devices present a shared secret verified against a stored Argon2id hash.",
		Scopes:      []string{metadata.ScopeDevice},
		Properties: []metadata.ConfigProperty{
			{
				Property:    auth.ConfigKeySecretHash,
				Name:        "Secret hash",
				Description: "PHC-encoded Argon2id hash of the device secret.",
				Type:        metadata.DataType{ID: dataTypePassword},
				Required:    true,
			},
		},
	}
}

// TokenConfigMetadata describes the device configuration used by the token
// authenticator. Tokens carry everything they need, so only issuing
// options are exposed.
func TokenConfigMetadata() *metadata.ConfigMetadata {
	return &metadata.ConfigMetadata{
		Name:        "Token authentication",
		Description: "Devices present an HS256 token whose subject is the device ID.",
		Scopes:      []string{metadata.ScopeDevice, metadata.ScopeProduct},
		Properties: []metadata.ConfigProperty{
			{
				Property:    auth.ConfigKeyTokenTTL,
				Name:        "Token lifetime",
				Description: "Lifetime of tokens issued to the device in hours. Overrides security.device_token.ttl.",
				Type:        metadata.DataType{ID: dataTypeInt, Unit: "h"},
			},
		},
	}
}

// InitConfigMetadata describes the configuration accepted by Support.Init.
func InitConfigMetadata(withTokens bool) *metadata.ConfigMetadata {
	md := &metadata.ConfigMetadata{
		Name:        "Protocol initialisation",
		Description: "Options applied when the protocol support is (re)initialised.",
		Properties:  []metadata.ConfigProperty{},
	}
	if withTokens {
		md.Properties = append(md.Properties, metadata.ConfigProperty{
			Property:    auth.InitKeyTokenSecret,
			Name:        "Token signing secret",
			Description: "Replaces the HS256 secret used to verify device tokens.",
			Type:        metadata.DataType{ID: dataTypePassword},
		})
	}
	return md
}

// ExpandsConfig returns the expandable configuration supplier for transport.
//
// Properties and events get a source mapping on the transport; numeric
// properties additionally get scaling; functions get a reply timeout.
// Tags have no transport-specific configuration.
func ExpandsConfig(transport protocol.Transport) protocol.ExpandsConfigSupplier {
	return protocol.ExpandsConfigFunc(func(_ context.Context, metadataType metadata.Type, _, dataTypeID string) iter.Seq2[*metadata.ConfigMetadata, error] {
		return func(yield func(*metadata.ConfigMetadata, error) bool) {
			switch metadataType {
			case metadata.TypeProperty:
				if !yield(sourceConfig(transport), nil) {
					return
				}
				if isNumeric(dataTypeID) {
					yield(scalingConfig(), nil)
				}
			case metadata.TypeEvent:
				yield(sourceConfig(transport), nil)
			case metadata.TypeFunction:
				yield(timeoutConfig(), nil)
			}
		}
	})
}

func sourceConfig(transport protocol.Transport) *metadata.ConfigMetadata {
	name, description := "Source field", "Payload field the value is read from."
	if transport.ID() == protocol.MQTT.ID() {
		name, description = "Source topic suffix", "Topic suffix below the device uplink topic."
	}
	return &metadata.ConfigMetadata{
		Name:   transport.Name() + " mapping",
		Scopes: []string{metadata.ScopeProduct},
		Properties: []metadata.ConfigProperty{
			{
				Property:    "source",
				Name:        name,
				Description: description,
				Type:        metadata.DataType{ID: dataTypeString},
			},
		},
	}
}

func scalingConfig() *metadata.ConfigMetadata {
	return &metadata.ConfigMetadata{
		Name:   "Scaling",
		Scopes: []string{metadata.ScopeProduct},
		Properties: []metadata.ConfigProperty{
			{Property: "scale", Name: "Scale", Type: metadata.DataType{ID: dataTypeDouble}, Default: 1.0},
			{Property: "offset", Name: "Offset", Type: metadata.DataType{ID: dataTypeDouble}, Default: 0.0},
		},
	}
}

func timeoutConfig() *metadata.ConfigMetadata {
	return &metadata.ConfigMetadata{
		Name:   "Invocation",
		Scopes: []string{metadata.ScopeProduct},
		Properties: []metadata.ConfigProperty{
			{Property: "timeout", Name: "Reply timeout", Type: metadata.DataType{ID: dataTypeInt, Unit: "s"}, Default: 10},
			{Property: "async", Name: "Asynchronous", Type: metadata.DataType{ID: dataTypeBoolean}},
		},
	}
}

func isNumeric(dataTypeID string) bool {
	switch dataTypeID {
	case dataTypeInt, dataTypeLong, dataTypeFloat, dataTypeDouble:
		return true
	}
	return false
}
