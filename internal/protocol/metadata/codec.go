package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Codec converts device metadata to and from a serialised document.
type Codec interface {
	// ID identifies the codec (e.g., "graylogic-json").
	ID() string

	// Decode parses a document into a DeviceMetadata.
	Decode(ctx context.Context, source []byte) (*DeviceMetadata, error)

	// Encode serialises a DeviceMetadata.
	Encode(ctx context.Context, md *DeviceMetadata) ([]byte, error)
}

// Codec identifiers.
const (
	JSONCodecID = "graylogic-json"
	YAMLCodecID = "graylogic-yaml"
)

// JSONCodec is the default metadata codec.
type JSONCodec struct{}

// NewJSONCodec returns the JSON metadata codec.
func NewJSONCodec() *JSONCodec { return &JSONCodec{} }

// ID implements Codec.
func (*JSONCodec) ID() string { return JSONCodecID }

// Decode implements Codec.
// Unknown fields are rejected so typos in product definitions surface early.
func (*JSONCodec) Decode(_ context.Context, source []byte) (*DeviceMetadata, error) {
	if len(bytes.TrimSpace(source)) == 0 {
		return nil, ErrEmptySource
	}

	dec := json.NewDecoder(bytes.NewReader(source))
	dec.DisallowUnknownFields()

	var md DeviceMetadata
	if err := dec.Decode(&md); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return &md, nil
}

// Encode implements Codec.
func (*JSONCodec) Encode(_ context.Context, md *DeviceMetadata) ([]byte, error) {
	if md == nil {
		return nil, ErrNilMetadata
	}
	data, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return data, nil
}

// YAMLCodec reads and writes device metadata as YAML.
type YAMLCodec struct{}

// NewYAMLCodec returns the YAML metadata codec.
func NewYAMLCodec() *YAMLCodec { return &YAMLCodec{} }

// ID implements Codec.
func (*YAMLCodec) ID() string { return YAMLCodecID }

// Decode implements Codec.
func (*YAMLCodec) Decode(_ context.Context, source []byte) (*DeviceMetadata, error) {
	if len(bytes.TrimSpace(source)) == 0 {
		return nil, ErrEmptySource
	}

	dec := yaml.NewDecoder(bytes.NewReader(source))
	dec.KnownFields(true)

	var md DeviceMetadata
	if err := dec.Decode(&md); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return &md, nil
}

// Encode implements Codec.
func (*YAMLCodec) Encode(_ context.Context, md *DeviceMetadata) ([]byte, error) {
	if md == nil {
		return nil, ErrNilMetadata
	}
	data, err := yaml.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return data, nil
}
