package metadata

import (
	"context"
	"errors"
	"testing"
)

const thermostatJSON = `{
	"id": "thermostat",
	"name": "Thermostat",
	"properties": [
		{"id": "temperature", "name": "Temperature", "valueType": {"id": "float", "unit": "°C"}},
		{"id": "setpoint", "name": "Setpoint", "valueType": {"id": "float", "unit": "°C"}}
	],
	"functions": [
		{"id": "boost", "name": "Boost", "inputs": [{"id": "minutes", "name": "Minutes", "valueType": {"id": "int"}}]}
	],
	"events": [
		{"id": "fault", "name": "Fault", "valueType": {"id": "string"}}
	]
}`

const thermostatYAML = `
id: thermostat
name: Thermostat
properties:
  - id: temperature
    name: Temperature
    valueType:
      id: float
      unit: "°C"
  - id: setpoint
    name: Setpoint
    valueType:
      id: float
      unit: "°C"
functions:
  - id: boost
    name: Boost
    inputs:
      - id: minutes
        name: Minutes
        valueType:
          id: int
events:
  - id: fault
    name: Fault
    valueType:
      id: string
`

func TestCodecs_Decode(t *testing.T) {
	tests := []struct {
		name   string
		codec  Codec
		source string
	}{
		{name: "json", codec: NewJSONCodec(), source: thermostatJSON},
		{name: "yaml", codec: NewYAMLCodec(), source: thermostatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := tt.codec.Decode(context.Background(), []byte(tt.source))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if md.ID != "thermostat" || len(md.Properties) != 2 {
				t.Fatalf("Decode() = %+v", md)
			}

			prop, ok := md.Property("temperature")
			if !ok || prop.ValueType.Unit != "°C" {
				t.Errorf("Property(temperature) = (%+v, %v)", prop, ok)
			}
			fn, ok := md.Function("boost")
			if !ok || len(fn.Inputs) != 1 || fn.Inputs[0].ValueType.ID != "int" {
				t.Errorf("Function(boost) = (%+v, %v)", fn, ok)
			}
			if _, ok := md.Event("fault"); !ok {
				t.Error("Event(fault) not found")
			}
			if _, ok := md.Property("missing"); ok {
				t.Error("Property(missing) found")
			}
		})
	}
}

func TestCodecs_DecodeErrors(t *testing.T) {
	codecs := []Codec{NewJSONCodec(), NewYAMLCodec()}

	tests := []struct {
		name    string
		source  map[string]string
		wantErr error
	}{
		{
			name:    "empty",
			source:  map[string]string{JSONCodecID: "  ", YAMLCodecID: "\n"},
			wantErr: ErrEmptySource,
		},
		{
			name:    "unknown field",
			source:  map[string]string{JSONCodecID: `{"id":"x","colour":"red"}`, YAMLCodecID: "id: x\ncolour: red\n"},
			wantErr: ErrDecodeFailed,
		},
		{
			name:    "malformed",
			source:  map[string]string{JSONCodecID: `{"id":`, YAMLCodecID: "id: [unterminated\n"},
			wantErr: ErrDecodeFailed,
		},
	}

	for _, tt := range tests {
		for _, c := range codecs {
			t.Run(tt.name+"/"+c.ID(), func(t *testing.T) {
				_, err := c.Decode(context.Background(), []byte(tt.source[c.ID()]))
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
				}
			})
		}
	}
}

func TestCodecs_EncodeNil(t *testing.T) {
	for _, c := range []Codec{NewJSONCodec(), NewYAMLCodec()} {
		if _, err := c.Encode(context.Background(), nil); !errors.Is(err, ErrNilMetadata) {
			t.Errorf("%s Encode(nil) error = %v, want ErrNilMetadata", c.ID(), err)
		}
	}
}

func TestCodecs_CrossConversion(t *testing.T) {
	ctx := context.Background()

	md, err := NewYAMLCodec().Decode(ctx, []byte(thermostatYAML))
	if err != nil {
		t.Fatalf("YAML Decode() error = %v", err)
	}
	data, err := NewJSONCodec().Encode(ctx, md)
	if err != nil {
		t.Fatalf("JSON Encode() error = %v", err)
	}
	back, err := NewJSONCodec().Decode(ctx, data)
	if err != nil {
		t.Fatalf("JSON Decode() error = %v", err)
	}

	if back.Name != md.Name || len(back.Functions) != len(md.Functions) || len(back.Events) != len(md.Events) {
		t.Errorf("converted metadata = %+v, want %+v", back, md)
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range AllTypes() {
		got, ok := ParseType(string(typ))
		if !ok || got != typ {
			t.Errorf("ParseType(%q) = (%q, %v)", typ, got, ok)
		}
	}
	if _, ok := ParseType("attribute"); ok {
		t.Error("ParseType(attribute) ok = true")
	}
}

func TestDeviceMetadata_NilLookups(t *testing.T) {
	var md *DeviceMetadata
	if _, ok := md.Property("x"); ok {
		t.Error("nil Property() found")
	}
	if _, ok := md.Function("x"); ok {
		t.Error("nil Function() found")
	}
	if _, ok := md.Event("x"); ok {
		t.Error("nil Event() found")
	}
}
