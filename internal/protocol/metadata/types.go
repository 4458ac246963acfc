package metadata

// Type classifies the part of a device model a config fragment applies to.
type Type string

// Metadata type constants.
const (
	TypeProperty Type = "property"
	TypeFunction Type = "function"
	TypeEvent    Type = "event"
	TypeTag      Type = "tag"
)

// AllTypes returns all valid metadata types.
func AllTypes() []Type {
	return []Type{TypeProperty, TypeFunction, TypeEvent, TypeTag}
}

// ParseType converts a string to a Type.
// Returns false if s is not a known metadata type.
func ParseType(s string) (Type, bool) {
	for _, t := range AllTypes() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// DataType describes the value type of a property, event or function argument.
type DataType struct {
	// ID is the data type identifier (e.g., "int", "float", "string", "boolean", "object").
	ID string `json:"id" yaml:"id"`

	// Unit is an optional unit symbol (e.g., "°C", "%", "W").
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`

	// Expands holds free-form, transport-specific settings.
	Expands map[string]any `json:"expands,omitempty" yaml:"expands,omitempty"`
}

// PropertyMetadata describes a readable/writable device property.
type PropertyMetadata struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	ValueType   DataType       `json:"valueType" yaml:"valueType"`
	Expands     map[string]any `json:"expands,omitempty" yaml:"expands,omitempty"`
}

// FunctionMetadata describes an invokable device function.
type FunctionMetadata struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs      []PropertyMetadata `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Output      *DataType          `json:"output,omitempty" yaml:"output,omitempty"`
	Async       bool               `json:"async,omitempty" yaml:"async,omitempty"`
}

// EventMetadata describes an event a device can report.
type EventMetadata struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	ValueType   DataType `json:"valueType" yaml:"valueType"`
}

// DeviceMetadata is the thing model of a device or product.
type DeviceMetadata struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  []PropertyMetadata `json:"properties,omitempty" yaml:"properties,omitempty"`
	Functions   []FunctionMetadata `json:"functions,omitempty" yaml:"functions,omitempty"`
	Events      []EventMetadata    `json:"events,omitempty" yaml:"events,omitempty"`
	Tags        []PropertyMetadata `json:"tags,omitempty" yaml:"tags,omitempty"`
	Expands     map[string]any     `json:"expands,omitempty" yaml:"expands,omitempty"`
}

// Property returns the property with the given ID.
func (m *DeviceMetadata) Property(id string) (*PropertyMetadata, bool) {
	if m == nil {
		return nil, false
	}
	for i := range m.Properties {
		if m.Properties[i].ID == id {
			return &m.Properties[i], true
		}
	}
	return nil, false
}

// Function returns the function with the given ID.
func (m *DeviceMetadata) Function(id string) (*FunctionMetadata, bool) {
	if m == nil {
		return nil, false
	}
	for i := range m.Functions {
		if m.Functions[i].ID == id {
			return &m.Functions[i], true
		}
	}
	return nil, false
}

// Event returns the event with the given ID.
func (m *DeviceMetadata) Event(id string) (*EventMetadata, bool) {
	if m == nil {
		return nil, false
	}
	for i := range m.Events {
		if m.Events[i].ID == id {
			return &m.Events[i], true
		}
	}
	return nil, false
}

// ConfigProperty is a single configurable option within a ConfigMetadata.
type ConfigProperty struct {
	// Property is the config key (e.g., "secret", "keepalive").
	Property    string   `json:"property" yaml:"property"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Type        DataType `json:"type" yaml:"type"`
	Required    bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
}

// ConfigMetadata describes a set of configuration options, consumed by
// configuration UIs and validators.
type ConfigMetadata struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Scopes      []string         `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Properties  []ConfigProperty `json:"properties" yaml:"properties"`
}

// Scope constants for ConfigMetadata.Scopes.
const (
	ScopeDevice  = "device"
	ScopeProduct = "product"
)
