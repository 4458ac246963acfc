package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Codec and authenticator names accepted in transport configuration.
const (
	CodecJSON = "json"

	AuthenticatorSecret = "secret"
	AuthenticatorToken  = "token"
	AuthenticatorNone   = "none"
)

// Config is the root configuration structure for the protocol service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Protocol ProtocolConfig `yaml:"protocol"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// ProtocolConfig describes the protocol support assembled at startup.
type ProtocolConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Transports lists the transports the protocol speaks.
	Transports []TransportConfig `yaml:"transports"`

	// MetadataFormats lists auxiliary metadata codecs ("yaml").
	// The JSON codec is always registered.
	MetadataFormats []string `yaml:"metadata_formats"`

	// StateWindow is how recently a device must have been seen to count
	// as online (seconds).
	StateWindow int `yaml:"state_window"`

	// Init is passed to the protocol's init callbacks at startup.
	Init map[string]any `yaml:"init"`
}

// TransportConfig configures one transport of the protocol.
type TransportConfig struct {
	// ID is the transport identifier ("mqtt", "coap", ...).
	ID string `yaml:"id"`

	// Name is a display name; defaults to ID.
	Name string `yaml:"name"`

	// Codec selects the message codec. Only "json" is built in.
	Codec string `yaml:"codec"`

	// Authenticator selects how devices authenticate: "secret", "token" or "none".
	Authenticator string `yaml:"authenticator"`

	// DefaultMetadata is an optional path to a device metadata document
	// (.json or .yaml). It is re-read on every lookup.
	DefaultMetadata string `yaml:"default_metadata"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// AuditRetentionDays prunes older audit entries at startup. 0 keeps everything.
	AuditRetentionDays int `yaml:"audit_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// An empty AllowedOrigins list allows all origins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	DeviceToken DeviceTokenConfig `yaml:"device_token"`

	// APIToken guards the mutating API endpoints (authenticate, init).
	// When empty those endpoints are open; only do this on trusted networks.
	APIToken string `yaml:"api_token"`
}

// DeviceTokenConfig contains device JWT settings.
type DeviceTokenConfig struct {
	Secret string `yaml:"secret"`
	TTL    int    `yaml:"ttl"` // hours
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Protocol: ProtocolConfig{
			ID:          "graylogic",
			Name:        "Gray Logic Device Protocol",
			StateWindow: 300,
			Transports: []TransportConfig{
				{ID: "mqtt", Codec: CodecJSON, Authenticator: AuthenticatorSecret},
			},
		},
		Database: DatabaseConfig{
			Path:               "./data/protocols.db",
			WALMode:            true,
			BusyTimeout:        5,
			AuditRetentionDays: 90,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-protocols",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			DeviceToken: DeviceTokenConfig{
				TTL: 24 * 30,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security - device token secret (always override in production)
	if v := os.Getenv("GRAYLOGIC_DEVICE_TOKEN_SECRET"); v != "" {
		cfg.Security.DeviceToken.Secret = v
	}
	if v := os.Getenv("GRAYLOGIC_API_TOKEN"); v != "" {
		cfg.Security.APIToken = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Protocol validation
	if c.Protocol.ID == "" {
		errs = append(errs, "protocol.id is required")
	}
	if len(c.Protocol.Transports) == 0 {
		errs = append(errs, "protocol.transports must list at least one transport")
	}
	errs = append(errs, c.validateTransports()...)
	for _, f := range c.Protocol.MetadataFormats {
		if f != "yaml" {
			errs = append(errs, fmt.Sprintf("protocol.metadata_formats: unsupported format %q", f))
		}
	}
	if c.Protocol.StateWindow < 0 {
		errs = append(errs, "protocol.state_window must not be negative")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.AuditRetentionDays < 0 {
		errs = append(errs, "database.audit_retention_days must not be negative")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	// Security validation - a token authenticator needs a strong signing secret.
	const minTokenSecretLength = 32
	if c.usesAuthenticator(AuthenticatorToken) {
		if c.Security.DeviceToken.Secret == "" {
			errs = append(errs, "security.device_token.secret is required (set GRAYLOGIC_DEVICE_TOKEN_SECRET environment variable)")
		} else if len(c.Security.DeviceToken.Secret) < minTokenSecretLength {
			errs = append(errs, "security.device_token.secret must be at least 32 characters for adequate security")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateTransports checks each transport entry.
func (c *Config) validateTransports() []string {
	var errs []string
	seen := make(map[string]bool, len(c.Protocol.Transports))

	for i, t := range c.Protocol.Transports {
		prefix := fmt.Sprintf("protocol.transports[%d]", i)
		if t.ID == "" {
			errs = append(errs, prefix+".id is required")
			continue
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, t.ID))
		}
		seen[t.ID] = true

		if t.Codec != CodecJSON {
			errs = append(errs, fmt.Sprintf("%s.codec %q is not supported", prefix, t.Codec))
		}
		switch t.Authenticator {
		case AuthenticatorSecret, AuthenticatorToken, AuthenticatorNone, "":
		default:
			errs = append(errs, fmt.Sprintf("%s.authenticator %q is not supported", prefix, t.Authenticator))
		}
	}
	return errs
}

// usesAuthenticator reports whether any transport uses the named authenticator.
func (c *Config) usesAuthenticator(name string) bool {
	for _, t := range c.Protocol.Transports {
		if t.Authenticator == name {
			return true
		}
	}
	return false
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetStateWindow returns the device online window as a Duration.
func (c *Config) GetStateWindow() time.Duration {
	return time.Duration(c.Protocol.StateWindow) * time.Second
}

// GetDeviceTokenTTL returns the device token lifetime as a Duration.
func (c *Config) GetDeviceTokenTTL() time.Duration {
	return time.Duration(c.Security.DeviceToken.TTL) * time.Hour
}
