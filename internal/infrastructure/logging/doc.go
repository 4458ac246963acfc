// Package logging provides structured logging for the protocol service.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	registry.SetLogger(logger.Component("device"))
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Never log device secrets or tokens. AuthenticationRequest.String omits
// them; log the request through it rather than field by field.
package logging
