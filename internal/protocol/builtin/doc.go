// Package builtin assembles the protocol support the service ships with.
//
// New reads the protocol section of the service configuration and registers,
// for every configured transport:
//
//   - a JSON message codec bound to the transport
//   - the configured authenticator (secret, token or none)
//   - a device configuration schema matching the authenticator
//   - an optional default device model read lazily from disk
//   - an expandable configuration supplier for model parts
//
// It also sets the init configuration schema, the last-seen state checker,
// the logging and telemetry sender interceptors and the init and dispose
// hooks of the token authenticator.
//
// Usage:
//
//	support, err := builtin.New(builtin.Options{
//	    Config:      cfg.Protocol,
//	    TokenSecret: cfg.Security.DeviceToken.Secret,
//	    Devices:     registry,
//	    Recorder:    influx,
//	    Logger:      logger.Component("protocol"),
//	})
//	if err != nil {
//	    return err
//	}
//	defer support.Dispose()
//
//	if err := support.Init(cfg.Protocol.Init); err != nil {
//	    return err
//	}
package builtin
