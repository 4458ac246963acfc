// Package device provides the device credential catalogue for the protocol
// service.
//
// Every device that may connect over a transport is registered here with
// the transport it uses, an Argon2id hash of its shared secret and free-form
// configuration values. Authenticators reach devices through the adapters
// in this package, never through the repository directly.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────────────┐
//	│                        Device Catalogue                            │
//	│                                                                    │
//	│  ┌──────────────────┐    ┌──────────────────┐                      │
//	│  │     Registry     │    │    Repository    │                      │
//	│  │   (registry.go)  │───▶│  (repository.go) │──▶ SQLite (devices)  │
//	│  │ • In-memory cache│    │ • SQLite queries │                      │
//	│  │ • Thread safety  │    │ • JSON config    │                      │
//	│  └────────┬─────────┘    └──────────────────┘                      │
//	│           │                                                        │
//	│  ┌────────▼─────────┐    ┌──────────────────┐                      │
//	│  │  Operator /      │    │  LastSeenChecker │                      │
//	│  │  Lookup adapter  │    │   (state.go)     │                      │
//	│  │  (operator.go)   │    │                  │                      │
//	│  └──────────────────┘    └──────────────────┘                      │
//	└───────────┬───────────────────────┬────────────────────────────────┘
//	            ▼                       ▼
//	  protocol.DeviceRegistry   protocol.StateChecker
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	resp, err := support.AuthenticateWithRegistry(ctx, req, registry.Lookup())
package device
