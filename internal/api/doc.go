// Package api implements the HTTP API of the protocol service.
//
// This package provides:
//   - Read endpoints over the protocol support (identity, transports,
//     config schemas, default device models, expandable config)
//   - Device state through the protocol's state checker
//   - Device authentication and protocol (re)initialisation
//   - Device token issuing (POST /protocol/devices/{id}/token)
//   - Health and runtime metrics
//   - The audit trail of authentication and init calls (GET /audit)
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Security
//
// The mutating endpoints (POST /protocol/authenticate, /protocol/init and
// /protocol/devices/{id}/token) and the audit trail require the configured API token as a bearer token.
// Without a token they are open, which is only suitable for trusted networks.
// Audit entries never hold credentials, issued tokens or init values.
//
// The server follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
