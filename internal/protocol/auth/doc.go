// Package auth provides device authenticators for the protocol registry.
//
// Two credential schemes are supported:
//
//   - SecretAuthenticator: the device presents a shared secret (MQTT password,
//     CoAP PSK identity, ...). It is verified against the Argon2id hash stored
//     in the device's "secret_hash" config value.
//   - TokenAuthenticator: the device presents an HS256 JWT issued by IssueToken.
//     The signing secret can be replaced at runtime through Init.
//
// Both resolve the device through the protocol.DeviceLookup they are given,
// so the same authenticator works against a single known device or the
// whole device catalogue.
package auth
