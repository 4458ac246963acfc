// Package protocol provides the per-transport protocol capability registry
// for Gray Logic device communication.
//
// A Support describes how to talk to devices over one or more transports
// (MQTT, CoAP, TCP, ...). Capabilities are registered at runtime and looked
// up by transport ID:
//
//   - Message codecs (decode uplink payloads, encode downlink commands)
//   - Authenticators (verify device credentials on connect)
//   - Config schemas (what a transport needs configured per device)
//   - Default device metadata
//   - Expandable config suppliers (per property/function/event schema fragments)
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────────┐
//	│                         Support                               │
//	│                                                               │
//	│  ┌──────────────┐  ┌──────────────┐  ┌──────────────────────┐ │
//	│  │ Capability   │  │ Interceptor  │  │ Lifecycle            │ │
//	│  │ tables       │  │ composer     │  │ (init / dispose)     │ │
//	│  │ (table.go)   │  │ (intercep... │  │ (lifecycle.go)       │ │
//	│  └──────┬───────┘  └──────────────┘  └──────────────────────┘ │
//	│         │                                                     │
//	│  ┌──────▼────────────────────────────────────────────────┐    │
//	│  │ Dispatch façade: MessageCodec, Authenticate, ...      │    │
//	│  └───────────────────────────────────────────────────────┘    │
//	└───────────────────────────────────────────────────────────────┘
//
// # Lazy Providers
//
// Most capabilities are registered as a Provider, a function invoked on every
// lookup. Resolved values are never cached: callers that depend on identity
// stability must cache the result themselves.
//
// # Absence
//
// A lookup for a transport with nothing registered is not an error. Getters
// return ok == false with a nil error. Only a provider's own failure is
// returned as an error, unchanged.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Registration may happen at any
// time, including while lookups are in flight. A lookup racing with Dispose
// observes either the pre- or post-disposal state.
package protocol
