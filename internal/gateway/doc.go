// Package gateway moves device traffic between MQTT and the protocol
// registry.
//
//	device ──uplink──▶ MQTT ──▶ Gateway ──Decode──▶ graylogic/message/...
//	caller ──command─▶ MQTT ──▶ Gateway ──PreSend▶Encode▶publish▶AfterSent──▶ graylogic/downlink/...
//	broker ──auth────▶ MQTT ──▶ Gateway ──AuthenticateWithRegistry──▶ graylogic/auth/.../response/{client}
//
// Every lookup goes through protocol.Support, so codecs and authenticators
// registered or replaced at runtime take effect on the next message. Device
// identity is resolved against the device catalogue; uplinks from unknown
// devices are dropped.
package gateway
