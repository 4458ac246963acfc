package protocol

// Transport identifies a communication channel between devices and the
// gateway. The registry only relies on ID(); everything else is opaque.
type Transport interface {
	// ID returns the stable transport identifier used as the registry key.
	ID() string

	// Name returns a human-readable name.
	Name() string
}

// Well-known transports.
var (
	MQTT      Transport = NewTransport("mqtt", "MQTT")
	CoAP      Transport = NewTransport("coap", "CoAP")
	TCP       Transport = NewTransport("tcp", "TCP")
	UDP       Transport = NewTransport("udp", "UDP")
	HTTP      Transport = NewTransport("http", "HTTP")
	WebSocket Transport = NewTransport("websocket", "WebSocket")
)

// transport is the default Transport implementation.
type transport struct {
	id   string
	name string
}

// NewTransport returns a Transport with the given ID and name.
// If name is empty the ID is used.
func NewTransport(id, name string) Transport {
	if name == "" {
		name = id
	}
	return transport{id: id, name: name}
}

func (t transport) ID() string     { return t.id }
func (t transport) Name() string   { return t.name }
func (t transport) String() string { return t.id }

// LookupTransport returns the well-known transport for id, or a new
// Transport named after the id when it is not one of the predefined ones.
func LookupTransport(id string) Transport {
	for _, t := range []Transport{MQTT, CoAP, TCP, UDP, HTTP, WebSocket} {
		if t.ID() == id {
			return t
		}
	}
	return NewTransport(id, "")
}
