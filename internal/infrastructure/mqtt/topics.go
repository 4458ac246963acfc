package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the protocol service uses.
//
// Device traffic follows graylogic/{kind}/{transport}/{device}; auth
// traffic follows graylogic/auth/{transport}/request and
// graylogic/auth/{transport}/response/{client}.
const TopicPrefix = "graylogic"

// Topic kinds.
const (
	KindUplink   = "uplink"   // raw frames from devices
	KindMessage  = "message"  // decoded messages published by the gateway
	KindCommand  = "command"  // commands addressed to devices
	KindDownlink = "downlink" // encoded frames for devices
	KindAuth     = "auth"
)

// Topics builds the service's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Uplink("mqtt", "thermostat-01")
//	// graylogic/uplink/mqtt/thermostat-01
type Topics struct{}

func deviceTopic(kind, transport, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefix, kind, transport, deviceID)
}

// Uplink is where a device publishes raw frames.
func (Topics) Uplink(transport, deviceID string) string {
	return deviceTopic(KindUplink, transport, deviceID)
}

// Message is where decoded device messages are republished.
func (Topics) Message(transport, deviceID string) string {
	return deviceTopic(KindMessage, transport, deviceID)
}

// Command is where callers send a message for a device.
func (Topics) Command(transport, deviceID string) string {
	return deviceTopic(KindCommand, transport, deviceID)
}

// Downlink is where encoded frames for a device are published.
func (Topics) Downlink(transport, deviceID string) string {
	return deviceTopic(KindDownlink, transport, deviceID)
}

// AuthRequest receives authentication requests for a transport.
//
// Example: graylogic/auth/mqtt/request
func (Topics) AuthRequest(transport string) string {
	return fmt.Sprintf("%s/%s/%s/request", TopicPrefix, KindAuth, transport)
}

// AuthResponse carries the verdict back to the requesting client.
//
// Example: graylogic/auth/mqtt/response/broker-plugin-1
func (Topics) AuthResponse(transport, clientID string) string {
	return fmt.Sprintf("%s/%s/%s/response/%s", TopicPrefix, KindAuth, transport, clientID)
}

// ServiceStatus is the retained online/offline status of this service.
//
// Example: graylogic/system/protocols/status
func (Topics) ServiceStatus() string {
	return TopicPrefix + "/system/protocols/status"
}

// AllUplinks matches uplinks from every transport and device.
func (Topics) AllUplinks() string {
	return deviceTopic(KindUplink, "+", "+")
}

// AllCommands matches commands for every transport and device.
func (Topics) AllCommands() string {
	return deviceTopic(KindCommand, "+", "+")
}

// AllAuthRequests matches auth requests on every transport.
func (Topics) AllAuthRequests() string {
	return fmt.Sprintf("%s/%s/+/request", TopicPrefix, KindAuth)
}

// DeviceTopic is a parsed graylogic/{kind}/{transport}/{device} topic.
type DeviceTopic struct {
	Kind      string
	Transport string
	DeviceID  string
}

// ParseDeviceTopic splits a device topic into its parts.
//
// Returns ErrInvalidTopic when the topic has the wrong prefix, the wrong
// number of levels, or an empty level.
func ParseDeviceTopic(topic string) (DeviceTopic, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix {
		return DeviceTopic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	for _, p := range parts[1:] {
		if p == "" {
			return DeviceTopic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		}
	}
	return DeviceTopic{Kind: parts[1], Transport: parts[2], DeviceID: parts[3]}, nil
}

// ParseAuthRequestTopic returns the transport id of an auth request topic.
func ParseAuthRequestTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != KindAuth || parts[3] != "request" || parts[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return parts[2], nil
}
