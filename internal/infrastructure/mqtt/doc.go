// Package mqtt connects the protocol gateway to the MQTT broker.
//
// It wraps paho.mqtt.golang with auto-reconnect, a retained service status
// topic backed by a Last Will, subscriptions that survive reconnects, and
// handlers that recover from panics.
//
// # Topics
//
//	graylogic/uplink/{transport}/{device}              device -> gateway, raw frame
//	graylogic/message/{transport}/{device}             gateway -> bus, decoded messages
//	graylogic/command/{transport}/{device}             bus -> gateway, message to send
//	graylogic/downlink/{transport}/{device}            gateway -> device, encoded frame
//	graylogic/auth/{transport}/request                 authentication requests
//	graylogic/auth/{transport}/response/{client}       authentication verdicts
//	graylogic/system/protocols/status                  retained online/offline
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllUplinks(), 1, handler)
//
// TLS should be enabled outside local development (cfg.Broker.TLS).
package mqtt
