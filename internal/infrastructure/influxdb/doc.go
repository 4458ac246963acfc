// Package influxdb records protocol telemetry in InfluxDB 2.x.
//
// The gateway's telemetry interceptor writes one protocol_message_flow
// point per encoded or decoded message, and one protocol_auth point per
// authentication request. Points are batched by influxdb-client-go and
// written asynchronously.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteMessageFlow(influxdb.MessageFlow{
//	    Transport: "mqtt",
//	    DeviceID:  "thermo-1",
//	    Direction: influxdb.DirectionUplink,
//	})
package influxdb
