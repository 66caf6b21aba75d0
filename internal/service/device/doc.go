// Package device runs the airmouse daemon: it owns the sensor and the
// classification engine, and serves the line protocol, the gRPC control API,
// MQTT telemetry and the websocket dashboard.
package device
