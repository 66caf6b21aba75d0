// Package sink fans engine output out to secondary consumers: in-process
// subscribers, an MQTT broker and websocket dashboards.
package sink
