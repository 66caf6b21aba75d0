// Package integration runs airmouse-device end to end with a replayed sensor.
package integration
