// Package ctl implements the airmousectl actions on top of the gRPC
// control API of a running airmouse-device.
package ctl
