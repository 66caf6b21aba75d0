// Package transport carries the line protocol over byte streams: a
// single-client TCP server and a serial port. Both feed parsed commands to the
// engine controller and write every published message back to the client.
package transport
