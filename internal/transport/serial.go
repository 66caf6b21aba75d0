package transport

import (
	"context"
	"fmt"

	"github.com/jacobsa/go-serial/serial"

	"github.com/oshokin/airmouse/internal/engine"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/protocol"
)

// Serial carries the line protocol over a serial port, e.g. a Bluetooth SPP
// or USB CDC link.
type Serial struct {
	session *Session
	port    string
}

// OpenSerial opens the port in 8N1 mode.
func OpenSerial(port string, baud uint) (*Serial, error) {
	opts := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	conn, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}

	return &Serial{session: NewSession(conn), port: port}, nil
}

// Serve reads commands until ctx is done or the port fails.
func (s *Serial) Serve(ctx context.Context, requests chan<- engine.Request) error {
	ctx = logger.WithKV(logger.WithName(ctx, "serial"), "port", s.port)

	logger.Info(ctx, "Serial line transport started")

	return s.session.Serve(ctx, requests)
}

// Publish implements engine.Sink.
func (s *Serial) Publish(ctx context.Context, msg protocol.Message) error {
	return s.session.Publish(ctx, msg)
}

// Close releases the port.
func (s *Serial) Close() error {
	return s.session.Close()
}
