package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/oshokin/airmouse/internal/engine"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/protocol"
)

// maxLineLength bounds a single inbound command line.
const maxLineLength = 256

// Session is one connected line protocol peer.
type Session struct {
	id   string
	conn io.ReadWriteCloser

	mu     sync.Mutex
	writer *bufio.Writer
	closed bool
}

// NewSession wraps a connected stream.
func NewSession(conn io.ReadWriteCloser) *Session {
	return &Session{
		id:     uuid.NewString(),
		conn:   conn,
		writer: bufio.NewWriter(conn),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Serve reads commands until the stream ends or ctx is done. Unknown and
// over-long lines are dropped.
func (s *Session) Serve(ctx context.Context, requests chan<- engine.Request) error {
	ctx = logger.WithKV(ctx, "session", s.id)

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	reader := bufio.NewReaderSize(s.conn, maxLineLength)

	// discarding is set while the rest of an over-long line is skipped.
	var discarding bool

	for {
		chunk, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if !discarding {
				logger.DebugKV(ctx, "Discarding over-long line", "limit", maxLineLength)
			}

			discarding = true

			continue
		}

		switch {
		case len(chunk) == 0:
		case discarding:
			discarding = false
		default:
			if enqueueErr := s.handle(ctx, requests, string(chunk)); enqueueErr != nil {
				return nil //nolint:nilerr // Context canceled, the session just ends.
			}
		}

		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) || ctx.Err() != nil || isClosed(err) {
			return nil
		}

		return fmt.Errorf("read session %s: %w", s.id, err)
	}
}

func (s *Session) handle(ctx context.Context, requests chan<- engine.Request, line string) error {
	cmd, ok := protocol.ParseCommand(line)
	if !ok {
		logger.DebugKV(ctx, "Ignoring invalid command", "line", line)
		return nil
	}

	return engine.Enqueue(ctx, requests, cmd)
}

// Publish writes one message line.
func (s *Session) Publish(_ context.Context, msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if _, err := s.writer.WriteString(msg.String() + "\n"); err != nil {
		return fmt.Errorf("write session %s: %w", s.id, err)
	}

	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush session %s: %w", s.id, err)
	}

	return nil
}

// Close closes the underlying stream once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	return s.conn.Close()
}

func isClosed(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed)
}
