package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/oshokin/airmouse/internal/engine"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/protocol"
)

// TCPServer serves one line protocol client at a time. A new connection
// replaces the current one.
type TCPServer struct {
	requests chan<- engine.Request

	mu      sync.Mutex
	current *Session
}

// NewTCPServer creates a server feeding commands into requests.
func NewTCPServer(requests chan<- engine.Request) *TCPServer {
	return &TCPServer{requests: requests}
}

// Serve accepts connections until ctx is done.
func (s *TCPServer) Serve(ctx context.Context, listener net.Listener) error {
	ctx = logger.WithName(ctx, "tcp")

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	logger.InfoKV(ctx, "Line protocol server listening", "address", listener.Addr().String())

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.drop(nil)
				return nil
			}

			return fmt.Errorf("accept: %w", err)
		}

		session := NewSession(conn)
		s.attach(ctx, session, conn.RemoteAddr())

		wg.Go(func() {
			if serveErr := session.Serve(ctx, s.requests); serveErr != nil {
				logger.WarnKV(ctx, "Session ended with error", "session", session.ID(), "error", serveErr)
			}

			s.drop(session)
			logger.InfoKV(ctx, "Client disconnected", "session", session.ID())
		})
	}
}

// Publish implements engine.Sink. Without a client the message is dropped.
func (s *TCPServer) Publish(ctx context.Context, msg protocol.Message) error {
	s.mu.Lock()
	session := s.current
	s.mu.Unlock()

	if session == nil {
		return nil
	}

	if err := session.Publish(ctx, msg); err != nil {
		s.drop(session)
		return err
	}

	return nil
}

func (s *TCPServer) attach(ctx context.Context, session *Session, remote net.Addr) {
	s.mu.Lock()
	previous := s.current
	s.current = session
	s.mu.Unlock()

	if previous != nil {
		logger.InfoKV(ctx, "Replacing connected client", "session", previous.ID())
		_ = previous.Close()
	}

	logger.InfoKV(ctx, "Client connected", "session", session.ID(), "remote", remote.String())
}

// drop closes session if it is still current; nil drops whatever is current.
func (s *TCPServer) drop(session *Session) {
	s.mu.Lock()
	current := s.current

	if session == nil || current == session {
		s.current = nil
	}
	s.mu.Unlock()

	if session == nil {
		session = current
	}

	if session != nil {
		_ = session.Close()
	}
}
