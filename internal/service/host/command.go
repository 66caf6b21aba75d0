package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/protocol"
)

// Options configures the host receiver.
type Options struct {
	// ConfigPath to YAML settings file.
	ConfigPath string
	// Address overrides host.device_addr.
	Address string
	// Mode is "cursor" or "gesture".
	Mode string
	// Output receives pointer moves and performed actions.
	Output io.Writer
	// Actions overrides the default gesture bindings.
	Actions *Actions
}

// handshakeTimeout bounds the wait for INIT_COMPLETE.
const handshakeTimeout = 5 * time.Second

var (
	errHandshake      = errors.New("device did not complete initialization")
	errModeNotAllowed = errors.New("host mode must be cursor or gesture")
)

// Run connects to the device and processes its lines until ctx is canceled
// or the connection drops.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "airmouse-host")

	settings, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	mode, ok := motion.ParseMode(opts.Mode)
	if !ok || mode == motion.ModeIdle {
		return fmt.Errorf("%w: %q", errModeNotAllowed, opts.Mode)
	}

	address := opts.Address
	if address == "" {
		address = settings.Host.DeviceAddress
	}

	dialer := net.Dialer{Timeout: settings.Timeout}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("connect to device: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	defer func() {
		_ = conn.Close()
	}()

	actions := opts.Actions
	if actions == nil {
		actions = DefaultActions(opts.Output)
	}

	r := &receiver{
		conn:    conn,
		lines:   bufio.NewScanner(conn),
		filter:  NewCursorFilter(settings.Host.Smoothing, settings.Host.DeadZone, settings.Host.Speed),
		actions: actions,
		output:  opts.Output,
	}

	if err = r.handshake(ctx, mode); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Connected to device", "address", address, "mode", mode.String())

	err = r.loop(ctx)
	if ctx.Err() != nil {
		return nil
	}

	return fmt.Errorf("read device: %w", err)
}

type receiver struct {
	conn    net.Conn
	lines   *bufio.Scanner
	filter  *CursorFilter
	actions *Actions
	output  io.Writer
}

// handshake sends INIT_CHECK, waits for INIT_COMPLETE and selects mode.
func (r *receiver) handshake(ctx context.Context, mode motion.Mode) error {
	if err := r.send(protocol.CommandInitCheck); err != nil {
		return err
	}

	_ = r.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	for {
		msg, err := r.next(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", errHandshake, err)
		}

		if msg.Kind == protocol.KindInitComplete {
			break
		}
	}

	_ = r.conn.SetReadDeadline(time.Time{})

	cmd := protocol.CommandCursorMode
	if mode == motion.ModeGesture {
		cmd = protocol.CommandGestureMode
	}

	return r.send(cmd)
}

func (r *receiver) loop(ctx context.Context) error {
	for {
		msg, err := r.next(ctx)
		if err != nil {
			return err
		}

		if err = r.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// next returns the next parseable line, skipping malformed ones.
func (r *receiver) next(ctx context.Context) (protocol.Message, error) {
	for r.lines.Scan() {
		line := strings.TrimSpace(r.lines.Text())
		if line == "" {
			continue
		}

		msg, err := protocol.ParseMessage(line)
		if err != nil {
			logger.DebugKV(ctx, "Skipping line", "line", line, "error", err)
			continue
		}

		return msg, nil
	}

	if err := r.lines.Err(); err != nil {
		return protocol.Message{}, err
	}

	return protocol.Message{}, io.EOF
}

func (r *receiver) handle(ctx context.Context, msg protocol.Message) error {
	switch msg.Kind {
	case protocol.KindCursor:
		dx, dy := r.filter.Filter(msg.Cursor.Vx, msg.Cursor.Vy)
		if dx == 0 && dy == 0 {
			return nil
		}

		_, err := fmt.Fprintf(r.output, "move %.2f %.2f\n", dx, dy)

		return err
	case protocol.KindGesture:
		logger.InfoKV(ctx, "Gesture", "gesture", msg.Gesture.String())
		return r.actions.Perform(ctx, msg.Gesture)
	case protocol.KindMode:
		r.filter.Reset()
		logger.InfoKV(ctx, "Mode changed", "mode", msg.Mode.String())
	default:
		logger.DebugKV(ctx, "Device message", "line", msg.String())
	}

	return nil
}

func (r *receiver) send(cmd protocol.Command) error {
	if _, err := io.WriteString(r.conn, cmd.String()+"\n"); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}

	return nil
}
