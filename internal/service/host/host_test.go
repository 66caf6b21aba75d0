package host

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/airmouse/internal/domain/motion"
)

// TestCursorFilter smooths, applies the dead zone and scales.
func TestCursorFilter(t *testing.T) {
	t.Parallel()

	f := NewCursorFilter(0.5, 0.05, 2)

	dx, dy := f.Filter(1, -1)
	require.InDelta(t, 2.0, dx, 1e-9)
	require.InDelta(t, -2.0, dy, 1e-9)

	dx, dy = f.Filter(0, 0)
	require.InDelta(t, 1.0, dx, 1e-9)
	require.InDelta(t, -1.0, dy, 1e-9)

	f.Reset()

	dx, dy = f.Filter(0.04, 0.5)
	require.Zero(t, dx)
	require.InDelta(t, 1.0, dy, 1e-9)
}

// TestActions runs bound actions and ignores unbound gestures.
func TestActions(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	a := DefaultActions(&out)
	ctx := context.Background()

	require.NoError(t, a.Perform(ctx, motion.GestureUp))
	require.NoError(t, a.Perform(ctx, motion.GestureRight))
	require.NoError(t, a.Perform(ctx, motion.GestureNone))
	require.Equal(t, "key volumeup\nkey nexttrack\n", out.String())

	a.Register(motion.GestureUp, PressKey(&out, "pageup"))
	require.NoError(t, a.Perform(ctx, motion.GestureUp))
	require.True(t, strings.HasSuffix(out.String(), "key pageup\n"))
}

// fakeDevice answers the handshake and then plays lines.
func fakeDevice(t *testing.T, lines []string) (string, <-chan []string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	received := make(chan []string, 1)

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}

		defer func() { _ = conn.Close() }()

		var commands []string

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			cmd := scanner.Text()
			commands = append(commands, cmd)

			switch cmd {
			case "INIT_CHECK":
				_, _ = conn.Write([]byte("garbage\nINIT_COMPLETE\n"))
			case "CURSOR_MODE", "GESTURE_MODE":
				_, _ = conn.Write([]byte(strings.Join(lines, "\n") + "\n"))
				received <- commands

				return
			}
		}
	}()

	return listener.Addr().String(), received
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// TestRun_Gestures performs the handshake and maps gestures to keys.
func TestRun_Gestures(t *testing.T) {
	t.Parallel()

	address, received := fakeDevice(t, []string{"MODE_GESTURE", "GESTURE,LEFT", "GESTURE,SHAKE"})
	out := new(syncBuffer)

	err := Run(context.Background(), &Options{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		Address:    address,
		Mode:       "gesture",
		Output:     out,
	})
	require.Error(t, err)
	require.Equal(t, []string{"INIT_CHECK", "GESTURE_MODE"}, <-received)
	require.Equal(t, "key prevtrack\nkey ctrl+z\n", out.String())
}

// TestRun_Cursor smooths the streamed vectors.
func TestRun_Cursor(t *testing.T) {
	t.Parallel()

	address, received := fakeDevice(t, []string{"MODE_CURSOR", "CURSOR,2.00,0.00", "CURSOR,0.00,0.00", "CURSOR,0.00,0.00"})
	out := new(syncBuffer)

	err := Run(context.Background(), &Options{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		Address:    address,
		Mode:       "cursor",
		Output:     out,
	})
	require.Error(t, err)
	require.Equal(t, []string{"INIT_CHECK", "CURSOR_MODE"}, <-received)
	require.Equal(t, "move 2.00 0.00\nmove 1.00 0.00\nmove 0.50 0.00\n", out.String())
}

// TestRun_RejectsIdleMode refuses a mode that produces no output.
func TestRun_RejectsIdleMode(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		Address:    "127.0.0.1:1",
		Mode:       "idle",
	})
	require.ErrorIs(t, err, errModeNotAllowed)
}
