package sensor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/airmouse/internal/domain/motion"
)

// TestDecodeBurst checks big-endian decoding and that the temperature word is skipped.
func TestDecodeBurst(t *testing.T) {
	t.Parallel()

	burst := []byte{
		0x00, 0x10, // ax = 16
		0xFF, 0xF0, // ay = -16
		0x40, 0x00, // az = 16384
		0x12, 0x34, // temperature
		0x80, 0x00, // gx = -32768
		0x7F, 0xFF, // gy = 32767
		0x00, 0x00, // gz = 0
	}

	require.Equal(t,
		motion.RawSample{Ax: 16, Ay: -16, Az: 16384, Gx: -32768, Gy: 32767},
		decodeBurst(burst))
}

// TestReplay_RepeatAndExhaust walks a script with repeats and a failure.
func TestReplay_RepeatAndExhaust(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	replay := NewReplay(ReplayScript{Steps: []ReplayStep{
		{Gx: 1, Repeat: 2},
		{Fail: true},
		{Gy: 5},
	}})

	for range 2 {
		s, err := replay.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, int32(1), s.Gx)
	}

	_, err := replay.Read(ctx)
	require.ErrorIs(t, err, ErrRead)

	s, err := replay.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(5), s.Gy)

	_, err = replay.Read(ctx)
	require.ErrorIs(t, err, ErrExhausted)
}

// TestReplay_Loop restarts from the first step.
func TestReplay_Loop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	replay := NewReplay(ReplayScript{Loop: true, Steps: []ReplayStep{{Gx: 1}, {Gx: 2}}})

	var got []int32

	for range 5 {
		s, err := replay.Read(ctx)
		require.NoError(t, err)

		got = append(got, s.Gx)
	}

	require.Equal(t, []int32{1, 2, 1, 2, 1}, got)
}

// TestLoadReplay reads a YAML script from disk.
func TestLoadReplay(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "script.yaml")
	script := `loop: false
steps:
  - {az: 16384, repeat: 3}
  - {gx: 15000}
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))

	replay, err := LoadReplay(path)
	require.NoError(t, err)

	ctx := context.Background()

	for range 3 {
		s, readErr := replay.Read(ctx)
		require.NoError(t, readErr)
		require.Equal(t, int32(16384), s.Az)
	}

	s, err := replay.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(15000), s.Gx)

	_, err = LoadReplay(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// TestReplay_CanceledContext returns the context error.
func TestReplay_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReplay(ReplayScript{Steps: []ReplayStep{{}}}).Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
