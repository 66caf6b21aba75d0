package motion

import "fmt"

// Mode is the operating mode of the engine.
type Mode uint8

const (
	// ModeIdle produces no output.
	ModeIdle Mode = iota
	// ModeCursor emits a cursor vector every tick.
	ModeCursor
	// ModeGesture runs the gesture detectors.
	ModeGesture
)

// String returns the lower-case mode name.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeCursor:
		return "cursor"
	case ModeGesture:
		return "gesture"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode maps a mode name to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "idle":
		return ModeIdle, true
	case "cursor":
		return ModeCursor, true
	case "gesture":
		return ModeGesture, true
	default:
		return ModeIdle, false
	}
}

// CursorVector is the pointer velocity produced in cursor mode.
type CursorVector struct {
	Vx, Vy float64
}
