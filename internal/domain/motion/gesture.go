package motion

import "fmt"

// Gesture is the closed vocabulary of discrete events.
type Gesture uint8

const (
	// GestureNone means no event this tick.
	GestureNone Gesture = iota
	GestureUp
	GestureDown
	GestureLeft
	GestureRight
	GestureShake
	GestureCircle
)

// Gestures lists every emittable gesture.
//
//nolint:gochecknoglobals // Read-only lookup table.
var Gestures = []Gesture{GestureUp, GestureDown, GestureLeft, GestureRight, GestureShake, GestureCircle}

// String returns the wire name of the gesture.
func (g Gesture) String() string {
	switch g {
	case GestureNone:
		return "NONE"
	case GestureUp:
		return "UP"
	case GestureDown:
		return "DOWN"
	case GestureLeft:
		return "LEFT"
	case GestureRight:
		return "RIGHT"
	case GestureShake:
		return "SHAKE"
	case GestureCircle:
		return "CIRCLE"
	default:
		return fmt.Sprintf("Gesture(%d)", uint8(g))
	}
}

// ParseGesture maps a wire name back to a gesture. GestureNone is not parseable.
func ParseGesture(s string) (Gesture, bool) {
	for _, g := range Gestures {
		if g.String() == s {
			return g, true
		}
	}

	return GestureNone, false
}

// Strength distinguishes the strong and slight variants of a tilt.
type Strength uint8

const (
	// StrengthStrong is the primary threshold of a direction.
	StrengthStrong Strength = iota
	// StrengthSlight is the weaker threshold of a direction.
	StrengthSlight
)

// Detection is the result of one detector step.
type Detection struct {
	Gesture  Gesture
	Strength Strength
}

// Fired reports whether the detection carries a gesture.
func (d Detection) Fired() bool {
	return d.Gesture != GestureNone
}
