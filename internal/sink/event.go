package sink

import (
	"strings"
	"time"

	"github.com/oshokin/airmouse/internal/protocol"
)

// Event types carried in Event.Type.
const (
	EventGesture     = "gesture"
	EventCursor      = "cursor"
	EventMode        = "mode"
	EventCalibration = "calibration"
	EventInit        = "init"
)

// Event is the JSON form of a protocol message used by MQTT and websockets.
type Event struct {
	Type    string    `json:"type"`
	Line    string    `json:"line"`
	Gesture string    `json:"gesture,omitempty"`
	Mode    string    `json:"mode,omitempty"`
	Vx      float64   `json:"vx,omitempty"`
	Vy      float64   `json:"vy,omitempty"`
	Percent int       `json:"percent,omitempty"`
	Time    time.Time `json:"time"`
}

// NewEvent converts msg into an Event stamped with now.
func NewEvent(msg protocol.Message, now time.Time) Event {
	e := Event{
		Type: eventType(msg.Kind),
		Line: msg.String(),
		Time: now.UTC(),
	}

	switch msg.Kind {
	case protocol.KindGesture:
		e.Gesture = msg.Gesture.String()
	case protocol.KindCursor:
		e.Vx, e.Vy = msg.Cursor.Vx, msg.Cursor.Vy
	case protocol.KindMode:
		e.Mode = strings.ToLower(msg.Mode.String())
	case protocol.KindCalibrationProgress:
		e.Percent = msg.Percent
	default:
	}

	return e
}

func eventType(k protocol.Kind) string {
	switch k {
	case protocol.KindGesture:
		return EventGesture
	case protocol.KindCursor:
		return EventCursor
	case protocol.KindMode:
		return EventMode
	case protocol.KindInitComplete:
		return EventInit
	default:
		return EventCalibration
	}
}
