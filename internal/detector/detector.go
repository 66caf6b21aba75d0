package detector

import (
	"fmt"
	"time"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
)

// Detector is a stateful gesture recognizer advanced once per tick.
type Detector interface {
	// Name identifies the detector in priority lists and logs.
	Name() string
	// Step consumes one feature set and reports whether the gesture fired.
	Step(f motion.Features, now time.Time) motion.Detection
	// Reset drops any accumulated state.
	Reset()
}

// Observer is implemented by detectors that need to know what was emitted.
type Observer interface {
	Emitted(d motion.Detection)
}

// Detector names used in config.Detection.Priority.
const (
	NameShake  = "shake"
	NameCircle = "circle"
	NameTilt   = "tilt"
)

// FromConfig builds the gesture detectors in the configured priority order.
func FromConfig(cfg config.Detection) ([]Detector, error) {
	detectors := make([]Detector, 0, len(cfg.Priority))

	for _, name := range cfg.Priority {
		switch name {
		case NameShake:
			detectors = append(detectors, NewShake(cfg.Shake))
		case NameCircle:
			circle, err := NewCircle(cfg.Circle)
			if err != nil {
				return nil, err
			}

			detectors = append(detectors, circle)
		case NameTilt:
			detectors = append(detectors, NewTilt(cfg.Tilt))
		default:
			return nil, fmt.Errorf("unknown detector %q", name)
		}
	}

	return detectors, nil
}

// elapsed reports whether at least d has passed since the last event.
// A zero last means the event never happened.
func elapsed(last, now time.Time, d time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= d
}
