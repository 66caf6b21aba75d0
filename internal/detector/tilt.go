package detector

import (
	"time"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
)

// tiltRule matches one direction variant: sign*value > threshold.
type tiltRule struct {
	gesture   motion.Gesture
	strength  motion.Strength
	useX      bool
	sign      float64
	threshold float64
}

// Tilt classifies calibrated X/Y angular velocity into a direction.
//
// Rules are evaluated in the fixed order UP, DOWN, LEFT, RIGHT, strong before
// slight within a direction; the first match wins. UP and DOWN read Y,
// LEFT and RIGHT read X.
type Tilt struct {
	rules       []tiltRule
	lastEmitted motion.Detection
}

// NewTilt creates a tilt detector. Zero thresholds disable their rule.
func NewTilt(cfg config.Tilt) *Tilt {
	candidates := []tiltRule{
		{motion.GestureUp, motion.StrengthStrong, false, 1, cfg.Up},
		{motion.GestureUp, motion.StrengthSlight, false, 1, cfg.UpSlight},
		{motion.GestureDown, motion.StrengthStrong, false, -1, cfg.Down},
		{motion.GestureDown, motion.StrengthSlight, false, -1, cfg.DownSlight},
		{motion.GestureLeft, motion.StrengthStrong, true, 1, cfg.Left},
		{motion.GestureLeft, motion.StrengthSlight, true, 1, cfg.LeftSlight},
		{motion.GestureRight, motion.StrengthStrong, true, -1, cfg.Right},
		{motion.GestureRight, motion.StrengthSlight, true, -1, cfg.RightSlight},
	}

	rules := make([]tiltRule, 0, len(candidates))

	for _, r := range candidates {
		if r.threshold > 0 {
			rules = append(rules, r)
		}
	}

	return &Tilt{rules: rules}
}

// Name implements Detector.
func (t *Tilt) Name() string { return NameTilt }

// Step implements Detector.
func (t *Tilt) Step(f motion.Features, _ time.Time) motion.Detection {
	for _, r := range t.rules {
		value := f.CalGy
		if r.useX {
			value = f.CalGx
		}

		if r.sign*value <= r.threshold {
			continue
		}

		// A lingering weak tilt after a strong one is the same movement.
		if r.strength == motion.StrengthSlight &&
			t.lastEmitted == (motion.Detection{Gesture: r.gesture, Strength: motion.StrengthStrong}) {
			continue
		}

		return motion.Detection{Gesture: r.gesture, Strength: r.strength}
	}

	return motion.Detection{}
}

// Emitted implements Observer.
func (t *Tilt) Emitted(d motion.Detection) {
	t.lastEmitted = d
}

// Reset implements Detector.
func (t *Tilt) Reset() {
	t.lastEmitted = motion.Detection{}
}
