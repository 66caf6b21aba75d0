package detector

import (
	"time"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
)

// Shake counts lateral swings on the calibrated X axis.
//
// A swing is a flip between opposite sides of the threshold; neutral samples
// between the two sides are allowed. The gesture fires once the configured
// number of flips happens inside the window that opened with the first swing.
type Shake struct {
	cfg config.Shake

	// polarity is the side of the last non-neutral sample: -1, 0 or +1.
	polarity    int
	flips       int
	windowStart time.Time
	lastFire    time.Time
}

// NewShake creates a shake detector.
func NewShake(cfg config.Shake) *Shake {
	return &Shake{cfg: cfg}
}

// Name implements Detector.
func (s *Shake) Name() string { return NameShake }

// Step implements Detector.
func (s *Shake) Step(f motion.Features, now time.Time) motion.Detection {
	if !elapsed(s.lastFire, now, s.cfg.Debounce) {
		return motion.Detection{}
	}

	if s.polarity != 0 && now.Sub(s.windowStart) > s.cfg.Window {
		s.resetWindow()
	}

	side := s.side(f.CalGx)
	if side == 0 {
		return motion.Detection{}
	}

	switch s.polarity {
	case 0:
		s.polarity = side
		s.windowStart = now
	case -side:
		s.polarity = side
		s.flips++
	}

	if s.flips < s.cfg.Alternations {
		return motion.Detection{}
	}

	s.resetWindow()
	s.lastFire = now

	return motion.Detection{Gesture: motion.GestureShake}
}

// Reset implements Detector.
func (s *Shake) Reset() {
	s.resetWindow()
	s.lastFire = time.Time{}
}

func (s *Shake) resetWindow() {
	s.polarity = 0
	s.flips = 0
	s.windowStart = time.Time{}
}

func (s *Shake) side(v float64) int {
	switch {
	case v > s.cfg.Threshold:
		return 1
	case v < -s.cfg.Threshold:
		return -1
	default:
		return 0
	}
}
