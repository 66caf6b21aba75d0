package detector

import (
	"fmt"
	"math"
	"time"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
)

// Circle fires on sustained, pure rotation around one axis.
type Circle struct {
	cfg  config.Circle
	axis int

	consecutive int
	lastFire    time.Time
}

// NewCircle creates a circle detector for the configured rotation axis.
func NewCircle(cfg config.Circle) (*Circle, error) {
	axis, err := axisIndex(cfg.Axis)
	if err != nil {
		return nil, err
	}

	return &Circle{cfg: cfg, axis: axis}, nil
}

// Name implements Detector.
func (c *Circle) Name() string { return NameCircle }

// Step implements Detector.
func (c *Circle) Step(f motion.Features, now time.Time) motion.Detection {
	if !c.qualifies(f) {
		c.consecutive = 0
		return motion.Detection{}
	}

	if !elapsed(c.lastFire, now, c.cfg.Cooldown) {
		return motion.Detection{}
	}

	c.consecutive++
	if c.consecutive < c.cfg.MinSamples {
		return motion.Detection{}
	}

	c.consecutive = 0
	c.lastFire = now

	return motion.Detection{Gesture: motion.GestureCircle}
}

// Reset implements Detector.
func (c *Circle) Reset() {
	c.consecutive = 0
	c.lastFire = time.Time{}
}

// qualifies checks the rotation threshold and the purity of the other axes.
func (c *Circle) qualifies(f motion.Features) bool {
	axes := [3]float64{f.CalGx, f.CalGy, f.CalGz}

	for i, v := range axes {
		if i == c.axis {
			if math.Abs(v) <= c.cfg.Threshold {
				return false
			}

			continue
		}

		if math.Abs(v) >= c.cfg.PurityTolerance {
			return false
		}
	}

	return true
}

func axisIndex(name string) (int, error) {
	switch name {
	case "x":
		return 0, nil
	case "y":
		return 1, nil
	case "z":
		return 2, nil
	default:
		return 0, fmt.Errorf("unknown rotation axis %q", name)
	}
}
