package host

import "math"

// CursorFilter smooths cursor vectors with an exponential moving average.
type CursorFilter struct {
	// smoothing is the weight of the previous output, in [0, 1).
	smoothing float64
	deadZone  float64
	speed     float64

	lastX, lastY float64
	initialized  bool
}

// NewCursorFilter creates a filter. Components whose magnitude is below
// deadZone after smoothing are dropped to zero.
func NewCursorFilter(smoothing, deadZone, speed float64) *CursorFilter {
	return &CursorFilter{
		smoothing: smoothing,
		deadZone:  deadZone,
		speed:     speed,
	}
}

// Filter returns the pointer displacement for one cursor vector.
func (f *CursorFilter) Filter(vx, vy float64) (dx, dy float64) {
	if !f.initialized {
		f.lastX, f.lastY = vx, vy
		f.initialized = true
	} else {
		f.lastX = vx*(1-f.smoothing) + f.lastX*f.smoothing
		f.lastY = vy*(1-f.smoothing) + f.lastY*f.smoothing
	}

	return f.scale(f.lastX), f.scale(f.lastY)
}

// Reset forgets the smoothing history.
func (f *CursorFilter) Reset() {
	f.lastX, f.lastY = 0, 0
	f.initialized = false
}

func (f *CursorFilter) scale(v float64) float64 {
	if math.Abs(v) < f.deadZone {
		return 0
	}

	return v * f.speed
}
