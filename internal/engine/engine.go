package engine

import (
	"math"
	"time"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/detector"
	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/protocol"
)

// Stats are the classification counters kept by the engine.
type Stats struct {
	Ticks         uint64
	Gestures      uint64
	Suppressed    uint64
	LastGesture   motion.Gesture
	LastGestureAt time.Time
}

// Engine classifies samples according to the current mode.
type Engine struct {
	detection config.Detection
	cursor    config.Cursor

	mode    motion.Mode
	offsets motion.Offsets

	rest      detector.Rest
	detectors []detector.Detector

	lastEmit    time.Time
	lastGesture motion.Gesture
	// rearmed is set by a neutral tick and allows repeating lastGesture.
	rearmed bool

	stats Stats
}

// New builds an engine in idle mode with zero offsets.
func New(detection config.Detection, cursor config.Cursor) (*Engine, error) {
	detectors, err := detector.FromConfig(detection)
	if err != nil {
		return nil, err
	}

	return &Engine{
		detection: detection,
		cursor:    cursor,
		mode:      motion.ModeIdle,
		rest:      detector.NewRest(detection.Rest),
		detectors: detectors,
	}, nil
}

// Mode returns the current mode.
func (e *Engine) Mode() motion.Mode {
	return e.mode
}

// SetMode switches the mode. Entering a different mode clears detector and
// dispatcher state so nothing from the previous mode leaks into it.
func (e *Engine) SetMode(m motion.Mode) {
	if m == e.mode {
		return
	}

	e.mode = m

	for _, d := range e.detectors {
		d.Reset()
	}

	e.lastEmit = time.Time{}
	e.lastGesture = motion.GestureNone
	e.rearmed = false
}

// Offsets returns the calibration in effect.
func (e *Engine) Offsets() motion.Offsets {
	return e.offsets
}

// SetOffsets replaces the calibration as a whole.
func (e *Engine) SetOffsets(o motion.Offsets) {
	e.offsets = o
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Tick runs one classification pass and returns at most one output.
func (e *Engine) Tick(raw motion.RawSample, now time.Time) (protocol.Message, bool) {
	e.stats.Ticks++

	f := motion.Extract(raw, e.offsets)

	switch e.mode {
	case motion.ModeCursor:
		return protocol.CursorMessage(e.Cursor(f)), true
	case motion.ModeGesture:
		g := e.Classify(f, now)
		if g == motion.GestureNone {
			return protocol.Message{}, false
		}

		return protocol.GestureMessage(g), true
	default:
		return protocol.Message{}, false
	}
}

// Cursor maps features to a clamped pointer velocity rounded to hundredths.
func (e *Engine) Cursor(f motion.Features) motion.CursorVector {
	var vx, vy float64

	if e.cursor.Source == config.CursorSourceTilt {
		vx = (f.Roll - e.offsets.TiltRollZero) * e.cursor.TiltGain
		vy = (f.Pitch - e.offsets.TiltPitchZero) * e.cursor.TiltGain
	} else {
		vx = f.CalGx * e.cursor.Sensitivity
		vy = f.CalGy * e.cursor.Sensitivity
	}

	return motion.CursorVector{
		Vx: e.shape(vx),
		Vy: e.shape(vy),
	}
}

// Classify runs the gesture dispatcher: every detector steps on every tick,
// then the rest short-circuit, the first firing detector in priority order,
// global cooldown and repeat hysteresis.
func (e *Engine) Classify(f motion.Features, now time.Time) motion.Gesture {
	var winner motion.Detection

	// Detectors see rest samples too, so a run interrupted by rest resets.
	for _, d := range e.detectors {
		if det := d.Step(f, now); det.Fired() && !winner.Fired() {
			winner = det
		}
	}

	if e.rest.AtRest(f) {
		e.rearmed = true
		return motion.GestureNone
	}

	if e.neutral(f) {
		e.rearmed = true
	}

	if !winner.Fired() {
		return motion.GestureNone
	}

	if !e.lastEmit.IsZero() && now.Sub(e.lastEmit) < e.detection.Cooldown {
		e.stats.Suppressed++
		return motion.GestureNone
	}

	if winner.Gesture == e.lastGesture && !e.rearmed {
		e.stats.Suppressed++
		return motion.GestureNone
	}

	e.emit(winner, now)

	return winner.Gesture
}

func (e *Engine) emit(d motion.Detection, now time.Time) {
	e.lastEmit = now
	e.lastGesture = d.Gesture
	e.rearmed = false

	e.stats.Gestures++
	e.stats.LastGesture = d.Gesture
	e.stats.LastGestureAt = now

	for _, det := range e.detectors {
		if o, ok := det.(detector.Observer); ok {
			o.Emitted(d)
		}
	}
}

func (e *Engine) neutral(f motion.Features) bool {
	band := e.detection.NeutralBand

	return math.Abs(f.CalGx) < band && math.Abs(f.CalGy) < band && math.Abs(f.CalGz) < band
}

func (e *Engine) shape(v float64) float64 {
	limit := e.cursor.MaxSpeed
	v = max(-limit, min(limit, v))

	return math.Round(v*100) / 100
}
