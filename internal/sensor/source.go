package sensor

import (
	"context"
	"errors"

	"github.com/oshokin/airmouse/internal/domain/motion"
)

// Source produces one raw 6-axis sample per call.
type Source interface {
	Read(ctx context.Context) (motion.RawSample, error)
}

var (
	// ErrRead wraps transient read failures; the caller skips the tick.
	ErrRead = errors.New("sensor read failed")
	// ErrExhausted is returned by a non-looping replay after its last sample.
	ErrExhausted = errors.New("replay exhausted")
)
