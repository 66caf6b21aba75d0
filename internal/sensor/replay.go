package sensor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/airmouse/internal/domain/motion"
)

// ReplayStep is one scripted entry: a sample repeated Repeat times.
type ReplayStep struct {
	Ax     int32 `yaml:"ax"`
	Ay     int32 `yaml:"ay"`
	Az     int32 `yaml:"az"`
	Gx     int32 `yaml:"gx"`
	Gy     int32 `yaml:"gy"`
	Gz     int32 `yaml:"gz"`
	Repeat int   `yaml:"repeat"`
	// Fail makes the step return ErrRead instead of a sample.
	Fail bool `yaml:"fail"`
}

// ReplayScript is the YAML document read by LoadReplay.
type ReplayScript struct {
	Loop  bool         `yaml:"loop"`
	Steps []ReplayStep `yaml:"steps"`
}

// Replay plays back a scripted sequence of samples.
type Replay struct {
	mu     sync.Mutex
	script ReplayScript
	step   int
	count  int
}

// LoadReplay reads a replay script from disk.
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read replay file: %w", err)
	}

	var script ReplayScript
	if err = yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("decode replay file: %w", err)
	}

	return NewReplay(script), nil
}

// NewReplay creates a replay from an in-memory script.
func NewReplay(script ReplayScript) *Replay {
	for i := range script.Steps {
		if script.Steps[i].Repeat <= 0 {
			script.Steps[i].Repeat = 1
		}
	}

	return &Replay{script: script}
}

// Read implements Source.
func (r *Replay) Read(ctx context.Context) (motion.RawSample, error) {
	if err := ctx.Err(); err != nil {
		return motion.RawSample{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.step >= len(r.script.Steps) {
		if !r.script.Loop || len(r.script.Steps) == 0 {
			return motion.RawSample{}, ErrExhausted
		}

		r.step = 0
	}

	s := r.script.Steps[r.step]

	r.count++
	if r.count >= s.Repeat {
		r.step++
		r.count = 0
	}

	if s.Fail {
		return motion.RawSample{}, fmt.Errorf("%w: scripted failure", ErrRead)
	}

	return motion.RawSample{Ax: s.Ax, Ay: s.Ay, Az: s.Az, Gx: s.Gx, Gy: s.Gy, Gz: s.Gz}, nil
}
