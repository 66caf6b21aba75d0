package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/oshokin/airmouse/internal/protocol"
)

// Publisher consumes outbound messages.
type Publisher interface {
	Publish(ctx context.Context, msg protocol.Message) error
}

// Fanout forwards every message to all registered publishers.
type Fanout struct {
	mu         sync.RWMutex
	publishers []Publisher
}

// NewFanout creates a fanout over the given publishers.
func NewFanout(publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers}
}

// Add registers another publisher.
func (f *Fanout) Add(p Publisher) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.publishers = append(f.publishers, p)
}

// Publish delivers msg to every publisher and joins their errors.
func (f *Fanout) Publish(ctx context.Context, msg protocol.Message) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var errs []error

	for _, p := range f.publishers {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
