package sink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/oshokin/airmouse/internal/protocol"
)

// Broker is an in-process publish/subscribe hub. Slow subscribers lose
// messages instead of blocking the publisher.
type Broker struct {
	buffer int

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan protocol.Message

	dropped atomic.Uint64
}

// NewBroker creates a broker with the given per-subscriber buffer.
func NewBroker(buffer int) *Broker {
	return &Broker{
		buffer: max(buffer, 1),
		subs:   make(map[uint64]chan protocol.Message),
	}
}

// Subscribe returns a message channel and a function that cancels the
// subscription and closes the channel.
func (b *Broker) Subscribe() (<-chan protocol.Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan protocol.Message, b.buffer)
	b.subs[id] = ch

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish implements Publisher. It never blocks.
func (b *Broker) Publish(_ context.Context, msg protocol.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}

	return nil
}

// Dropped returns the number of messages lost to full subscriber buffers.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}
