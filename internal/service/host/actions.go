package host

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/logger"
)

// Action is performed when its gesture arrives.
type Action func(ctx context.Context) error

// Actions maps gestures to actions.
type Actions struct {
	mu      sync.RWMutex
	actions map[motion.Gesture]Action
}

// NewActions returns an empty registry.
func NewActions() *Actions {
	return &Actions{actions: make(map[motion.Gesture]Action, len(motion.Gestures))}
}

// DefaultActions binds the stock media keys. Each action prints the key it
// stands for to w.
func DefaultActions(w io.Writer) *Actions {
	a := NewActions()

	keys := map[motion.Gesture]string{
		motion.GestureUp:     "volumeup",
		motion.GestureDown:   "volumedown",
		motion.GestureLeft:   "prevtrack",
		motion.GestureRight:  "nexttrack",
		motion.GestureCircle: "alt+tab",
		motion.GestureShake:  "ctrl+z",
	}

	for g, key := range keys {
		a.Register(g, PressKey(w, key))
	}

	return a
}

// PressKey returns an action that writes "key <name>" to w.
func PressKey(w io.Writer, key string) Action {
	return func(context.Context) error {
		_, err := fmt.Fprintf(w, "key %s\n", key)
		return err
	}
}

// Register binds g to action, replacing any previous binding.
func (a *Actions) Register(g motion.Gesture, action Action) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.actions[g] = action
}

// Perform runs the action bound to g. Unbound gestures are logged and ignored.
func (a *Actions) Perform(ctx context.Context, g motion.Gesture) error {
	a.mu.RLock()
	action, ok := a.actions[g]
	a.mu.RUnlock()

	if !ok {
		logger.WarnKV(ctx, "No action for gesture", "gesture", g.String())
		return nil
	}

	return action(ctx)
}
