package pubsub

import (
	"context"
)

// ContinuousListener maintains subscription state for consumers that pull
// events one at a time instead of ranging over the raw channel.
type ContinuousListener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewContinuousListener creates a new listener that subscribes to the broker.
// The subscription is automatically cleaned up when the context is cancelled.
func NewContinuousListener[T any](ctx context.Context, broker *Broker[T]) *ContinuousListener[T] {
	return &ContinuousListener[T]{
		ctx: ctx,
		ch:  broker.Subscribe(ctx),
	}
}

// Next blocks until the next event arrives. The second return value is false
// when the listener's context is cancelled or the broker is closed.
func (l *ContinuousListener[T]) Next() (Event[T], bool) {
	select {
	case <-l.ctx.Done():
		var zero Event[T]
		return zero, false
	case event, ok := <-l.ch:
		if !ok {
			var zero Event[T]
			return zero, false
		}
		return event, true
	}
}

// Channel exposes the underlying subscription channel for select loops.
func (l *ContinuousListener[T]) Channel() <-chan Event[T] {
	return l.ch
}
