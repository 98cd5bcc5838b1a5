// Package channel is a typed in-process publish/subscribe bus between
// components that do not hold references to each other.
package channel

import (
	"context"
	"sync"
	"sync/atomic"
)

// Broker fans values of one type out to every current subscriber.
//
// Publish never blocks: a subscriber whose buffer is full misses the value.
// A subscription ends, and its channel is closed, when the context passed
// to Subscribe is done or the broker is closed.
type Broker[T any] struct {
	mu      sync.Mutex
	subs    map[*subscription[T]]struct{}
	closed  bool
	dropped atomic.Int64
}

type subscription[T any] struct {
	ch   chan T
	stop func() bool
}

// NewBroker creates an empty broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[*subscription[T]]struct{})}
}

// Subscribe registers a subscriber with the given buffer size.
// Subscribing to a closed broker returns an already closed channel.
func (b *Broker[T]) Subscribe(ctx context.Context, buffer int) <-chan T {
	if buffer < 0 {
		buffer = 0
	}
	sub := &subscription[T]{ch: make(chan T, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub.ch
	}

	b.subs[sub] = struct{}{}
	sub.stop = context.AfterFunc(ctx, func() { b.remove(sub) })
	return sub.ch
}

func (b *Broker[T]) remove(sub *subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Publish offers v to every subscriber and returns how many received it.
func (b *Broker[T]) Publish(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for sub := range b.subs {
		select {
		case sub.ch <- v:
			delivered++
		default:
			// Subscriber is slow, skip this value
			b.dropped.Add(1)
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions.
func (b *Broker[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Broker[T]) Dropped() int64 {
	return b.dropped.Load()
}

// Close ends every subscription. Later publishes are ignored.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.stop()
		close(sub.ch)
	}
	b.subs = nil
}
