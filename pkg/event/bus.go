// Package event provides typed in-process event channels. Handlers run
// synchronously on the publishing goroutine in the order they subscribed.
package event

import (
	"sync"

	"github.com/google/uuid"
)

// Handler receives one published value.
type Handler[T any] func(T)

// Subscription is a registered handler. Unsubscribe may be called any
// number of times.
type Subscription struct {
	id     string
	cancel func()
	once   sync.Once
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string { return s.id }

// Unsubscribe removes the handler from its bus.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

type entry[T any] struct {
	id      string
	handler Handler[T]
}

// Bus fans a published value out to every subscriber, first come first
// served. The zero value is not usable; call NewBus.
type Bus[T any] struct {
	mu       sync.RWMutex
	handlers []entry[T]
}

// NewBus returns an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers h and returns the subscription that removes it.
func (b *Bus[T]) Subscribe(h Handler[T]) *Subscription {
	id := uuid.NewString()

	b.mu.Lock()
	b.handlers = append(b.handlers, entry[T]{id: id, handler: h})
	b.mu.Unlock()

	return &Subscription{id: id, cancel: func() { b.remove(id) }}
}

func (b *Bus[T]) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.handlers {
		if e.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Publish calls every handler with v. Handlers added or removed during
// dispatch take effect from the next Publish.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	snapshot := b.handlers
	b.mu.RUnlock()

	for _, e := range snapshot {
		e.handler(v)
	}
}

// Len returns the number of active subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// ChanSubscription delivers published values on a channel.
type ChanSubscription[T any] struct {
	sub  *Subscription
	ch   chan T
	mu   sync.Mutex
	done bool
}

// C returns the receive side of the subscription.
func (c *ChanSubscription[T]) C() <-chan T { return c.ch }

// Close unsubscribes and closes the channel. Safe to call more than once.
func (c *ChanSubscription[T]) Close() {
	c.sub.Unsubscribe()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.done {
		c.done = true
		close(c.ch)
	}
}

// Channel subscribes a buffered channel to the bus. When the buffer is
// full the value is dropped for this subscriber rather than blocking the
// publisher.
func (b *Bus[T]) Channel(buffer int) *ChanSubscription[T] {
	if buffer < 1 {
		buffer = 1
	}
	c := &ChanSubscription[T]{ch: make(chan T, buffer)}
	c.sub = b.Subscribe(func(v T) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.done {
			return
		}
		select {
		case c.ch <- v:
		default:
		}
	})
	return c
}
