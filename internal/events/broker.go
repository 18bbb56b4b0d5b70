// Package events provides a small fan-out broadcaster used for ledger
// snapshots, transfer progress and user-facing messages.
package events

import "sync"

// Broker fans values out to any number of subscribers. Publishing never blocks:
// a subscriber that falls behind loses its oldest pending value so that the
// latest one is always delivered.
type Broker[T any] struct {
	mu     sync.RWMutex
	subs   map[chan T]struct{}
	closed bool
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[chan T]struct{})}
}

// Subscribe registers a new subscriber. The returned unsubscribe function must
// be called to avoid leaks; it closes the channel and is safe to call twice.
func (b *Broker[T]) Subscribe(buffer int) (<-chan T, func()) {
	return b.subscribe(buffer, nil)
}

// SubscribeWith registers a subscriber and seeds it with initial before any
// published value can reach it.
func (b *Broker[T]) SubscribeWith(buffer int, initial T) (<-chan T, func()) {
	return b.subscribe(buffer, &initial)
}

func (b *Broker[T]) subscribe(buffer int, seed *T) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan T, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}
	if seed != nil {
		ch <- *seed
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Publish delivers v to every subscriber without blocking.
func (b *Broker[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// Channel is saturated; drop the oldest value and retry once.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Subscribers returns the number of live subscribers.
func (b *Broker[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}
