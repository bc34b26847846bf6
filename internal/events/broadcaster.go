package events

import (
	"sync"
)

// Broadcaster provides fan-out pub/sub for values of type T.
// Listeners can be channels or callback functions.
// replayLatest: if true, the Broadcaster remembers the last published value
// and delivers it to new listeners immediately, so late subscribers (e.g. a
// freshly opened view) see current state without waiting for the next publish.
type Broadcaster[T any] struct {
	mu           sync.RWMutex
	listeners    map[uint64]listener[T]
	nextID       uint64
	replayLatest bool
	lastValue    *T
	hasPublished bool
}

// listener is either a channel or a callback, never both
type listener[T any] struct {
	ch chan<- T
	fn func(T)
}

// NewBroadcaster creates a new Broadcaster instance
func NewBroadcaster[T any](replayLatest bool) *Broadcaster[T] {
	return &Broadcaster[T]{
		listeners:    make(map[uint64]listener[T]),
		replayLatest: replayLatest,
	}
}

// Subscribe registers a channel to receive published values.
// Returns a deregistration function that removes the listener.
// Sends are non-blocking - if the channel is full the value is skipped,
// so subscribers should buffer at least one element.
func (b *Broadcaster[T]) Subscribe(ch chan<- T) func() {
	if ch == nil {
		panic("channel cannot be nil")
	}
	id, replay := b.add(listener[T]{ch: ch})
	if replay != nil {
		select {
		case ch <- *replay:
		default:
			// Channel is full, skip the replayed value
		}
	}
	return func() { b.remove(id) }
}

// SubscribeFunc registers a callback to be invoked with published values.
// Returns a deregistration function that removes the listener.
// Callbacks are invoked on the publisher's goroutine, outside the
// Broadcaster's lock.
func (b *Broadcaster[T]) SubscribeFunc(fn func(T)) func() {
	if fn == nil {
		panic("callback cannot be nil")
	}
	id, replay := b.add(listener[T]{fn: fn})
	if replay != nil {
		fn(*replay)
	}
	return func() { b.remove(id) }
}

// add registers a listener and returns a copy of the last value when a
// replay is due, so delivery can happen outside the lock.
func (b *Broadcaster[T]) add(l listener[T]) (uint64, *T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	if b.replayLatest && b.hasPublished && b.lastValue != nil {
		cp := new(T)
		*cp = *b.lastValue
		return id, cp
	}
	return id, nil
}

func (b *Broadcaster[T]) remove(id uint64) {
	b.mu.Lock()
	delete(b.listeners, id)
	b.mu.Unlock()
}

// Publish delivers the value to all registered listeners.
// Thread-safe. Channel sends are non-blocking; callbacks run synchronously
// outside the lock to avoid deadlock.
func (b *Broadcaster[T]) Publish(value T) {
	b.mu.Lock()
	if b.replayLatest {
		if b.lastValue == nil {
			b.lastValue = new(T)
		}
		*b.lastValue = value
		b.hasPublished = true
	}
	snapshot := make([]listener[T], 0, len(b.listeners))
	for _, l := range b.listeners {
		snapshot = append(snapshot, l)
	}
	b.mu.Unlock()

	for _, l := range snapshot {
		if l.ch != nil {
			select {
			case l.ch <- value:
			default:
				// Channel is full, skip this listener
			}
			continue
		}
		l.fn(value)
	}
}

// ListenerCount returns the current number of registered listeners
// This is useful for testing and debugging
func (b *Broadcaster[T]) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
