package events

import "sync"

// Emitter is a minimal synchronous observer registry. Notifications fire on
// the caller's goroutine immediately after the state change they describe.
// Unsubscribing is safe at any time, including from inside a callback that is
// currently being delivered.
type Emitter[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
}

// NewEmitter returns an empty emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{subs: make(map[int]func(T))}
}

// Subscribe registers a callback and returns its unsubscribe function.
func (e *Emitter[T]) Subscribe(fn func(T)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Emit delivers the event to every subscriber registered at call time.
// Callbacks run outside the emitter lock, so they may subscribe or
// unsubscribe freely; a subscriber removed mid-delivery may still receive
// the in-flight event.
func (e *Emitter[T]) Emit(event T) {
	e.mu.Lock()
	callbacks := make([]func(T), 0, len(e.subs))
	for _, fn := range e.subs {
		callbacks = append(callbacks, fn)
	}
	e.mu.Unlock()

	for _, fn := range callbacks {
		fn(event)
	}
}

// Len returns the number of active subscribers.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
