// Package observe provides typed observer lists whose subscriptions are
// cancelled by calling the returned function.
package observe

import (
	"slices"
	"sync"
)

// List is a set of callbacks for values of type T. The zero value is ready
// to use and safe for concurrent use.
type List[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(T)
}

// Add registers cb and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (l *List[T]) Add(cb func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.subs == nil {
		l.subs = make(map[uint64]func(T))
	}
	id := l.nextID
	l.nextID++
	l.subs[id] = cb

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

// Emit calls every registered callback with v, in registration order.
// Callbacks run without the list's lock held and may unsubscribe themselves.
func (l *List[T]) Emit(v T) {
	l.mu.Lock()
	ids := make([]uint64, 0, len(l.subs))
	for id := range l.subs {
		ids = append(ids, id)
	}
	cbs := make([]func(T), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		cbs = append(cbs, l.subs[id])
	}
	l.mu.Unlock()

	for _, cb := range cbs {
		cb(v)
	}
}

// Len returns the number of registered callbacks.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}
