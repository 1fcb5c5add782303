// Package objects holds the in-memory state of one open board: the object
// table, the intent handler that mutates it, clipboard, undo history, and
// the Board handle the UI talks to.
package objects

import (
	"slices"
	"sync"

	"github.com/gosuda/boardsync/internal/clock"
	"github.com/gosuda/boardsync/internal/domain"
)

type entry struct {
	obj *domain.Object
	seq uint64
}

// Store is a keyed table of board objects. Objects go in and come out as
// copies, so callers never share memory with the table. All preserves
// first-insertion order; replacing an object keeps its position.
type Store struct {
	clock clock.Clock

	mu      sync.RWMutex
	nextSeq uint64
	objects map[string]entry
}

func NewStore(clk clock.Clock) *Store {
	return &Store{
		clock:   clk,
		objects: make(map[string]entry),
	}
}

// Add inserts o, replacing any object with the same id.
func (s *Store) Add(o *domain.Object) {
	s.Set(o)
}

// Set inserts or replaces o.
func (s *Store) Set(o *domain.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(o.Clone())
}

func (s *Store) setLocked(o *domain.Object) {
	if e, ok := s.objects[o.ID]; ok {
		s.objects[o.ID] = entry{obj: o, seq: e.seq}
		return
	}
	s.objects[o.ID] = entry{obj: o, seq: s.nextSeq}
	s.nextSeq++
}

// Update applies patch to a copy of the stored object, stamps UpdatedAt and
// stores the result. Missing ids are a no-op reported as false.
func (s *Store) Update(id string, patch func(o *domain.Object)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.objects[id]
	if !ok {
		return false
	}
	o := e.obj.Clone()
	patch(o)
	o.ID = id
	o.UpdatedAt = clock.Millis(s.clock)
	s.objects[id] = entry{obj: o, seq: e.seq}
	return true
}

// Move sets the top-left corner of an object.
func (s *Store) Move(id string, x, y float64) bool {
	return s.Update(id, func(o *domain.Object) {
		o.X, o.Y = x, y
	})
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, id)
}

// Get returns a copy of the object with the given id.
func (s *Store) Get(id string) (*domain.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.objects[id]
	if !ok {
		return nil, false
	}
	return e.obj.Clone(), true
}

// Has reports whether id is present without copying the object.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[id]
	return ok
}

// All returns copies of every object in insertion order.
func (s *Store) All() []*domain.Object {
	s.mu.RLock()
	entries := make([]entry, 0, len(s.objects))
	for _, e := range s.objects {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	out := make([]*domain.Object, len(entries))
	for i, e := range entries {
		out[i] = e.obj.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *Store) Clear() {
	s.Hydrate(nil)
}

// Hydrate atomically replaces the whole table with objs.
func (s *Store) Hydrate(objs []*domain.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects = make(map[string]entry, len(objs))
	s.nextSeq = 0
	for _, o := range objs {
		s.setLocked(o.Clone())
	}
}
