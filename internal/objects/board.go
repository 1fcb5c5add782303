package objects

import (
	"reflect"
	"slices"
	"sync"

	"github.com/gosuda/boardsync/internal/clock"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/geometry"
	"github.com/gosuda/boardsync/internal/observe"
)

// Publisher receives every local write. A nil data is a delete marker.
type Publisher interface {
	Publish(objectID string, data *domain.Object)
}

// State is what observers see after each change.
type State struct {
	Objects  []*domain.Object
	Selected []string
}

// Board is the handle for one open board. It owns the Store and routes
// local intents through the Handler, the undo History and the Publisher.
// Remote changes arrive through ApplyRemote, HydrateFromSnapshot and
// Reconcile. Safe for concurrent use.
type Board struct {
	actorID string
	store   *Store
	handler *Handler
	history *History
	clip    Clipboard

	// mu serializes mutations so multi-object intents are not interleaved
	// with remote changes.
	mu        sync.Mutex
	publisher Publisher
	selected  []string

	observers observe.List[State]
}

func NewBoard(actorID string, clk clock.Clock) *Board {
	store := NewStore(clk)
	return &Board{
		actorID: actorID,
		store:   store,
		handler: NewHandler(store, clk),
		history: NewHistory(DefaultHistoryDepth),
	}
}

// SetPublisher routes subsequent local writes to p. Pass nil to stop
// publishing.
func (b *Board) SetPublisher(p Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publisher = p
}

func (b *Board) ActorID() string { return b.actorID }

// Store exposes the underlying table for read-only queries such as culling.
func (b *Board) Store() *Store { return b.store }

// ApplyLocal handles an intent from this client, records an undo step when
// it succeeds, and publishes every object it wrote.
func (b *Board) ApplyLocal(intent domain.Intent) domain.Result {
	b.mu.Lock()
	before := b.store.All()
	res := b.handler.Handle(intent, b.actorID)
	if res.OK {
		b.history.Push(before)
		_, isDelete := intent.(domain.Delete)
		b.publishLocked(res.Affected, isDelete)
	}
	state := b.stateLocked()
	b.mu.Unlock()

	if res.OK {
		b.observers.Emit(state)
	}
	return res
}

func (b *Board) publishLocked(ids []string, deleted bool) {
	if b.publisher == nil {
		return
	}
	for _, id := range ids {
		if deleted {
			b.publisher.Publish(id, nil)
			continue
		}
		if o, ok := b.store.Get(id); ok {
			b.publisher.Publish(id, o)
		}
	}
}

// ApplyRemote applies a change that originated elsewhere. It is never
// published back and never recorded for undo.
func (b *Board) ApplyRemote(ev domain.SyncEvent) {
	b.mu.Lock()
	switch ev.Type {
	case domain.EventAdded, domain.EventModified:
		if ev.Data != nil {
			o := ev.Data.Clone()
			o.ID = ev.ObjectID
			b.store.Set(o)
		}
	case domain.EventRemoved:
		b.store.Remove(ev.ObjectID)
	}
	state := b.stateLocked()
	b.mu.Unlock()

	b.observers.Emit(state)
}

// HydrateFromSnapshot replaces the whole board with objs.
func (b *Board) HydrateFromSnapshot(objs []*domain.Object) {
	b.mu.Lock()
	b.store.Hydrate(objs)
	state := b.stateLocked()
	b.mu.Unlock()

	b.observers.Emit(state)
}

// Reconcile replaces the board with snapshot, except that objects for which
// keepLocal returns true keep their local version (or local absence).
func (b *Board) Reconcile(snapshot []*domain.Object, keepLocal func(id string) bool) {
	b.mu.Lock()
	local := b.store.All()

	merged := make([]*domain.Object, 0, len(snapshot)+len(local))
	seen := make(map[string]struct{}, len(snapshot))
	for _, o := range snapshot {
		seen[o.ID] = struct{}{}
		if keepLocal(o.ID) {
			if l, ok := b.store.Get(o.ID); ok {
				merged = append(merged, l)
			}
			continue
		}
		merged = append(merged, o)
	}
	for _, l := range local {
		if _, ok := seen[l.ID]; !ok && keepLocal(l.ID) {
			merged = append(merged, l)
		}
	}

	b.store.Hydrate(merged)
	state := b.stateLocked()
	b.mu.Unlock()

	b.observers.Emit(state)
}

// Reset empties the board and drops its undo history and selection. The
// clipboard is kept so objects can be pasted onto the next board.
func (b *Board) Reset() {
	b.mu.Lock()
	b.store.Clear()
	b.history.Clear()
	b.selected = nil
	state := b.stateLocked()
	b.mu.Unlock()

	b.observers.Emit(state)
}

// Objects returns copies of every object in insertion order.
func (b *Board) Objects() []*domain.Object {
	return b.store.All()
}

func (b *Board) Object(id string) (*domain.Object, bool) {
	return b.store.Get(id)
}

// Copy places the given objects on the clipboard.
func (b *Board) Copy(ids []string) int {
	return b.clip.Copy(b.store, ids)
}

// Paste inserts the clipboard centered on (cx, cy) as one undo step and
// returns the new ids.
func (b *Board) Paste(cx, cy float64) []string {
	if !b.clip.HasData() {
		return nil
	}

	b.mu.Lock()
	b.history.Push(b.store.All())
	created := b.clip.Paste(b.handler, cx, cy, b.actorID)
	ids := make([]string, len(created))
	for i, o := range created {
		ids[i] = o.ID
	}
	b.publishLocked(ids, false)
	state := b.stateLocked()
	b.mu.Unlock()

	b.observers.Emit(state)
	return ids
}

// Undo restores the previous snapshot and publishes the difference.
func (b *Board) Undo() bool {
	return b.swap(b.history.Undo)
}

// Redo reapplies the last undone snapshot and publishes the difference.
func (b *Board) Redo() bool {
	return b.swap(b.history.Redo)
}

func (b *Board) CanUndo() bool { return b.history.CanUndo() }
func (b *Board) CanRedo() bool { return b.history.CanRedo() }

func (b *Board) swap(pop func(current []*domain.Object) ([]*domain.Object, bool)) bool {
	b.mu.Lock()
	current := b.store.All()
	next, ok := pop(current)
	if !ok {
		b.mu.Unlock()
		return false
	}
	b.store.Hydrate(next)
	b.publishDiffLocked(current, next)
	state := b.stateLocked()
	b.mu.Unlock()

	b.observers.Emit(state)
	return true
}

func (b *Board) publishDiffLocked(from, to []*domain.Object) {
	if b.publisher == nil {
		return
	}

	prev := make(map[string]*domain.Object, len(from))
	for _, o := range from {
		prev[o.ID] = o
	}
	for _, o := range to {
		old, existed := prev[o.ID]
		delete(prev, o.ID)
		if existed && reflect.DeepEqual(old, o) {
			continue
		}
		b.publisher.Publish(o.ID, o.Clone())
	}
	for _, o := range from {
		if _, gone := prev[o.ID]; gone {
			b.publisher.Publish(o.ID, nil)
		}
	}
}

// Align moves the given objects according to kind as a single undo step.
// It returns false when the selection is too small for kind.
func (b *Board) Align(kind geometry.AlignKind, ids []string) bool {
	b.mu.Lock()
	objs := make([]*domain.Object, 0, len(ids))
	for _, id := range ids {
		if o, ok := b.store.Get(id); ok {
			objs = append(objs, o)
		}
	}
	updates := geometry.Align(kind, objs)
	if len(updates) == 0 {
		b.mu.Unlock()
		return false
	}

	b.history.Push(b.store.All())
	for _, u := range updates {
		res := b.handler.Handle(domain.Move{ObjectID: u.ID, X: u.X, Y: u.Y}, b.actorID)
		b.publishLocked(res.Affected, false)
	}
	state := b.stateLocked()
	b.mu.Unlock()

	b.observers.Emit(state)
	return true
}

// RecomputeFrameChildren sets a frame's children to the objects whose
// centers currently fall inside it.
func (b *Board) RecomputeFrameChildren(frameID string) domain.Result {
	f, ok := b.store.Get(frameID)
	if !ok || f.Type() != domain.TypeFrame {
		return domain.Result{}
	}

	inside := geometry.FindObjectsInBounds(b.store.All(), geometry.RectOf(f))
	children := make([]string, len(inside))
	for i, o := range inside {
		children[i] = o.ID
	}
	return b.ApplyLocal(domain.UpdateFrameChildren{ObjectID: frameID, Children: children})
}

// Select replaces the selection with id, or clears it when id is empty.
func (b *Board) Select(id string) {
	b.mu.Lock()
	if id == "" {
		b.selected = nil
	} else {
		b.selected = []string{id}
	}
	state := b.stateLocked()
	b.mu.Unlock()

	b.observers.Emit(state)
}

// ToggleSelect adds id to the selection or removes it if already selected.
func (b *Board) ToggleSelect(id string) {
	b.mu.Lock()
	if i := slices.Index(b.selected, id); i >= 0 {
		b.selected = slices.Delete(b.selected, i, i+1)
	} else {
		b.selected = append(b.selected, id)
	}
	state := b.stateLocked()
	b.mu.Unlock()

	b.observers.Emit(state)
}

func (b *Board) SelectAll() {
	b.mu.Lock()
	all := b.store.All()
	b.selected = make([]string, len(all))
	for i, o := range all {
		b.selected[i] = o.ID
	}
	state := b.stateLocked()
	b.mu.Unlock()

	b.observers.Emit(state)
}

func (b *Board) DeselectAll() {
	b.Select("")
}

// Selected returns the selected ids that still exist.
func (b *Board) Selected() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneSelectionLocked()
	return slices.Clone(b.selected)
}

// Snapshot returns the current state without waiting for a change.
func (b *Board) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// ObserveObjects registers cb for every state change and returns a
// function that unregisters it.
func (b *Board) ObserveObjects(cb func(State)) func() {
	return b.observers.Add(cb)
}

func (b *Board) pruneSelectionLocked() {
	b.selected = slices.DeleteFunc(b.selected, func(id string) bool {
		return !b.store.Has(id)
	})
}

func (b *Board) stateLocked() State {
	b.pruneSelectionLocked()
	return State{
		Objects:  b.store.All(),
		Selected: slices.Clone(b.selected),
	}
}
