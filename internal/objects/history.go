package objects

import (
	"sync"

	"github.com/gosuda/boardsync/internal/domain"
)

// DefaultHistoryDepth bounds the undo stack.
const DefaultHistoryDepth = 50

// History is a bounded undo/redo stack of full board snapshots.
type History struct {
	depth int

	mu   sync.Mutex
	undo [][]*domain.Object
	redo [][]*domain.Object
}

func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &History{depth: depth}
}

// Push records the state before a mutation and drops the redo stack. The
// oldest snapshot is discarded once depth is exceeded.
func (h *History) Push(objs []*domain.Object) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.undo = append(h.undo, domain.CloneAll(objs))
	if len(h.undo) > h.depth {
		h.undo = h.undo[len(h.undo)-h.depth:]
	}
	h.redo = nil
}

// Undo pops the latest snapshot and saves current for Redo.
func (h *History) Undo(current []*domain.Object) ([]*domain.Object, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undo) == 0 {
		return nil, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, domain.CloneAll(current))
	return prev, true
}

// Redo pops the latest undone snapshot and saves current for Undo.
func (h *History) Redo(current []*domain.Object) ([]*domain.Object, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.redo) == 0 {
		return nil, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, domain.CloneAll(current))
	return next, true
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo, h.redo = nil, nil
}
