package objects

import (
	"sync"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/geometry"
)

// Clipboard holds copies of objects for a later paste. The zero value is
// empty and ready to use.
type Clipboard struct {
	mu    sync.Mutex
	items []*domain.Object
}

// Copy replaces the clipboard contents with the objects in store matching
// ids, skipping missing ones. It returns how many were copied.
func (c *Clipboard) Copy(store *Store, ids []string) int {
	items := make([]*domain.Object, 0, len(ids))
	for _, id := range ids {
		if o, ok := store.Get(id); ok {
			items = append(items, o)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	return len(items)
}

// Paste inserts clones of the clipboard contents so that their combined
// bounding box is centered on (cx, cy). The clipboard keeps its contents.
func (c *Clipboard) Paste(h *Handler, cx, cy float64, actorID string) []*domain.Object {
	c.mu.Lock()
	items := domain.CloneAll(c.items)
	c.mu.Unlock()

	box, ok := geometry.BoundingBox(items)
	if !ok {
		return nil
	}
	center := box.Center()
	dx, dy := cx-center.X, cy-center.Y

	created := make([]*domain.Object, 0, len(items))
	for _, src := range items {
		created = append(created, h.InsertClone(src, actorID, dx, dy))
	}
	return created
}

func (c *Clipboard) HasData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) > 0
}

func (c *Clipboard) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}
