package syncer

import "github.com/gosuda/boardsync/internal/domain"

// writeBuffer holds pending writes, last write wins per object id, and
// drains them in arrival order of each id's first pending write. Callers
// hold the engine lock.
type writeBuffer struct {
	order  []string
	writes map[string]domain.Write
}

func newWriteBuffer() *writeBuffer {
	return &writeBuffer{writes: make(map[string]domain.Write)}
}

func (b *writeBuffer) has(id string) bool {
	_, ok := b.writes[id]
	return ok
}

func (b *writeBuffer) put(w domain.Write) {
	if _, ok := b.writes[w.ObjectID]; !ok {
		b.order = append(b.order, w.ObjectID)
	}
	b.writes[w.ObjectID] = w
}

// restore puts back writes from a failed commit unless a newer write for
// the same id arrived meanwhile. It returns how many were put back.
func (b *writeBuffer) restore(ws []domain.Write) int {
	n := 0
	for _, w := range ws {
		if b.has(w.ObjectID) {
			continue
		}
		b.put(w)
		n++
	}
	return n
}

func (b *writeBuffer) drain() []domain.Write {
	if len(b.order) == 0 {
		return nil
	}
	out := make([]domain.Write, len(b.order))
	for i, id := range b.order {
		out[i] = b.writes[id]
	}
	b.order = nil
	b.writes = make(map[string]domain.Write)
	return out
}

func (b *writeBuffer) len() int {
	return len(b.order)
}

func chunk(ws []domain.Write, size int) [][]domain.Write {
	if size <= 0 {
		size = len(ws)
	}
	var out [][]domain.Write
	for len(ws) > 0 {
		n := min(size, len(ws))
		out = append(out, ws[:n:n])
		ws = ws[n:]
	}
	return out
}
