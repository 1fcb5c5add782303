package domain

type EventType string

const (
	EventAdded    EventType = "added"
	EventModified EventType = "modified"
	EventRemoved  EventType = "removed"
)

// SyncEvent is a single change notification on a board's object collection.
// Data is nil for removals.
type SyncEvent struct {
	Type     EventType `json:"type"`
	ObjectID string    `json:"objectId"`
	Data     *Object   `json:"data"`
}

// Write is one buffered document write. A nil Data is a delete marker.
type Write struct {
	ObjectID string  `json:"objectId"`
	Data     *Object `json:"data"`
}

// IsDelete reports whether the write removes the document.
func (w Write) IsDelete() bool {
	return w.Data == nil
}
