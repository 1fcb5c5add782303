package ws

import "github.com/gosuda/boardsync/internal/domain"

// Frame is one message on a board feed socket. The first frame of every
// connection is a snapshot. A frame with Error set is the last one sent.
type Frame struct {
	Snapshot bool               `json:"snapshot,omitempty"`
	Events   []domain.SyncEvent `json:"events"`
	Error    string             `json:"error,omitempty"`
	Code     int                `json:"code,omitempty"` // HTTP status equivalent of Error
}
