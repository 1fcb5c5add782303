// Package syncer keeps a local board replica and the remote object
// collection in step: it buffers and batches local writes, suppresses the
// echoes of those writes on the change feed, and reconnects with backoff
// when the feed fails.
package syncer

import (
	"context"
	"errors"

	"github.com/gosuda/boardsync/internal/domain"
)

var (
	ErrNoBoard    = errors.New("no board selected")  //nolint:gochecknoglobals // sentinel error
	ErrFeedClosed = errors.New("change feed closed") //nolint:gochecknoglobals // sentinel error
)

// Delivery is one batch from a board's change feed. The first delivery of
// every subscription is a full snapshot in which every event is "added".
// A delivery with Err set ends the subscription.
type Delivery struct {
	Snapshot bool               `json:"snapshot"`
	Events   []domain.SyncEvent `json:"events"`
	Err      error              `json:"-"`
}

// Remote is the persistence and notification service behind a board.
type Remote interface {
	// Subscribe opens the change feed for boardID. The channel is closed
	// when the feed ends; cleanup releases it early.
	Subscribe(ctx context.Context, boardID string) (<-chan Delivery, func(), error)

	// Commit writes all of writes atomically. len(writes) never exceeds
	// MaxBatch.
	Commit(ctx context.Context, boardID string, writes []domain.Write) error

	// MaxBatch is the largest number of writes one Commit accepts.
	MaxBatch() int
}

// Replica is the local copy of the board the engine keeps current.
type Replica interface {
	ApplyRemote(ev domain.SyncEvent)
	Reconcile(snapshot []*domain.Object, keepLocal func(id string) bool)
}

// permanent reports whether a feed error should stop reconnect attempts.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrUnauthenticated) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrNotFound)
}
