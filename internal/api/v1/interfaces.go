package v1

import (
	"context"

	"github.com/gosuda/boardsync/internal/domain"
)

// BoardService abstracts board persistence for handler testing.
// *feed.Service satisfies this interface.
type BoardService interface {
	Snapshot(ctx context.Context, boardID string) ([]*domain.Object, error)
	CommitAs(ctx context.Context, boardID, actorID string, writes []domain.Write) ([]domain.SyncEvent, error)
	Delete(ctx context.Context, boardID, objectID string) error
	MaxBatch() int
}
