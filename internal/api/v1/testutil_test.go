package v1_test

import (
	"context"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject user/role into context for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID, role string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, role)
	return ctx
}

func collaboratorCtx() context.Context {
	return userCtx("user-1", auth.RoleCollaborator)
}

func viewerCtx() context.Context {
	return userCtx("user-2", auth.RoleViewer)
}

// ---------------------------------------------------------------------------
// Mock BoardService
// ---------------------------------------------------------------------------

type mockBoardService struct {
	snapshotFunc func(ctx context.Context, boardID string) ([]*domain.Object, error)
	commitAsFunc func(ctx context.Context, boardID, actorID string, writes []domain.Write) ([]domain.SyncEvent, error)
	deleteFunc   func(ctx context.Context, boardID, objectID string) error
	maxBatch     int
}

func (m *mockBoardService) Snapshot(ctx context.Context, boardID string) ([]*domain.Object, error) {
	return m.snapshotFunc(ctx, boardID)
}

func (m *mockBoardService) CommitAs(ctx context.Context, boardID, actorID string, writes []domain.Write) ([]domain.SyncEvent, error) {
	return m.commitAsFunc(ctx, boardID, actorID, writes)
}

func (m *mockBoardService) Delete(ctx context.Context, boardID, objectID string) error {
	return m.deleteFunc(ctx, boardID, objectID)
}

func (m *mockBoardService) MaxBatch() int {
	if m.maxBatch == 0 {
		return 500
	}
	return m.maxBatch
}
