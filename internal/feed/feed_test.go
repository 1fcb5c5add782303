package feed_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/clock"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/feed"
	"github.com/gosuda/boardsync/internal/syncer"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // test fixture

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockStore struct {
	listFunc   func(ctx context.Context, boardID string) ([]*domain.Object, error)
	applyFunc  func(ctx context.Context, boardID, actorID string, writes []domain.Write, nowMillis int64) ([]domain.SyncEvent, error)
	deleteFunc func(ctx context.Context, boardID, objectID string) (bool, error)
}

func (m *mockStore) List(ctx context.Context, boardID string) ([]*domain.Object, error) {
	return m.listFunc(ctx, boardID)
}

func (m *mockStore) Apply(ctx context.Context, boardID, actorID string, writes []domain.Write, nowMillis int64) ([]domain.SyncEvent, error) {
	return m.applyFunc(ctx, boardID, actorID, writes, nowMillis)
}

func (m *mockStore) Delete(ctx context.Context, boardID, objectID string) (bool, error) {
	return m.deleteFunc(ctx, boardID, objectID)
}

type mockNotifier struct {
	mu        sync.Mutex
	published [][]domain.SyncEvent
	calls     []string

	publishErr   error
	subscribeErr error
	changes      chan []domain.SyncEvent
	unsubscribed bool
}

func (m *mockNotifier) Publish(_ context.Context, boardID string, events []domain.SyncEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "publish:"+boardID)
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, events)
	return nil
}

func (m *mockNotifier) Subscribe(_ context.Context, boardID string) (<-chan []domain.SyncEvent, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "subscribe:"+boardID)
	if m.subscribeErr != nil {
		return nil, nil, m.subscribeErr
	}
	return m.changes, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.unsubscribed = true
	}, nil
}

func rect(id string) *domain.Object {
	return &domain.Object{ID: id, Width: 10, Height: 10, Props: &domain.Rectangle{Fill: "#fff"}}
}

func recv(t *testing.T, ch <-chan syncer.Delivery) syncer.Delivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "feed closed")
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return syncer.Delivery{}
	}
}

// ---------------------------------------------------------------------------
// Subscribe
// ---------------------------------------------------------------------------

func TestService_Subscribe(t *testing.T) {
	t.Parallel()

	t.Run("subscribes before reading the snapshot", func(t *testing.T) {
		t.Parallel()

		n := &mockNotifier{changes: make(chan []domain.SyncEvent, 4)}
		st := &mockStore{listFunc: func(_ context.Context, boardID string) ([]*domain.Object, error) {
			n.mu.Lock()
			defer n.mu.Unlock()
			n.calls = append(n.calls, "list:"+boardID)
			return []*domain.Object{rect("a"), rect("b")}, nil
		}}
		svc := feed.NewService(st, n, clock.Fake(now), 0)

		ch, cleanup, err := svc.Subscribe(context.Background(), "b1")
		require.NoError(t, err)
		defer cleanup()

		n.mu.Lock()
		assert.Equal(t, []string{"subscribe:b1", "list:b1"}, n.calls)
		n.mu.Unlock()

		snap := recv(t, ch)
		assert.True(t, snap.Snapshot)
		require.Len(t, snap.Events, 2)
		assert.Equal(t, domain.EventAdded, snap.Events[0].Type)
		assert.Equal(t, "a", snap.Events[0].ObjectID)
		assert.Equal(t, "b", snap.Events[1].ObjectID)

		n.changes <- []domain.SyncEvent{{Type: domain.EventRemoved, ObjectID: "a"}}
		inc := recv(t, ch)
		assert.False(t, inc.Snapshot)
		assert.Equal(t, []domain.SyncEvent{{Type: domain.EventRemoved, ObjectID: "a"}}, inc.Events)
	})

	t.Run("empty board", func(t *testing.T) {
		t.Parallel()

		n := &mockNotifier{changes: make(chan []domain.SyncEvent)}
		st := &mockStore{listFunc: func(context.Context, string) ([]*domain.Object, error) {
			return []*domain.Object{}, nil
		}}
		svc := feed.NewService(st, n, clock.Fake(now), 0)

		ch, cleanup, err := svc.Subscribe(context.Background(), "b1")
		require.NoError(t, err)
		defer cleanup()

		snap := recv(t, ch)
		assert.True(t, snap.Snapshot)
		assert.NotNil(t, snap.Events)
		assert.Empty(t, snap.Events)
	})

	t.Run("notifier closing ends the feed", func(t *testing.T) {
		t.Parallel()

		n := &mockNotifier{changes: make(chan []domain.SyncEvent)}
		st := &mockStore{listFunc: func(context.Context, string) ([]*domain.Object, error) { return nil, nil }}
		svc := feed.NewService(st, n, clock.Fake(now), 0)

		ch, cleanup, err := svc.Subscribe(context.Background(), "b1")
		require.NoError(t, err)
		defer cleanup()

		recv(t, ch)
		close(n.changes)

		select {
		case _, ok := <-ch:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("feed not closed")
		}
	})

	t.Run("snapshot failure releases the subscription", func(t *testing.T) {
		t.Parallel()

		n := &mockNotifier{changes: make(chan []domain.SyncEvent)}
		st := &mockStore{listFunc: func(context.Context, string) ([]*domain.Object, error) {
			return nil, errors.New("db down")
		}}
		svc := feed.NewService(st, n, clock.Fake(now), 0)

		_, _, err := svc.Subscribe(context.Background(), "b1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")

		n.mu.Lock()
		assert.True(t, n.unsubscribed)
		n.mu.Unlock()
	})

	t.Run("notifier failure", func(t *testing.T) {
		t.Parallel()

		n := &mockNotifier{subscribeErr: errors.New("redis down")}
		svc := feed.NewService(&mockStore{}, n, clock.Fake(now), 0)

		_, _, err := svc.Subscribe(context.Background(), "b1")
		require.Error(t, err)
	})
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

func TestService_Commit(t *testing.T) {
	t.Parallel()

	t.Run("applies and publishes", func(t *testing.T) {
		t.Parallel()

		var gotActor string
		var gotNow int64
		st := &mockStore{applyFunc: func(_ context.Context, _, actorID string, writes []domain.Write, nowMillis int64) ([]domain.SyncEvent, error) {
			gotActor, gotNow = actorID, nowMillis
			return []domain.SyncEvent{
				{Type: domain.EventAdded, ObjectID: writes[0].ObjectID, Data: writes[0].Data},
				{Type: domain.EventRemoved, ObjectID: writes[1].ObjectID},
			}, nil
		}}
		n := &mockNotifier{}
		svc := feed.NewService(st, n, clock.Fake(now), 0)

		ctx := feed.WithActor(context.Background(), "user-9")
		err := svc.Commit(ctx, "b1", []domain.Write{{ObjectID: "a", Data: rect("a")}, {ObjectID: "gone"}})
		require.NoError(t, err)

		assert.Equal(t, "user-9", gotActor)
		assert.Equal(t, now.UnixMilli(), gotNow)
		require.Len(t, n.published, 1)
		assert.Len(t, n.published[0], 2)
	})

	t.Run("batch limit", func(t *testing.T) {
		t.Parallel()

		svc := feed.NewService(&mockStore{}, &mockNotifier{}, clock.Fake(now), 2)
		assert.Equal(t, 2, svc.MaxBatch())

		writes := []domain.Write{{ObjectID: "a"}, {ObjectID: "b"}, {ObjectID: "c"}}
		_, err := svc.CommitAs(context.Background(), "b1", "u", writes)
		require.ErrorIs(t, err, feed.ErrBatchTooLarge)
	})

	t.Run("default batch limit", func(t *testing.T) {
		t.Parallel()

		svc := feed.NewService(&mockStore{}, &mockNotifier{}, clock.Fake(now), 0)
		assert.Equal(t, feed.DefaultBatchLimit, svc.MaxBatch())
	})

	t.Run("invalid writes", func(t *testing.T) {
		t.Parallel()

		svc := feed.NewService(&mockStore{}, &mockNotifier{}, clock.Fake(now), 0)

		tests := []struct {
			name  string
			write domain.Write
		}{
			{name: "empty id", write: domain.Write{Data: rect("")}},
			{name: "no props", write: domain.Write{ObjectID: "a", Data: &domain.Object{ID: "a"}}},
			{name: "id mismatch", write: domain.Write{ObjectID: "a", Data: rect("b")}},
		}
		for _, tc := range tests {
			_, err := svc.CommitAs(context.Background(), "b1", "u", []domain.Write{tc.write})
			require.ErrorIs(t, err, feed.ErrInvalidWrite, tc.name)
		}
	})

	t.Run("empty commit touches nothing", func(t *testing.T) {
		t.Parallel()

		n := &mockNotifier{}
		svc := feed.NewService(&mockStore{}, n, clock.Fake(now), 0)

		events, err := svc.CommitAs(context.Background(), "b1", "u", nil)
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Empty(t, n.calls)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		st := &mockStore{applyFunc: func(context.Context, string, string, []domain.Write, int64) ([]domain.SyncEvent, error) {
			return nil, errors.New("serialization failure")
		}}
		n := &mockNotifier{}
		svc := feed.NewService(st, n, clock.Fake(now), 0)

		err := svc.Commit(context.Background(), "b1", []domain.Write{{ObjectID: "a", Data: rect("a")}})
		require.Error(t, err)
		assert.Empty(t, n.calls, "nothing published for a failed commit")
	})

	t.Run("publish failure still succeeds", func(t *testing.T) {
		t.Parallel()

		st := &mockStore{applyFunc: func(_ context.Context, _, _ string, writes []domain.Write, _ int64) ([]domain.SyncEvent, error) {
			return []domain.SyncEvent{{Type: domain.EventModified, ObjectID: writes[0].ObjectID, Data: writes[0].Data}}, nil
		}}
		n := &mockNotifier{publishErr: errors.New("redis down")}
		svc := feed.NewService(st, n, clock.Fake(now), 0)

		events, err := svc.CommitAs(context.Background(), "b1", "u", []domain.Write{{ObjectID: "a", Data: rect("a")}})
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestService_Delete(t *testing.T) {
	t.Parallel()

	t.Run("publishes removal", func(t *testing.T) {
		t.Parallel()

		st := &mockStore{deleteFunc: func(context.Context, string, string) (bool, error) { return true, nil }}
		n := &mockNotifier{}
		svc := feed.NewService(st, n, clock.Fake(now), 0)

		require.NoError(t, svc.Delete(context.Background(), "b1", "a"))
		require.Len(t, n.published, 1)
		assert.Equal(t, []domain.SyncEvent{{Type: domain.EventRemoved, ObjectID: "a"}}, n.published[0])
	})

	t.Run("missing object", func(t *testing.T) {
		t.Parallel()

		st := &mockStore{deleteFunc: func(context.Context, string, string) (bool, error) { return false, nil }}
		n := &mockNotifier{}
		svc := feed.NewService(st, n, clock.Fake(now), 0)

		err := svc.Delete(context.Background(), "b1", "a")
		require.ErrorIs(t, err, domain.ErrNotFound)
		assert.Empty(t, n.published)
	})
}

func TestActorFromContext(t *testing.T) {
	t.Parallel()

	_, ok := feed.ActorFromContext(context.Background())
	assert.False(t, ok)

	id, ok := feed.ActorFromContext(feed.WithActor(context.Background(), "u1"))
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}
