package session_test

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
	"github.com/gosuda/boardsync/internal/objects"
	"github.com/gosuda/boardsync/internal/session"
	"github.com/gosuda/boardsync/internal/syncer"
)

const wait = 2 * time.Second

type identityFunc func() (string, error)

func (f identityFunc) CurrentUser() (string, error) { return f() }

func signedIn() (string, error) { return "user-1", nil }

type feed struct {
	boardID string
	ch      chan syncer.Delivery
}

type fakeRemote struct {
	subscribeFunc func(boardID string) error
	commitFunc    func(boardID string)

	feeds chan feed

	mu           sync.Mutex
	commits      map[string][]domain.Write
	unsubscribed []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{feeds: make(chan feed, 16), commits: make(map[string][]domain.Write)}
}

func (r *fakeRemote) Subscribe(_ context.Context, boardID string) (<-chan syncer.Delivery, func(), error) {
	if r.subscribeFunc != nil {
		if err := r.subscribeFunc(boardID); err != nil {
			return nil, nil, err
		}
	}
	f := feed{boardID: boardID, ch: make(chan syncer.Delivery, 16)}
	r.feeds <- f
	return f.ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.unsubscribed = append(r.unsubscribed, boardID)
	}, nil
}

func (r *fakeRemote) Commit(_ context.Context, boardID string, writes []domain.Write) error {
	if r.commitFunc != nil {
		r.commitFunc(boardID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits[boardID] = append(r.commits[boardID], writes...)
	return nil
}

func (r *fakeRemote) MaxBatch() int { return 500 }

func (r *fakeRemote) closed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.unsubscribed...)
}

func (r *fakeRemote) committed(boardID string) []domain.Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits[boardID]
}

// serve answers the next subscription with a snapshot of objs.
func (r *fakeRemote) serve(t *testing.T, objs ...*domain.Object) string {
	t.Helper()
	select {
	case f := <-r.feeds:
		d := syncer.Delivery{Snapshot: true, Events: []domain.SyncEvent{}}
		for _, o := range objs {
			d.Events = append(d.Events, domain.SyncEvent{Type: domain.EventAdded, ObjectID: o.ID, Data: o})
		}
		f.ch <- d
		return f.boardID
	case <-time.After(wait):
		t.Fatal("no subscription")
		return ""
	}
}

type harness struct {
	remote  *fakeRemote
	board   *objects.Board
	engine  *syncer.Engine
	session *session.Session
}

func newHarness(t *testing.T, identity session.Identity) *harness {
	t.Helper()

	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	remote := newFakeRemote()
	board := objects.NewBoard("user-1", clk)
	engine := syncer.NewEngine(remote, board, clk, syncer.Config{FlushInterval: time.Hour})
	s := session.New(engine, board, identity, time.Second)

	t.Cleanup(func() { _ = s.Leave(context.Background()) })
	return &harness{remote: remote, board: board, engine: engine, session: s}
}

// enter runs Enter in the background and serves its snapshot.
func (h *harness) enter(t *testing.T, boardID string, objs ...*domain.Object) {
	t.Helper()

	errc := make(chan error, 1)
	go func() { errc <- h.session.Enter(context.Background(), boardID) }()
	assert.Equal(t, boardID, h.remote.serve(t, objs...))

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(wait):
		t.Fatal("enter did not return")
	}
}

func sticky(id string) *domain.Object {
	return &domain.Object{ID: id, Width: 200, Height: 200, Props: &domain.Sticky{Text: "hi", Color: domain.StickyYellow}}
}

func TestSession_Enter(t *testing.T) {
	t.Parallel()

	h := newHarness(t, identityFunc(signedIn))

	var states []session.State
	var mu sync.Mutex
	h.session.ObserveState(func(s session.State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	h.enter(t, "board-1", sticky("a"), sticky("b"))

	assert.Equal(t, session.StateActive, h.session.State())
	assert.Equal(t, "board-1", h.session.BoardID())
	assert.Len(t, h.board.Objects(), 2)
	assert.Equal(t, syncer.StatusConnected, h.engine.Status())

	mu.Lock()
	assert.Equal(t, []session.State{session.StateEntering, session.StateActive}, states)
	mu.Unlock()
}

func TestSession_EnterSameBoardIsNoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, identityFunc(signedIn))
	h.enter(t, "board-1")

	require.NoError(t, h.session.Enter(context.Background(), "board-1"))
	assert.Empty(t, h.remote.feeds, "no second subscription")
	assert.Equal(t, session.StateActive, h.session.State())
}

func TestSession_EnterUnauthenticated(t *testing.T) {
	t.Parallel()

	h := newHarness(t, identityFunc(func() (string, error) {
		return "", errors.New("no token")
	}))

	err := h.session.Enter(context.Background(), "board-1")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, session.StateIdle, h.session.State())
	assert.Empty(t, h.remote.feeds)
}

func TestSession_EnterForbidden(t *testing.T) {
	t.Parallel()

	h := newHarness(t, identityFunc(signedIn))
	h.remote.subscribeFunc = func(string) error { return domain.ErrForbidden }

	err := h.session.Enter(context.Background(), "board-1")
	require.ErrorIs(t, err, domain.ErrNotConnected)
	assert.Equal(t, session.StateIdle, h.session.State())
	assert.Empty(t, h.session.BoardID())
	assert.Equal(t, syncer.StatusIdle, h.engine.Status())
}

func TestSession_EnterCanceled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, identityFunc(signedIn))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.session.Enter(ctx, "board-1") }()

	select {
	case <-h.remote.feeds:
	case <-time.After(wait):
		t.Fatal("no subscription")
	}
	cancel()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(wait):
		t.Fatal("enter did not return")
	}
	assert.Equal(t, session.StateIdle, h.session.State())
}

func TestSession_Leave(t *testing.T) {
	t.Parallel()

	t.Run("flushes then empties the board", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, identityFunc(signedIn))
		h.enter(t, "board-1", sticky("a"))

		res := h.board.ApplyLocal(domain.UpdateText{ObjectID: "a", Text: "bye"})
		require.True(t, res.OK)
		require.Equal(t, 1, h.engine.Buffered())

		require.NoError(t, h.session.Leave(context.Background()))

		writes := h.remote.committed("board-1")
		require.Len(t, writes, 1)
		assert.Equal(t, "a", writes[0].ObjectID)
		text := writes[0].Data.Props.(*domain.Sticky).Text //nolint:forcetypeassert // sticky fixture
		assert.Equal(t, "bye", text)

		assert.Equal(t, session.StateIdle, h.session.State())
		assert.Empty(t, h.session.BoardID())
		assert.Empty(t, h.board.Objects())
		assert.Equal(t, syncer.StatusIdle, h.engine.Status())
	})

	t.Run("edits after leaving are not published", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, identityFunc(signedIn))
		h.enter(t, "board-1")
		require.NoError(t, h.session.Leave(context.Background()))

		res := h.board.ApplyLocal(domain.CreateSticky{X: 1, Y: 1})
		require.True(t, res.OK)
		assert.Zero(t, h.engine.Buffered())
	})

	t.Run("idle is a no-op", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, identityFunc(signedIn))
		require.NoError(t, h.session.Leave(context.Background()))
		assert.Equal(t, session.StateIdle, h.session.State())
	})
}

func TestSession_SwitchBoards(t *testing.T) {
	t.Parallel()

	h := newHarness(t, identityFunc(signedIn))
	h.enter(t, "board-1", sticky("a"))

	res := h.board.ApplyLocal(domain.Move{ObjectID: "a", X: 50, Y: 60})
	require.True(t, res.OK)

	h.enter(t, "board-2", sticky("z"))

	assert.Len(t, h.remote.committed("board-1"), 1, "pending edit flushed to the old board")
	assert.Empty(t, h.remote.committed("board-2"))
	assert.Equal(t, "board-2", h.session.BoardID())
	assert.Equal(t, "board-2", h.engine.BoardID())

	objs := h.board.Objects()
	require.Len(t, objs, 1)
	assert.Equal(t, "z", objs[0].ID)
}

func TestSession_SwitchBoardsDropsUndoHistory(t *testing.T) {
	t.Parallel()

	h := newHarness(t, identityFunc(signedIn))
	h.enter(t, "board-1")

	res := h.board.ApplyLocal(domain.CreateSticky{X: 10, Y: 10})
	require.True(t, res.OK)
	require.True(t, h.board.CanUndo())

	require.NoError(t, h.session.Leave(context.Background()))
	h.enter(t, "board-2", sticky("peer-obj"))

	assert.False(t, h.board.CanUndo())
	assert.False(t, h.board.Undo())
	assert.Len(t, h.board.Objects(), 1)

	require.NoError(t, h.engine.Flush(context.Background()))
	assert.Empty(t, h.remote.committed("board-2"))
}

func TestSession_EnterWaitsForPendingLeave(t *testing.T) {
	t.Parallel()

	h := newHarness(t, identityFunc(signedIn))
	h.enter(t, "board-1", sticky("a"))

	flushing := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.remote.commitFunc = func(boardID string) {
		if boardID != "board-1" {
			return
		}
		once.Do(func() { close(flushing) })
		<-release
	}

	require.True(t, h.board.ApplyLocal(domain.UpdateText{ObjectID: "a", Text: "late"}).OK)

	leaveErr := make(chan error, 1)
	go func() { leaveErr <- h.session.Leave(context.Background()) }()

	select {
	case <-flushing:
	case <-time.After(wait):
		t.Fatal("leave did not flush")
	}
	assert.Equal(t, session.StateLeaving, h.session.State())

	enterErr := make(chan error, 1)
	go func() { enterErr <- h.session.Enter(context.Background(), "board-2") }()

	select {
	case f := <-h.remote.feeds:
		t.Fatalf("subscribed to %s while leave was in flight", f.boardID)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)

	select {
	case err := <-leaveErr:
		require.NoError(t, err)
	case <-time.After(wait):
		t.Fatal("leave did not return")
	}

	assert.Equal(t, "board-2", h.remote.serve(t, sticky("z")))

	select {
	case err := <-enterErr:
		require.NoError(t, err)
	case <-time.After(wait):
		t.Fatal("enter did not return")
	}

	assert.Equal(t, session.StateActive, h.session.State())
	assert.Equal(t, "board-2", h.session.BoardID())
	assert.Equal(t, "board-2", h.engine.BoardID())
	assert.Equal(t, syncer.StatusConnected, h.engine.Status())
	assert.Equal(t, []string{"board-1"}, h.remote.closed())
	assert.Len(t, h.remote.committed("board-1"), 1)

	objs := h.board.Objects()
	require.Len(t, objs, 1)
	assert.Equal(t, "z", objs[0].ID)
}
