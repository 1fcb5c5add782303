package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/api/ws"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/remote"
	"github.com/gosuda/boardsync/internal/syncer"
)

const token = "test-token"

type subscriberFunc func(ctx context.Context, boardID string) (<-chan syncer.Delivery, func(), error)

func (f subscriberFunc) Subscribe(ctx context.Context, boardID string) (<-chan syncer.Delivery, func(), error) {
	return f(ctx, boardID)
}

type server struct {
	commit http.HandlerFunc
	feeds  subscriberFunc
}

func (s server) start(t *testing.T) *remote.Client {
	t.Helper()

	r := chi.NewRouter()
	r.Post("/api/v1/boards/{boardID}/commits", func(w http.ResponseWriter, r *http.Request) {
		s.commit(w, r)
	})
	r.Get("/ws/boards/{boardID}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if chi.URLParam(r, "boardID") == "private" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ws.NewHub(s.feeds, nil).ServeBoard(w, r)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return remote.NewClient(srv.URL, token, 0, srv.Client())
}

func recv(t *testing.T, ch <-chan syncer.Delivery) syncer.Delivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "feed closed early")
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery")
		return syncer.Delivery{}
	}
}

func TestClient_Commit(t *testing.T) {
	t.Parallel()

	var got struct {
		Writes []map[string]json.RawMessage `json:"writes"`
	}
	c := server{commit: func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		assert.Equal(t, "board-1", chi.URLParam(r, "boardID"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"events":[]}`))
	}}.start(t)

	err := c.Commit(context.Background(), "board-1", []domain.Write{
		{ObjectID: "a", Data: &domain.Object{ID: "a", Width: 1, Height: 1, Props: &domain.Circle{Fill: "#000"}}},
		{ObjectID: "b"},
	})
	require.NoError(t, err)

	require.Len(t, got.Writes, 2)
	assert.JSONEq(t, `"a"`, string(got.Writes[0]["objectId"]))
	assert.Contains(t, string(got.Writes[0]["data"]), `"type":"circle"`)
	_, hasData := got.Writes[1]["data"]
	assert.False(t, hasData, "delete omits data")
}

func TestClient_CommitErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   error
		msg    string
	}{
		{name: "unauthenticated", status: http.StatusUnauthorized, want: domain.ErrUnauthenticated},
		{name: "forbidden", status: http.StatusForbidden, want: domain.ErrForbidden},
		{name: "not found", status: http.StatusNotFound, want: domain.ErrNotFound},
		{name: "too large", status: http.StatusRequestEntityTooLarge, want: remote.ErrBatchTooLarge},
		{name: "server error", status: http.StatusInternalServerError, body: `{"title":"Internal Server Error","detail":"failed to commit writes"}`, msg: "failed to commit writes"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := server{commit: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}}.start(t)

			err := c.Commit(context.Background(), "board-1", []domain.Write{{ObjectID: "a"}})
			require.Error(t, err)
			if tc.want != nil {
				require.ErrorIs(t, err, tc.want)
			}
			if tc.msg != "" {
				assert.Contains(t, err.Error(), tc.msg)
			}
		})
	}
}

func TestClient_Subscribe(t *testing.T) {
	t.Parallel()

	feed := make(chan syncer.Delivery, 4)
	c := server{feeds: func(_ context.Context, boardID string) (<-chan syncer.Delivery, func(), error) {
		assert.Equal(t, "board-1", boardID)
		return feed, func() {}, nil
	}}.start(t)

	obj := &domain.Object{ID: "a", Width: 5, Height: 5, Props: &domain.Text{Text: "t", FontSize: 16}}
	feed <- syncer.Delivery{Snapshot: true, Events: []domain.SyncEvent{{Type: domain.EventAdded, ObjectID: "a", Data: obj}}}
	feed <- syncer.Delivery{Events: []domain.SyncEvent{{Type: domain.EventModified, ObjectID: "a", Data: obj}}}

	ch, cleanup, err := c.Subscribe(context.Background(), "board-1")
	require.NoError(t, err)
	defer cleanup()

	snap := recv(t, ch)
	assert.True(t, snap.Snapshot)
	require.Len(t, snap.Events, 1)
	assert.Equal(t, domain.TypeText, snap.Events[0].Data.Type())

	next := recv(t, ch)
	assert.False(t, next.Snapshot)
	require.Len(t, next.Events, 1)
	assert.Equal(t, domain.EventModified, next.Events[0].Type)
	require.NoError(t, next.Err)
}

func TestClient_SubscribeRejected(t *testing.T) {
	t.Parallel()

	t.Run("forbidden board", func(t *testing.T) {
		t.Parallel()

		c := server{}.start(t)

		_, _, err := c.Subscribe(context.Background(), "private")
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("bad token", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		t.Cleanup(srv.Close)

		c := remote.NewClient(srv.URL, "nope", 0, nil)
		_, _, err := c.Subscribe(context.Background(), "board-1")
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	})
}

func TestClient_SubscribeFeedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error frame", func(t *testing.T) {
		t.Parallel()

		feed := make(chan syncer.Delivery, 1)
		feed <- syncer.Delivery{Err: domain.ErrNotFound}
		c := server{feeds: func(context.Context, string) (<-chan syncer.Delivery, func(), error) {
			return feed, func() {}, nil
		}}.start(t)

		ch, cleanup, err := c.Subscribe(context.Background(), "board-1")
		require.NoError(t, err)
		defer cleanup()

		d := recv(t, ch)
		require.ErrorIs(t, d.Err, domain.ErrNotFound)
	})

	t.Run("server closes feed", func(t *testing.T) {
		t.Parallel()

		feed := make(chan syncer.Delivery)
		close(feed)
		c := server{feeds: func(context.Context, string) (<-chan syncer.Delivery, func(), error) {
			return feed, func() {}, nil
		}}.start(t)

		ch, cleanup, err := c.Subscribe(context.Background(), "board-1")
		require.NoError(t, err)
		defer cleanup()

		d := recv(t, ch)
		require.Error(t, d.Err)
		assert.NotErrorIs(t, d.Err, domain.ErrNotFound)

		select {
		case _, ok := <-ch:
			assert.False(t, ok)
		case <-time.After(5 * time.Second):
			t.Fatal("feed not closed")
		}
	})
}

func TestClient_MaxBatch(t *testing.T) {
	t.Parallel()

	assert.Equal(t, remote.DefaultBatchLimit, remote.NewClient("http://x", "", 0, nil).MaxBatch())
	assert.Equal(t, 7, remote.NewClient("http://x", "", 7, nil).MaxBatch())
}
