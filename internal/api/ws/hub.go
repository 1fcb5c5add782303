package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/syncer"
)

const writeTimeout = 10 * time.Second

// Subscriber opens a board change feed. *feed.Service satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, boardID string) (<-chan syncer.Delivery, func(), error)
}

// Hub streams board change feeds over WebSocket connections.
type Hub struct {
	feeds          Subscriber
	originPatterns []string
}

// NewHub creates a hub. originPatterns lists the cross-origin hosts allowed
// to open sockets; same-origin requests are always accepted.
func NewHub(feeds Subscriber, originPatterns []string) *Hub {
	return &Hub{feeds: feeds, originPatterns: originPatterns}
}

// ServeBoard streams the change feed of the board named by the boardID URL
// parameter: one snapshot frame, then one frame per committed batch.
func (h *Hub) ServeBoard(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")
	if boardID == "" {
		http.Error(w, "missing board id", http.StatusBadRequest)
		return
	}

	// Feeds outlive the server's write timeout; each frame gets its own.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// The socket is write-only; CloseRead handles control frames and
	// cancels ctx once the client goes away.
	ctx := conn.CloseRead(r.Context())

	deliveries, cleanup, err := h.feeds.Subscribe(ctx, boardID)
	if err != nil {
		log.Error().Err(err).Str("board_id", boardID).Msg("websocket subscribe")
		fail(ctx, conn, err)
		return
	}
	defer cleanup()

	log.Debug().Str("board_id", boardID).Msg("ws: feed opened")

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case d, ok := <-deliveries:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "feed closed")
				return
			}
			if d.Err != nil {
				fail(ctx, conn, d.Err)
				return
			}
			if err := write(ctx, conn, Frame{Snapshot: d.Snapshot, Events: d.Events}); err != nil {
				log.Debug().Err(err).Str("board_id", boardID).Msg("websocket write")
				return
			}
		}
	}
}

// fail sends a final error frame and closes the socket.
func fail(ctx context.Context, conn *websocket.Conn, err error) {
	code := StatusCode(err)
	_ = write(ctx, conn, Frame{Events: []domain.SyncEvent{}, Error: http.StatusText(code), Code: code})

	status := websocket.StatusInternalError
	if code < http.StatusInternalServerError {
		status = websocket.StatusPolicyViolation
	}
	_ = conn.Close(status, http.StatusText(code))
}

func write(ctx context.Context, conn *websocket.Conn, f Frame) error {
	if f.Events == nil {
		f.Events = []domain.SyncEvent{}
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, f)
}

// StatusCode maps a feed error to its HTTP status equivalent.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FrameError maps an error frame back to the matching domain error.
func FrameError(f Frame) error {
	switch f.Code {
	case http.StatusUnauthorized:
		return domain.ErrUnauthenticated
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return errors.New("feed error: " + f.Error)
	}
}
