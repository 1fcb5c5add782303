// Package remote implements the sync engine's Remote over the boardsync
// HTTP API and its WebSocket change feed.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/api/ws"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/syncer"
)

// DefaultBatchLimit matches the server's default commit limit.
const DefaultBatchLimit = 500

var ErrBatchTooLarge = errors.New("remote: batch too large") //nolint:gochecknoglobals // sentinel error

// Client talks to one boardsync server on behalf of one bearer token.
type Client struct {
	baseURL    string
	token      string
	batchLimit int
	http       *http.Client
}

var _ syncer.Remote = (*Client)(nil)

// NewClient creates a client for the server at baseURL (http or https).
func NewClient(baseURL, token string, batchLimit int, httpClient *http.Client) *Client {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		batchLimit: batchLimit,
		http:       httpClient,
	}
}

func (c *Client) MaxBatch() int { return c.batchLimit }

type writeBody struct {
	ObjectID string         `json:"objectId"`
	Data     *domain.Object `json:"data,omitempty"`
}

type commitBody struct {
	Writes []writeBody `json:"writes"`
}

// Commit posts writes as one atomic batch.
func (c *Client) Commit(ctx context.Context, boardID string, writes []domain.Write) error {
	body := commitBody{Writes: make([]writeBody, len(writes))}
	for i, w := range writes {
		body.Writes[i] = writeBody{ObjectID: w.ObjectID, Data: w.Data}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("remote.Client.Commit: encode: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/boards/" + url.PathEscape(boardID) + "/commits"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("remote.Client.Commit: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote.Client.Commit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote.Client.Commit: %w", responseError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Subscribe dials the board's change feed. Frames are relayed as
// deliveries until the socket fails, which is reported as a final delivery
// carrying the error.
func (c *Client) Subscribe(ctx context.Context, boardID string) (<-chan syncer.Delivery, func(), error) {
	feedURL, err := c.feedURL(boardID)
	if err != nil {
		return nil, nil, fmt.Errorf("remote.Client.Subscribe: %w", err)
	}

	header := http.Header{}
	c.authorize(header)

	conn, resp, err := websocket.Dial(ctx, feedURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if statusErr := statusError(resp.StatusCode); statusErr != nil {
				return nil, nil, fmt.Errorf("remote.Client.Subscribe: %w", statusErr)
			}
		}
		return nil, nil, fmt.Errorf("remote.Client.Subscribe: dial: %w", err)
	}
	// Snapshots of large boards exceed the 32 KiB default.
	conn.SetReadLimit(64 << 20)

	readCtx, cancel := context.WithCancel(ctx)
	out := make(chan syncer.Delivery, 16)

	go func() {
		defer close(out)
		defer conn.CloseNow()

		for {
			var f ws.Frame
			if err := wsjson.Read(readCtx, conn, &f); err != nil {
				if readCtx.Err() == nil {
					log.Debug().Err(err).Str("board_id", boardID).Msg("remote: feed read failed")
					send(readCtx, out, syncer.Delivery{Err: fmt.Errorf("remote: feed: %w", err)})
				}
				return
			}

			if f.Code != 0 {
				send(readCtx, out, syncer.Delivery{Err: ws.FrameError(f)})
				return
			}
			if !send(readCtx, out, syncer.Delivery{Snapshot: f.Snapshot, Events: f.Events}) {
				return
			}
		}
	}()

	cleanup := func() {
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "unsubscribed")
	}
	return out, cleanup, nil
}

func send(ctx context.Context, out chan<- syncer.Delivery, d syncer.Delivery) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) feedURL(boardID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/boards/" + url.PathEscape(boardID)
	return u.String(), nil
}

// statusError maps the statuses the engine treats specially to domain
// errors; it returns nil for the rest.
func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return domain.ErrUnauthenticated
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusRequestEntityTooLarge:
		return ErrBatchTooLarge
	}
	return nil
}

type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func responseError(resp *http.Response) error {
	if err := statusError(resp.StatusCode); err != nil {
		return err
	}

	var p problem
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &p) == nil && p.Detail != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, p.Detail)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
