package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
)

// PubSub fans board change events out to every server instance. Delivery
// is at-most-once; subscribers recover missed events from a fresh snapshot.
type PubSub struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

// Publish sends the events of one commit as a single message, so
// subscribers observe a commit's events together and in order.
func (ps *PubSub) Publish(ctx context.Context, boardID string, events []domain.SyncEvent) error {
	if len(events) == 0 {
		return nil
	}

	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("redis.PubSub.Publish: encode: %w", err)
	}
	if err := ps.client.Publish(ctx, BoardChannel(boardID), payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

// Subscribe returns a channel of event batches for boardID. The
// subscription is confirmed before Subscribe returns, so every batch
// published afterwards is delivered. The channel closes when ctx ends or
// the connection drops.
func (ps *PubSub) Subscribe(ctx context.Context, boardID string) (<-chan []domain.SyncEvent, func(), error) {
	sub := ps.client.Subscribe(ctx, BoardChannel(boardID))

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []domain.SyncEvent, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				events, err := DecodeEvents([]byte(msg.Payload))
				if err != nil {
					log.Warn().Err(err).Str("board_id", boardID).Msg("redis: dropping malformed change message")
					continue
				}
				select {
				case out <- events:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// DecodeEvents parses one published message.
func DecodeEvents(payload []byte) ([]domain.SyncEvent, error) {
	var events []domain.SyncEvent
	if err := json.Unmarshal(payload, &events); err != nil {
		return nil, fmt.Errorf("redis.DecodeEvents: %w", err)
	}
	return events, nil
}

// BoardChannel returns the Redis channel carrying change events for a board.
func BoardChannel(boardID string) string {
	return "board:" + boardID
}
