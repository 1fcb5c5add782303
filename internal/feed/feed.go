// Package feed is the server side of board sync: it persists committed
// writes and fans the resulting change events out to every subscriber.
package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/clock"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/syncer"
)

// DefaultBatchLimit is the most writes a single commit accepts.
const DefaultBatchLimit = 500

var (
	ErrBatchTooLarge = errors.New("feed: batch too large") //nolint:gochecknoglobals // sentinel error
	ErrInvalidWrite  = errors.New("feed: invalid write")   //nolint:gochecknoglobals // sentinel error
)

// ObjectStore is the durable object collection.
type ObjectStore interface {
	List(ctx context.Context, boardID string) ([]*domain.Object, error)
	Apply(ctx context.Context, boardID, actorID string, writes []domain.Write, nowMillis int64) ([]domain.SyncEvent, error)
	Delete(ctx context.Context, boardID, objectID string) (bool, error)
}

// Notifier carries change events between server instances.
type Notifier interface {
	Publish(ctx context.Context, boardID string, events []domain.SyncEvent) error
	Subscribe(ctx context.Context, boardID string) (<-chan []domain.SyncEvent, func(), error)
}

// Service implements syncer.Remote on top of an ObjectStore and a Notifier.
type Service struct {
	store      ObjectStore
	notifier   Notifier
	clock      clock.Clock
	batchLimit int
}

var _ syncer.Remote = (*Service)(nil)

func NewService(store ObjectStore, notifier Notifier, clk clock.Clock, batchLimit int) *Service {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	return &Service{store: store, notifier: notifier, clock: clk, batchLimit: batchLimit}
}

func (s *Service) MaxBatch() int { return s.batchLimit }

// Snapshot returns every object on the board in creation order.
func (s *Service) Snapshot(ctx context.Context, boardID string) ([]*domain.Object, error) {
	objs, err := s.store.List(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("feed.Service.Snapshot: %w", err)
	}
	return objs, nil
}

// Subscribe listens for changes first and reads the snapshot second, so no
// commit can fall between them. Events that race the snapshot are relayed
// anyway; applying them again is harmless under last-writer-wins.
func (s *Service) Subscribe(ctx context.Context, boardID string) (<-chan syncer.Delivery, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	changes, unsubscribe, err := s.notifier.Subscribe(subCtx, boardID)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("feed.Service.Subscribe: %w", err)
	}

	objs, err := s.store.List(subCtx, boardID)
	if err != nil {
		unsubscribe()
		cancel()
		return nil, nil, fmt.Errorf("feed.Service.Subscribe: snapshot: %w", err)
	}

	snapshot := syncer.Delivery{Snapshot: true, Events: make([]domain.SyncEvent, 0, len(objs))}
	for _, o := range objs {
		snapshot.Events = append(snapshot.Events, domain.SyncEvent{Type: domain.EventAdded, ObjectID: o.ID, Data: o})
	}

	out := make(chan syncer.Delivery, 16)
	go func() {
		defer close(out)

		select {
		case out <- snapshot:
		case <-subCtx.Done():
			return
		}

		for {
			select {
			case <-subCtx.Done():
				return
			case events, ok := <-changes:
				if !ok {
					return
				}
				select {
				case out <- syncer.Delivery{Events: events}:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		cancel()
		unsubscribe()
	}
	return out, cleanup, nil
}

// Commit applies writes on behalf of the actor stored in ctx.
func (s *Service) Commit(ctx context.Context, boardID string, writes []domain.Write) error {
	actorID, _ := ActorFromContext(ctx)
	_, err := s.CommitAs(ctx, boardID, actorID, writes)
	return err
}

// CommitAs writes every entry in one transaction, stamps updatedAt, and
// publishes one event per write. A publish failure is logged, not returned:
// the writes are durable and subscribers resynchronize on reconnect.
func (s *Service) CommitAs(ctx context.Context, boardID, actorID string, writes []domain.Write) ([]domain.SyncEvent, error) {
	if len(writes) > s.batchLimit {
		return nil, fmt.Errorf("feed.Service.Commit: %d writes, limit %d: %w", len(writes), s.batchLimit, ErrBatchTooLarge)
	}
	for _, w := range writes {
		if err := validateWrite(w); err != nil {
			return nil, fmt.Errorf("feed.Service.Commit: %w", err)
		}
	}
	if len(writes) == 0 {
		return []domain.SyncEvent{}, nil
	}

	events, err := s.store.Apply(ctx, boardID, actorID, writes, clock.Millis(s.clock))
	if err != nil {
		return nil, fmt.Errorf("feed.Service.Commit: %w", err)
	}

	if err := s.notifier.Publish(ctx, boardID, events); err != nil {
		log.Warn().Err(err).Str("board_id", boardID).Int("events", len(events)).Msg("feed: publish after commit failed")
	}
	return events, nil
}

// Delete removes one object and announces the removal.
func (s *Service) Delete(ctx context.Context, boardID, objectID string) error {
	existed, err := s.store.Delete(ctx, boardID, objectID)
	if err != nil {
		return fmt.Errorf("feed.Service.Delete: %w", err)
	}
	if !existed {
		return fmt.Errorf("feed.Service.Delete: object %q: %w", objectID, domain.ErrNotFound)
	}

	ev := domain.SyncEvent{Type: domain.EventRemoved, ObjectID: objectID}
	if err := s.notifier.Publish(ctx, boardID, []domain.SyncEvent{ev}); err != nil {
		log.Warn().Err(err).Str("board_id", boardID).Str("object_id", objectID).Msg("feed: publish after delete failed")
	}
	return nil
}

func validateWrite(w domain.Write) error {
	if w.ObjectID == "" {
		return fmt.Errorf("empty object id: %w", ErrInvalidWrite)
	}
	if w.Data == nil {
		return nil
	}
	if w.Data.Props == nil || !w.Data.Type().Valid() {
		return fmt.Errorf("object %q: %w", w.ObjectID, ErrInvalidWrite)
	}
	if w.Data.ID != "" && w.Data.ID != w.ObjectID {
		return fmt.Errorf("object %q carries id %q: %w", w.ObjectID, w.Data.ID, ErrInvalidWrite)
	}
	return nil
}
