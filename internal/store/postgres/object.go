package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

// ObjectRepo stores each board object as one JSONB document keyed by
// (board_id, object_id). Rows keep their insertion sequence across updates,
// so snapshots list objects in creation order.
type ObjectRepo struct {
	pool *pgxpool.Pool
}

func NewObjectRepo(pool *pgxpool.Pool) *ObjectRepo {
	return &ObjectRepo{pool: pool}
}

const upsertObjectSQL = `INSERT INTO board_objects (board_id, object_id, data, updated_by, updated_at)
	 VALUES ($1, $2, $3, $4, now())
	 ON CONFLICT (board_id, object_id)
	 DO UPDATE SET data = EXCLUDED.data, updated_by = EXCLUDED.updated_by, updated_at = now()
	 RETURNING (xmax = 0) AS inserted`

const deleteObjectSQL = `DELETE FROM board_objects WHERE board_id = $1 AND object_id = $2`

func (r *ObjectRepo) List(ctx context.Context, boardID string) ([]*domain.Object, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT object_id, data FROM board_objects WHERE board_id = $1 ORDER BY seq`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("objectRepo.List: %w", err)
	}
	defer rows.Close()

	objs := []*domain.Object{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err = rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("objectRepo.List: scan: %w", err)
		}
		o, decErr := DecodeDocument(id, data)
		if decErr != nil {
			return nil, fmt.Errorf("objectRepo.List: %w", decErr)
		}
		objs = append(objs, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("objectRepo.List: rows: %w", err)
	}

	return objs, nil
}

func (r *ObjectRepo) Get(ctx context.Context, boardID, objectID string) (*domain.Object, error) {
	var data []byte

	err := r.pool.QueryRow(ctx,
		`SELECT data FROM board_objects WHERE board_id = $1 AND object_id = $2`,
		boardID, objectID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("objectRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("objectRepo.Get: %w", err)
	}

	o, err := DecodeDocument(objectID, data)
	if err != nil {
		return nil, fmt.Errorf("objectRepo.Get: %w", err)
	}
	return o, nil
}

// Apply performs writes atomically in one transaction and returns one
// change event per write, in order. Each document's updatedAt is set to
// nowMillis.
func (r *ObjectRepo) Apply(ctx context.Context, boardID, actorID string, writes []domain.Write, nowMillis int64) ([]domain.SyncEvent, error) {
	events := make([]domain.SyncEvent, len(writes))
	batch := &pgx.Batch{}

	for i, w := range writes {
		if w.IsDelete() {
			batch.Queue(deleteObjectSQL, boardID, w.ObjectID)
			events[i] = domain.SyncEvent{Type: domain.EventRemoved, ObjectID: w.ObjectID}
			continue
		}

		doc := w.Data.Clone()
		doc.ID = w.ObjectID
		doc.UpdatedAt = nowMillis
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("objectRepo.Apply: encode %s: %w", w.ObjectID, err)
		}
		batch.Queue(upsertObjectSQL, boardID, w.ObjectID, data, actorID)
		events[i] = domain.SyncEvent{ObjectID: w.ObjectID, Data: doc}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("objectRepo.Apply: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op after commit

	br := tx.SendBatch(ctx, batch)
	for i := range writes {
		if events[i].Type == domain.EventRemoved {
			if _, err = br.Exec(); err != nil {
				_ = br.Close()
				return nil, fmt.Errorf("objectRepo.Apply: delete %s: %w", writes[i].ObjectID, err)
			}
			continue
		}

		var inserted bool
		if err = br.QueryRow().Scan(&inserted); err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("objectRepo.Apply: upsert %s: %w", writes[i].ObjectID, err)
		}
		events[i].Type = domain.EventModified
		if inserted {
			events[i].Type = domain.EventAdded
		}
	}
	if err = br.Close(); err != nil {
		return nil, fmt.Errorf("objectRepo.Apply: batch: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("objectRepo.Apply: commit: %w", err)
	}

	return events, nil
}

// Delete removes one document. It reports whether a row existed.
func (r *ObjectRepo) Delete(ctx context.Context, boardID, objectID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, deleteObjectSQL, boardID, objectID)
	if err != nil {
		return false, fmt.Errorf("objectRepo.Delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DecodeDocument parses a stored document. The row key wins over any id
// inside the document.
func DecodeDocument(objectID string, data []byte) (*domain.Object, error) {
	var o domain.Object
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode %s: %w", objectID, err)
	}
	o.ID = objectID
	return &o, nil
}
