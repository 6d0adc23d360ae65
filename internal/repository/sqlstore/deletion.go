package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"filelinker/internal/model"
	"filelinker/internal/repository"
)

// DeletionStore is the SQL implementation of repository.DeletionRepository.
// Message ids are stored as a JSON array in a text column.
type DeletionStore struct {
	db *sql.DB
}

// NewDeletionStore creates a new DeletionStore repository.
func NewDeletionStore(db *sql.DB) *DeletionStore {
	return &DeletionStore{db: db}
}

var _ repository.DeletionRepository = (*DeletionStore)(nil)

// Create persists a pending deletion job.
func (r *DeletionStore) Create(ctx context.Context, d *model.PendingDeletion) error {
	ids, err := json.Marshal(d.MessageIDs)
	if err != nil {
		return fmt.Errorf("encode message ids: %w", err)
	}
	const q = `
		INSERT INTO pending_deletions (id, chat_id, message_ids, fire_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = conn(ctx, r.db).ExecContext(ctx, q, d.ID, d.ChatID, string(ids), d.FireAt.UTC(), d.CreatedAt.UTC())
	return err
}

// ListDue returns jobs whose fire time has passed, oldest first.
func (r *DeletionStore) ListDue(ctx context.Context, now time.Time, limit int) ([]model.PendingDeletion, error) {
	const q = `
		SELECT id, chat_id, message_ids, fire_at, created_at
		FROM pending_deletions
		WHERE fire_at <= $1
		ORDER BY fire_at ASC
		LIMIT $2
	`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.PendingDeletion, 0)
	for rows.Next() {
		var (
			d   model.PendingDeletion
			ids string
		)
		if err := rows.Scan(&d.ID, &d.ChatID, &ids, &d.FireAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &d.MessageIDs); err != nil {
			return nil, fmt.Errorf("decode message ids of job %s: %w", d.ID, err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a job. It does not return an error if the row does not exist.
func (r *DeletionStore) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM pending_deletions WHERE id = $1`
	_, err := conn(ctx, r.db).ExecContext(ctx, q, id)
	return err
}
