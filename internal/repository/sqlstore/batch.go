package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"filelinker/internal/model"
	"filelinker/internal/repository"
)

// BatchStore is the SQL implementation of repository.BatchRepository.
type BatchStore struct {
	db *sql.DB
}

// NewBatchStore creates a new BatchStore repository.
func NewBatchStore(db *sql.DB) *BatchStore {
	return &BatchStore{db: db}
}

var _ repository.BatchRepository = (*BatchStore)(nil)

// Create inserts a batch group row.
func (r *BatchStore) Create(ctx context.Context, g *model.BatchGroup) (*model.BatchGroup, error) {
	q := conn(ctx, r.db)

	taken, err := codeInUse(ctx, q, g.BatchID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, repository.ErrCodeTaken
	}

	const qInsert = `
		INSERT INTO batch_groups (batch_id, name, created_by, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (batch_id) DO NOTHING
		RETURNING batch_id, name, created_by, created_at
	`
	var out model.BatchGroup
	err = q.QueryRowContext(ctx, qInsert, g.BatchID, g.Name, g.CreatedBy, g.CreatedAt).Scan(
		&out.BatchID,
		&out.Name,
		&out.CreatedBy,
		&out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return nil, repository.ErrCodeTaken
		}
		return nil, err
	}
	return &out, nil
}

// Count returns the number of batch groups.
func (r *BatchStore) Count(ctx context.Context) (int, error) {
	return count(ctx, conn(ctx, r.db), `SELECT COUNT(*) FROM batch_groups`)
}
