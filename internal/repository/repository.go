package repository

import (
	"context"
	"errors"
	"time"

	"filelinker/internal/model"
)

// ErrCodeTaken is returned by Create methods when the proposed code or batch id
// already exists in either the files or the batch_groups table. Callers
// regenerate the code and retry.
var ErrCodeTaken = errors.New("code already taken")

// Transactor runs fn inside a single database transaction. Repositories called
// with the ctx handed to fn take part in that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// FileRepository persists FileRecords. Persistence only; no business rules.
type FileRepository interface {
	// Create inserts a record and returns it with its row id.
	// Returns ErrCodeTaken when rec.Code is already used by a file or a batch group.
	Create(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error)

	// FindByCode returns the standalone or batched file with the given code, or sql.ErrNoRows.
	FindByCode(ctx context.Context, code string) (*model.FileRecord, error)

	// ListByBatch returns the members of a batch in insertion order.
	ListByBatch(ctx context.Context, batchID string) ([]model.FileRecord, error)

	Count(ctx context.Context) (int, error)
}

// BatchRepository persists BatchGroups.
type BatchRepository interface {
	// Create returns ErrCodeTaken when g.BatchID collides with a batch id or a file code.
	Create(ctx context.Context, g *model.BatchGroup) (*model.BatchGroup, error)

	Count(ctx context.Context) (int, error)
}

// BanRepository persists the ban list.
type BanRepository interface {
	// Upsert inserts or replaces the ban row for b.UserID.
	Upsert(ctx context.Context, b *model.BannedUser) error

	// Delete removes the ban row. Missing rows are not an error.
	Delete(ctx context.Context, userID int64) error

	Exists(ctx context.Context, userID int64) (bool, error)

	Count(ctx context.Context) (int, error)
}

// DeletionRepository persists scheduled removals of delivered messages.
type DeletionRepository interface {
	Create(ctx context.Context, d *model.PendingDeletion) error

	// ListDue returns at most limit jobs whose FireAt is not after now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.PendingDeletion, error)

	// Delete removes a job. Missing rows are not an error.
	Delete(ctx context.Context, id string) error
}
