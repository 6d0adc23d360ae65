package sqlstore

import (
	"context"
	"database/sql"

	"filelinker/internal/model"
	"filelinker/internal/repository"
)

// BanStore is the SQL implementation of repository.BanRepository.
type BanStore struct {
	db *sql.DB
}

// NewBanStore creates a new BanStore repository.
func NewBanStore(db *sql.DB) *BanStore {
	return &BanStore{db: db}
}

var _ repository.BanRepository = (*BanStore)(nil)

// Upsert replaces any existing ban row for the user.
func (r *BanStore) Upsert(ctx context.Context, b *model.BannedUser) error {
	const q = `
		INSERT INTO banned_users (user_id, banned_by, banned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET banned_by = excluded.banned_by, banned_at = excluded.banned_at
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, q, b.UserID, b.BannedBy, b.BannedAt)
	return err
}

// Delete removes a ban row. It does not return an error if the row does not exist.
func (r *BanStore) Delete(ctx context.Context, userID int64) error {
	const q = `DELETE FROM banned_users WHERE user_id = $1`
	_, err := conn(ctx, r.db).ExecContext(ctx, q, userID)
	return err
}

// Exists reports whether the user has a ban row.
func (r *BanStore) Exists(ctx context.Context, userID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM banned_users WHERE user_id = $1)`
	var banned bool
	if err := conn(ctx, r.db).QueryRowContext(ctx, q, userID).Scan(&banned); err != nil {
		return false, err
	}
	return banned, nil
}

// Count returns the number of banned users.
func (r *BanStore) Count(ctx context.Context) (int, error) {
	return count(ctx, conn(ctx, r.db), `SELECT COUNT(*) FROM banned_users`)
}
