package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"filelinker/internal/model"
	"filelinker/internal/repository"
)

// FileStore is the SQL implementation of repository.FileRepository.
type FileStore struct {
	db *sql.DB
}

// NewFileStore creates a new FileStore repository.
func NewFileStore(db *sql.DB) *FileStore {
	return &FileStore{db: db}
}

var _ repository.FileRepository = (*FileStore)(nil)

const fileColumns = `id, code, file_handle, display_name, kind, archive_message_id, uploaded_by, uploaded_at, batch_id`

// Create inserts a new file row. A code held by another file or by a batch group yields repository.ErrCodeTaken.
func (r *FileStore) Create(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error) {
	q := conn(ctx, r.db)

	taken, err := codeInUse(ctx, q, rec.Code)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, repository.ErrCodeTaken
	}

	const qInsert = `
		INSERT INTO files (code, file_handle, display_name, kind, archive_message_id, uploaded_by, uploaded_at, batch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO NOTHING
		RETURNING ` + fileColumns

	var batchID sql.NullString
	if rec.BatchID != nil {
		batchID = sql.NullString{String: *rec.BatchID, Valid: true}
	}

	row := q.QueryRowContext(ctx, qInsert,
		rec.Code,
		rec.FileHandle,
		rec.DisplayName,
		rec.Kind,
		rec.ArchiveMessageID,
		rec.UploadedBy,
		rec.UploadedAt,
		batchID,
	)
	out, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return nil, repository.ErrCodeTaken
		}
		return nil, err
	}
	return out, nil
}

// FindByCode fetches a single file by its code.
func (r *FileStore) FindByCode(ctx context.Context, code string) (*model.FileRecord, error) {
	const qFind = `SELECT ` + fileColumns + ` FROM files WHERE code = $1`
	return scanFile(conn(ctx, r.db).QueryRowContext(ctx, qFind, code))
}

// ListByBatch returns batch members ordered by insertion.
func (r *FileStore) ListByBatch(ctx context.Context, batchID string) ([]model.FileRecord, error) {
	const qList = `SELECT ` + fileColumns + ` FROM files WHERE batch_id = $1 ORDER BY id ASC`
	rows, err := conn(ctx, r.db).QueryContext(ctx, qList, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.FileRecord, 0)
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Count returns the number of file rows.
func (r *FileStore) Count(ctx context.Context) (int, error) {
	return count(ctx, conn(ctx, r.db), `SELECT COUNT(*) FROM files`)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*model.FileRecord, error) {
	var (
		rec     model.FileRecord
		batchID sql.NullString
	)
	if err := s.Scan(
		&rec.ID,
		&rec.Code,
		&rec.FileHandle,
		&rec.DisplayName,
		&rec.Kind,
		&rec.ArchiveMessageID,
		&rec.UploadedBy,
		&rec.UploadedAt,
		&batchID,
	); err != nil {
		return nil, err
	}
	if batchID.Valid {
		id := batchID.String
		rec.BatchID = &id
	}
	return &rec, nil
}
