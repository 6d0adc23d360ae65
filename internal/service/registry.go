package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"filelinker/internal/model"
	"filelinker/internal/repository"
)

var (
	ErrNotFound      = errors.New("file not found")
	ErrCodeExhausted = errors.New("could not issue a unique code")
	ErrInvalidUserID = errors.New("invalid user id")
)

const (
	// CodeLength is the length of issued share codes.
	CodeLength      = 8
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxCodeAttempts = 5
	maxCodeLength   = 64
)

var tracer = otel.Tracer("filelinker/service")

// IssueCode returns CodeLength characters drawn uniformly from [A-Za-z0-9].
func IssueCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, CodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// validCode accepts issued codes as well as legacy ones with '-' or '_'.
func validCode(code string) bool {
	if code == "" || len(code) > maxCodeLength {
		return false
	}
	for _, c := range code {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// Registry issues share codes and owns all durable state: files, batch groups and the ban list.
type Registry struct {
	files   repository.FileRepository
	batches repository.BatchRepository
	bans    repository.BanRepository
	tx      repository.Transactor
	logger  *log.Logger

	newCode func() (string, error)
	now     func() time.Time
}

// NewRegistry constructs a Registry.
func NewRegistry(
	files repository.FileRepository,
	batches repository.BatchRepository,
	bans repository.BanRepository,
	tx repository.Transactor,
	logger *log.Logger,
) *Registry {
	return &Registry{
		files:   files,
		batches: batches,
		bans:    bans,
		tx:      tx,
		logger:  logger.With("component", "registry"),
		newCode: IssueCode,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// withFreshCode calls insert with newly issued codes until one is accepted.
// Only repository.ErrCodeTaken is retried.
func (r *Registry) withFreshCode(insert func(code string) error) error {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return fmt.Errorf("issue code: %w", err)
		}
		err = insert(code)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrCodeTaken) {
			return err
		}
		codeRetriesTotal.Inc()
		r.logger.Warn("code_collision", "attempt", attempt)
	}
	return ErrCodeExhausted
}

// SaveFile persists an archived upload under a new code. batchID is nil for standalone files.
func (r *Registry) SaveFile(ctx context.Context, up model.Upload, uploadedBy int64, batchID *string) (*model.FileRecord, error) {
	var stored *model.FileRecord
	err := r.withFreshCode(func(code string) error {
		rec := &model.FileRecord{
			Code:             code,
			FileHandle:       up.FileHandle,
			DisplayName:      up.DisplayName,
			Kind:             up.Kind,
			ArchiveMessageID: up.ArchiveMessageID,
			UploadedBy:       uploadedBy,
			UploadedAt:       r.now(),
			BatchID:          batchID,
		}
		var err error
		stored, err = r.files.Create(ctx, rec)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save file: %w", err)
	}
	return stored, nil
}

// CreateBatchGroup persists an empty group under a new batch id.
func (r *Registry) CreateBatchGroup(ctx context.Context, name string, createdBy int64) (*model.BatchGroup, error) {
	var stored *model.BatchGroup
	err := r.withFreshCode(func(code string) error {
		var err error
		stored, err = r.batches.Create(ctx, &model.BatchGroup{
			BatchID:   code,
			Name:      name,
			CreatedBy: createdBy,
			CreatedAt: r.now(),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create batch group: %w", err)
	}
	return stored, nil
}

// CommitBatch creates a group and one record per upload, in order, inside one transaction.
func (r *Registry) CommitBatch(ctx context.Context, name string, createdBy int64, uploads []model.Upload) (*model.BatchGroup, []model.FileRecord, error) {
	ctx, span := tracer.Start(ctx, "registry.CommitBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(uploads)))

	if len(uploads) == 0 {
		return nil, nil, ErrEmptyBatch
	}

	var (
		group   *model.BatchGroup
		members []model.FileRecord
	)
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		g, err := r.CreateBatchGroup(ctx, name, createdBy)
		if err != nil {
			return err
		}
		recs := make([]model.FileRecord, 0, len(uploads))
		for _, up := range uploads {
			batchID := g.BatchID
			rec, err := r.SaveFile(ctx, up, createdBy, &batchID)
			if err != nil {
				return err
			}
			recs = append(recs, *rec)
		}
		group, members = g, recs
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit batch failed")
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("batch.id", group.BatchID))
	return group, members, nil
}

// LookupSingle returns the file with the given code.
func (r *Registry) LookupSingle(ctx context.Context, code string) (*model.FileRecord, error) {
	if !validCode(code) {
		return nil, ErrNotFound
	}
	rec, err := r.files.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// LookupBatch returns the members of batch code in upload order, or an empty slice.
func (r *Registry) LookupBatch(ctx context.Context, code string) ([]model.FileRecord, error) {
	if !validCode(code) {
		return []model.FileRecord{}, nil
	}
	return r.files.ListByBatch(ctx, code)
}

// Resolve decides once what code points at: standalone files are checked before batches.
func (r *Registry) Resolve(ctx context.Context, code string) (model.Resolved, error) {
	res := model.Resolved{Kind: model.ResolvedNotFound, Code: code}

	rec, err := r.LookupSingle(ctx, code)
	switch {
	case err == nil:
		res.Kind = model.ResolvedSingle
		res.Files = []model.FileRecord{*rec}
		return res, nil
	case !errors.Is(err, ErrNotFound):
		return res, fmt.Errorf("lookup file: %w", err)
	}

	members, err := r.LookupBatch(ctx, code)
	if err != nil {
		return res, fmt.Errorf("lookup batch: %w", err)
	}
	if len(members) > 0 {
		res.Kind = model.ResolvedBatch
		res.Files = members
	}
	return res, nil
}

// Ban records userID as banned by admin. Re-banning replaces the previous row.
func (r *Registry) Ban(ctx context.Context, userID, by int64) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	return r.bans.Upsert(ctx, &model.BannedUser{UserID: userID, BannedBy: by, BannedAt: r.now()})
}

// Unban removes userID from the ban list. Unbanning a user who is not banned is not an error.
func (r *Registry) Unban(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidUserID
	}
	return r.bans.Delete(ctx, userID)
}

// IsBanned reports whether userID is on the ban list.
func (r *Registry) IsBanned(ctx context.Context, userID int64) (bool, error) {
	return r.bans.Exists(ctx, userID)
}

// Stats returns registry totals.
func (r *Registry) Stats(ctx context.Context) (model.Stats, error) {
	var (
		s   model.Stats
		err error
	)
	if s.Files, err = r.files.Count(ctx); err != nil {
		return s, fmt.Errorf("count files: %w", err)
	}
	if s.Banned, err = r.bans.Count(ctx); err != nil {
		return s, fmt.Errorf("count banned users: %w", err)
	}
	if s.Batches, err = r.batches.Count(ctx); err != nil {
		return s, fmt.Errorf("count batch groups: %w", err)
	}
	return s, nil
}
