// Package memory keeps registry state in process memory. It backs DB_DRIVER=memory
// and the workflow tests; nothing survives a restart.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"filelinker/internal/model"
	"filelinker/internal/repository"
)

// Store holds every table behind one mutex.
type Store struct {
	mu        sync.Mutex
	nextID    int64
	files     []model.FileRecord
	batches   map[string]model.BatchGroup
	bans      map[int64]model.BannedUser
	deletions map[string]model.PendingDeletion
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		batches:   make(map[string]model.BatchGroup),
		bans:      make(map[int64]model.BannedUser),
		deletions: make(map[string]model.PendingDeletion),
	}
}

// Files returns the FileRepository view of the store.
func (s *Store) Files() repository.FileRepository { return fileRepo{s} }

// Batches returns the BatchRepository view of the store.
func (s *Store) Batches() repository.BatchRepository { return batchRepo{s} }

// Bans returns the BanRepository view of the store.
func (s *Store) Bans() repository.BanRepository { return banRepo{s} }

// Deletions returns the DeletionRepository view of the store.
func (s *Store) Deletions() repository.DeletionRepository { return deletionRepo{s} }

// WithinTx calls fn directly; individual operations are already serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ repository.Transactor = (*Store)(nil)

// codeInUseLocked must be called with s.mu held.
func (s *Store) codeInUseLocked(code string) bool {
	if _, ok := s.batches[code]; ok {
		return true
	}
	for _, f := range s.files {
		if f.Code == code {
			return true
		}
	}
	return false
}

type fileRepo struct{ s *Store }

func (r fileRepo) Create(_ context.Context, rec *model.FileRecord) (*model.FileRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.codeInUseLocked(rec.Code) {
		return nil, repository.ErrCodeTaken
	}
	r.s.nextID++
	out := *rec
	out.ID = r.s.nextID
	if rec.BatchID != nil {
		id := *rec.BatchID
		out.BatchID = &id
	}
	r.s.files = append(r.s.files, out)
	return &out, nil
}

func (r fileRepo) FindByCode(_ context.Context, code string) (*model.FileRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, f := range r.s.files {
		if f.Code == code {
			out := f
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r fileRepo) ListByBatch(_ context.Context, batchID string) ([]model.FileRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	items := make([]model.FileRecord, 0)
	for _, f := range r.s.files {
		if f.BatchID != nil && *f.BatchID == batchID {
			items = append(items, f)
		}
	}
	return items, nil
}

func (r fileRepo) Count(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.files), nil
}

type batchRepo struct{ s *Store }

func (r batchRepo) Create(_ context.Context, g *model.BatchGroup) (*model.BatchGroup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.codeInUseLocked(g.BatchID) {
		return nil, repository.ErrCodeTaken
	}
	r.s.batches[g.BatchID] = *g
	out := *g
	return &out, nil
}

func (r batchRepo) Count(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.batches), nil
}

type banRepo struct{ s *Store }

func (r banRepo) Upsert(_ context.Context, b *model.BannedUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.bans[b.UserID] = *b
	return nil
}

func (r banRepo) Delete(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.bans, userID)
	return nil
}

func (r banRepo) Exists(_ context.Context, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.bans[userID]
	return ok, nil
}

func (r banRepo) Count(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.bans), nil
}

type deletionRepo struct{ s *Store }

func (r deletionRepo) Create(_ context.Context, d *model.PendingDeletion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := *d
	out.MessageIDs = append([]int(nil), d.MessageIDs...)
	r.s.deletions[d.ID] = out
	return nil
}

func (r deletionRepo) ListDue(_ context.Context, now time.Time, limit int) ([]model.PendingDeletion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	items := make([]model.PendingDeletion, 0)
	for _, d := range r.s.deletions {
		if !d.FireAt.After(now) {
			items = append(items, d)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].FireAt.Before(items[j].FireAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r deletionRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.deletions, id)
	return nil
}
