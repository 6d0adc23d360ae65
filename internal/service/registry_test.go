package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"filelinker/internal/logging"
	"filelinker/internal/model"
	"filelinker/internal/repository"
	"filelinker/internal/repository/memory"
	repoMocks "filelinker/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type registryMocks struct {
	files   *repoMocks.MockFileRepository
	batches *repoMocks.MockBatchRepository
	bans    *repoMocks.MockBanRepository
	tx      *repoMocks.MockTransactor
}

func newMockRegistry(codes ...string) (*Registry, registryMocks) {
	m := registryMocks{
		files:   new(repoMocks.MockFileRepository),
		batches: new(repoMocks.MockBatchRepository),
		bans:    new(repoMocks.MockBanRepository),
		tx:      new(repoMocks.MockTransactor),
	}
	r := NewRegistry(m.files, m.batches, m.bans, m.tx, logging.Discard())
	if len(codes) > 0 {
		r.newCode = sequence(codes...)
	}
	return r, m
}

func newMemoryRegistry() (*Registry, *memory.Store) {
	st := memory.New()
	return NewRegistry(st.Files(), st.Batches(), st.Bans(), st, logging.Discard()), st
}

// sequence returns a code generator that yields codes in order and then repeats the last one.
func sequence(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}

func TestIssueCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := IssueCode()
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		for _, c := range code {
			assert.Contains(t, codeAlphabet, string(c))
		}
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 195)
}

func TestValidCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"Ab12Cd34", true},
		{"a1b2c3d4", true},
		{"legacy-code_1", true},
		{"", false},
		{"has space", false},
		{"semi;colon", false},
		{"../etc", false},
		{string(make([]byte, 65)), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validCode(tt.code), "code %q", tt.code)
	}
}

func TestRegistry_SaveFile(t *testing.T) {
	ctx := context.Background()
	up := model.Upload{FileHandle: "fid", DisplayName: "a.pdf", Kind: "application/pdf", ArchiveMessageID: 10}

	tests := []struct {
		name       string
		codes      []string
		setupMocks func(m registryMocks)
		wantCode   string
		wantErr    error
		wantErrMsg string
	}{
		{
			name:  "happy path",
			codes: []string{"AAAAAAAA"},
			setupMocks: func(m registryMocks) {
				m.files.On("Create", ctx, mock.MatchedBy(func(r *model.FileRecord) bool {
					return r.Code == "AAAAAAAA" && r.FileHandle == "fid" && r.ArchiveMessageID == 10 &&
						r.UploadedBy == 7 && r.BatchID == nil && !r.UploadedAt.IsZero()
				})).Return(&model.FileRecord{ID: 1, Code: "AAAAAAAA"}, nil)
			},
			wantCode: "AAAAAAAA",
		},
		{
			name:  "collision is retried with a fresh code",
			codes: []string{"AAAAAAAA", "BBBBBBBB"},
			setupMocks: func(m registryMocks) {
				m.files.On("Create", ctx, mock.MatchedBy(func(r *model.FileRecord) bool { return r.Code == "AAAAAAAA" })).
					Return(nil, repository.ErrCodeTaken).Once()
				m.files.On("Create", ctx, mock.MatchedBy(func(r *model.FileRecord) bool { return r.Code == "BBBBBBBB" })).
					Return(&model.FileRecord{ID: 2, Code: "BBBBBBBB"}, nil).Once()
			},
			wantCode: "BBBBBBBB",
		},
		{
			name:  "gives up after repeated collisions",
			codes: []string{"AAAAAAAA"},
			setupMocks: func(m registryMocks) {
				m.files.On("Create", ctx, mock.Anything).Return(nil, repository.ErrCodeTaken).Times(maxCodeAttempts)
			},
			wantErr: ErrCodeExhausted,
		},
		{
			name:  "other errors are not retried",
			codes: []string{"AAAAAAAA"},
			setupMocks: func(m registryMocks) {
				m.files.On("Create", ctx, mock.Anything).Return(nil, errors.New("disk full")).Once()
			},
			wantErrMsg: "save file: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newMockRegistry(tt.codes...)
			tt.setupMocks(m)

			rec, err := r.SaveFile(ctx, up, 7, nil)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, rec)
			case tt.wantErrMsg != "":
				assert.EqualError(t, err, tt.wantErrMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantCode, rec.Code)
			}
			m.files.AssertExpectations(t)
		})
	}
}

func TestRegistry_LookupSingle(t *testing.T) {
	ctx := context.Background()

	t.Run("maps no rows to not found", func(t *testing.T) {
		r, m := newMockRegistry()
		m.files.On("FindByCode", ctx, "Zz99Zz99").Return(nil, sql.ErrNoRows)

		_, err := r.LookupSingle(ctx, "Zz99Zz99")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid code never reaches the repository", func(t *testing.T) {
		r, m := newMockRegistry()

		_, err := r.LookupSingle(ctx, "bad code!")
		assert.ErrorIs(t, err, ErrNotFound)
		m.files.AssertNotCalled(t, "FindByCode", mock.Anything, mock.Anything)
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		r, m := newMockRegistry()
		m.files.On("FindByCode", ctx, "Ab12Cd34").Return(nil, errors.New("conn reset"))

		_, err := r.LookupSingle(ctx, "Ab12Cd34")
		assert.EqualError(t, err, "conn reset")
	})
}

func TestRegistry_Resolve(t *testing.T) {
	ctx := context.Background()
	batchID := "BATCH001"

	tests := []struct {
		name       string
		setupMocks func(m registryMocks)
		wantKind   model.ResolvedKind
		wantFiles  int
		wantErr    bool
	}{
		{
			name: "single file wins without a batch lookup",
			setupMocks: func(m registryMocks) {
				m.files.On("FindByCode", ctx, "CODE0001").Return(&model.FileRecord{Code: "CODE0001"}, nil)
			},
			wantKind:  model.ResolvedSingle,
			wantFiles: 1,
		},
		{
			name: "falls back to batch",
			setupMocks: func(m registryMocks) {
				m.files.On("FindByCode", ctx, "CODE0001").Return(nil, sql.ErrNoRows)
				m.files.On("ListByBatch", ctx, "CODE0001").Return([]model.FileRecord{
					{Code: "F1", BatchID: &batchID}, {Code: "F2", BatchID: &batchID},
				}, nil)
			},
			wantKind:  model.ResolvedBatch,
			wantFiles: 2,
		},
		{
			name: "not found in either table",
			setupMocks: func(m registryMocks) {
				m.files.On("FindByCode", ctx, "CODE0001").Return(nil, sql.ErrNoRows)
				m.files.On("ListByBatch", ctx, "CODE0001").Return([]model.FileRecord{}, nil)
			},
			wantKind: model.ResolvedNotFound,
		},
		{
			name: "batch lookup error",
			setupMocks: func(m registryMocks) {
				m.files.On("FindByCode", ctx, "CODE0001").Return(nil, sql.ErrNoRows)
				m.files.On("ListByBatch", ctx, "CODE0001").Return(nil, errors.New("timeout"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newMockRegistry()
			tt.setupMocks(m)

			res, err := r.Resolve(ctx, "CODE0001")

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Len(t, res.Files, tt.wantFiles)
			if tt.wantKind == model.ResolvedSingle {
				m.files.AssertNotCalled(t, "ListByBatch", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestRegistry_CommitBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("empty batch creates nothing", func(t *testing.T) {
		r, m := newMockRegistry()

		_, _, err := r.CommitBatch(ctx, "Batch_0_files", 1, nil)
		assert.ErrorIs(t, err, ErrEmptyBatch)
		m.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
	})

	t.Run("transaction error is returned", func(t *testing.T) {
		r, m := newMockRegistry()
		m.tx.On("WithinTx", mock.Anything).Return(errors.New("begin failed"))

		_, _, err := r.CommitBatch(ctx, "Batch_1_files", 1, []model.Upload{{FileHandle: "a"}})
		assert.EqualError(t, err, "begin failed")
		m.batches.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("group and members share the batch id in upload order", func(t *testing.T) {
		r, _ := newMemoryRegistry()
		uploads := []model.Upload{
			{FileHandle: "f1", DisplayName: "one.jpg", ArchiveMessageID: 11},
			{FileHandle: "f2", DisplayName: "two.jpg", ArchiveMessageID: 12},
			{FileHandle: "f3", DisplayName: "three.jpg", ArchiveMessageID: 13},
		}

		group, members, err := r.CommitBatch(ctx, "Batch_3_files", 9, uploads)
		require.NoError(t, err)
		assert.Equal(t, "Batch_3_files", group.Name)
		require.Len(t, members, 3)

		listed, err := r.LookupBatch(ctx, group.BatchID)
		require.NoError(t, err)
		require.Len(t, listed, 3)
		for i, f := range listed {
			assert.Equal(t, uploads[i].FileHandle, f.FileHandle)
			require.True(t, f.InBatch())
			assert.Equal(t, group.BatchID, *f.BatchID)
		}
	})
}

func TestRegistry_CodeSpacesNeverOverlap(t *testing.T) {
	ctx := context.Background()
	r, _ := newMemoryRegistry()
	// The batch group is first offered the code the file already holds.
	r.newCode = sequence("SAMECODE", "SAMECODE", "OTHER001")

	rec, err := r.SaveFile(ctx, model.Upload{FileHandle: "f"}, 1, nil)
	require.NoError(t, err)
	group, err := r.CreateBatchGroup(ctx, "g", 1)
	require.NoError(t, err)
	assert.NotEqual(t, rec.Code, group.BatchID)

	for _, code := range []string{rec.Code, group.BatchID} {
		_, singleErr := r.LookupSingle(ctx, code)
		members, err := r.LookupBatch(ctx, code)
		require.NoError(t, err)
		assert.False(t, singleErr == nil && len(members) > 0, "code %s resolved both ways", code)
	}
}

func TestRegistry_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r, _ := newMemoryRegistry()
	up := model.Upload{FileHandle: "BQACAgUAAx", DisplayName: "report.pdf", Kind: "application/pdf", ArchiveMessageID: 42}

	saved, err := r.SaveFile(ctx, up, 100, nil)
	require.NoError(t, err)

	got, err := r.LookupSingle(ctx, saved.Code)
	require.NoError(t, err)
	assert.Equal(t, up.FileHandle, got.FileHandle)
	assert.Equal(t, up.DisplayName, got.DisplayName)
	assert.Equal(t, up.Kind, got.Kind)
	assert.Equal(t, up.ArchiveMessageID, got.ArchiveMessageID)
	assert.Equal(t, int64(100), got.UploadedBy)
	assert.False(t, got.InBatch())
}

func TestRegistry_BanIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r, _ := newMemoryRegistry()

	require.NoError(t, r.Ban(ctx, 55, 1))
	require.NoError(t, r.Ban(ctx, 55, 1))
	banned, err := r.IsBanned(ctx, 55)
	require.NoError(t, err)
	assert.True(t, banned)

	require.NoError(t, r.Unban(ctx, 55))
	require.NoError(t, r.Unban(ctx, 55))
	banned, err = r.IsBanned(ctx, 55)
	require.NoError(t, err)
	assert.False(t, banned)

	assert.ErrorIs(t, r.Ban(ctx, 0, 1), ErrInvalidUserID)
	assert.ErrorIs(t, r.Unban(ctx, -3), ErrInvalidUserID)
}

func TestRegistry_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("counts every table", func(t *testing.T) {
		r, m := newMockRegistry()
		m.files.On("Count", ctx).Return(12, nil)
		m.bans.On("Count", ctx).Return(2, nil)
		m.batches.On("Count", ctx).Return(3, nil)

		s, err := r.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.Stats{Files: 12, Banned: 2, Batches: 3}, s)
	})

	t.Run("wraps count errors", func(t *testing.T) {
		r, m := newMockRegistry()
		m.files.On("Count", ctx).Return(0, errors.New("boom"))

		_, err := r.Stats(ctx)
		assert.EqualError(t, err, "count files: boom")
	})
}
