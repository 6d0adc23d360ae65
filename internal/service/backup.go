package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"filelinker/internal/model"
	"filelinker/internal/storage"
)

const manifestContentType = "application/json"

// Manifest is the JSON document written to object storage for every share code.
type Manifest struct {
	Code  string             `json:"code"`
	Kind  string             `json:"kind"`
	Batch *model.BatchGroup  `json:"batch,omitempty"`
	Files []model.FileRecord `json:"files"`
}

// Backup mirrors registry entries into object storage. A Backup with a nil store is disabled.
type Backup struct {
	store  storage.Storage
	logger *log.Logger
}

// NewBackup returns a Backup writing to store, which may be nil.
func NewBackup(store storage.Storage, logger *log.Logger) *Backup {
	return &Backup{store: store, logger: logger.With("component", "backup")}
}

// Enabled reports whether manifests are written.
func (b *Backup) Enabled() bool {
	return b != nil && b.store != nil
}

func recordKey(code string) string { return "records/" + code + ".json" }
func batchKey(id string) string    { return "batches/" + id + ".json" }

// SaveRecord writes the manifest of a standalone file.
func (b *Backup) SaveRecord(ctx context.Context, rec model.FileRecord) error {
	if !b.Enabled() {
		return nil
	}
	return b.put(ctx, recordKey(rec.Code), Manifest{
		Code:  rec.Code,
		Kind:  model.ResolvedSingle.String(),
		Files: []model.FileRecord{rec},
	})
}

// SaveBatch writes the manifest of a batch group and its members in upload order.
func (b *Backup) SaveBatch(ctx context.Context, group model.BatchGroup, files []model.FileRecord) error {
	if !b.Enabled() {
		return nil
	}
	return b.put(ctx, batchKey(group.BatchID), Manifest{
		Code:  group.BatchID,
		Kind:  model.ResolvedBatch.String(),
		Batch: &group,
		Files: files,
	})
}

// Load reads the manifest for code, trying the file key before the batch key.
func (b *Backup) Load(ctx context.Context, code string) (*Manifest, error) {
	if !b.Enabled() {
		return nil, errors.New("backup storage is not configured")
	}
	for _, key := range []string{recordKey(code), batchKey(code)} {
		m, err := b.get(ctx, key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, ErrNotFound
}

func (b *Backup) put(ctx context.Context, key string, m Manifest) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if _, err := b.store.Put(ctx, key, bytes.NewReader(body), storage.PutObjectOptions{
		Size:        int64(len(body)),
		ContentType: manifestContentType,
		Metadata:    map[string]string{"share-code": m.Code},
	}); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	b.logger.Debug("manifest_saved", "key", key, "files", len(m.Files))
	return nil
}

func (b *Backup) get(ctx context.Context, key string) (*Manifest, error) {
	rc, _, err := b.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &m, nil
}
