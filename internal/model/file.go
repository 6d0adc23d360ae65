package model

import "time"

// FileRecord is one archived upload addressable by its share code.
// Records are never mutated after creation.
type FileRecord struct {
	ID               int64     `json:"-"`
	Code             string    `json:"code"`
	FileHandle       string    `json:"file_handle"`
	DisplayName      string    `json:"display_name"`
	Kind             string    `json:"kind"`
	ArchiveMessageID int       `json:"archive_message_id"`
	UploadedBy       int64     `json:"uploaded_by"`
	UploadedAt       time.Time `json:"uploaded_at"`
	BatchID          *string   `json:"batch_id,omitempty"`
}

// InBatch reports whether the record belongs to a batch group.
func (f FileRecord) InBatch() bool {
	return f.BatchID != nil && *f.BatchID != ""
}

// BatchGroup is a named set of FileRecords sharing one share code.
type BatchGroup struct {
	BatchID   string    `json:"batch_id"`
	Name      string    `json:"name"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// BannedUser marks a user as banned by its presence alone.
type BannedUser struct {
	UserID   int64     `json:"user_id"`
	BannedBy int64     `json:"banned_by"`
	BannedAt time.Time `json:"banned_at"`
}

// Stats holds registry totals.
type Stats struct {
	Files   int `json:"files"`
	Banned  int `json:"banned"`
	Batches int `json:"batches"`
}
