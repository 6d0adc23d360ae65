package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/log"

	"filelinker/internal/model"
)

// AttachmentKind is the content type of an admin upload.
type AttachmentKind string

const (
	AttachmentDocument AttachmentKind = "document"
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentAudio    AttachmentKind = "audio"
)

// Attachment is the file carried by an incoming message, as reported by the platform.
// For photos it is the largest available size.
type Attachment struct {
	Kind     AttachmentKind
	FileID   string
	UniqueID string
	FileName string
	MimeType string
}

var mimeByExt = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"mp4":  "video/mp4",
	"mp3":  "audio/mpeg",
	"zip":  "application/zip",
	"rar":  "application/x-rar-compressed",
}

// DisplayName infers the name shown for an attachment.
func (a Attachment) DisplayName() string {
	switch a.Kind {
	case AttachmentPhoto:
		return "photo_" + a.UniqueID + ".jpg"
	case AttachmentVideo:
		if a.FileName == "" {
			return "video_" + a.UniqueID + ".mp4"
		}
	case AttachmentAudio:
		if a.FileName == "" {
			return "audio_" + a.UniqueID + ".mp3"
		}
	}
	if a.FileName == "" {
		return "Unknown"
	}
	return a.FileName
}

// MimeOrKind prefers the platform mime type, then the file extension, then "unknown".
func (a Attachment) MimeOrKind() string {
	if a.Kind == AttachmentPhoto {
		return "image/jpeg"
	}
	if a.MimeType != "" {
		return a.MimeType
	}
	if a.FileName == "" {
		return "unknown"
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(a.FileName), "."))
	if m, ok := mimeByExt[ext]; ok {
		return m
	}
	return "application/octet-stream"
}

// UploadResult is what the admin is told after an upload or batch commit.
// Link is empty while a file is only staged in a batch.
type UploadResult struct {
	Batched   bool
	BatchSize int
	Record    *model.FileRecord
	Group     *model.BatchGroup
	Files     []model.FileRecord
	Link      string
}

// UploadService archives admin uploads and turns them into share codes.
type UploadService struct {
	registry  *Registry
	sessions  *SessionStore
	copier    Copier
	backup    *Backup
	archiveID int64
	linkHost  string
	botHandle func() string
	logger    *log.Logger
}

// NewUploadService wires the upload workflow. botHandle is resolved lazily because
// the platform reports it only after authentication.
func NewUploadService(
	registry *Registry,
	sessions *SessionStore,
	copier Copier,
	backup *Backup,
	archiveID int64,
	linkHost string,
	botHandle func() string,
	logger *log.Logger,
) *UploadService {
	return &UploadService{
		registry:  registry,
		sessions:  sessions,
		copier:    copier,
		backup:    backup,
		archiveID: archiveID,
		linkHost:  linkHost,
		botHandle: botHandle,
		logger:    logger.With("component", "upload"),
	}
}

// Link builds the share link for code.
func (s *UploadService) Link(code string) string {
	return ShareLink(s.linkHost, s.botHandle(), code)
}

// Archive copies the admin's message into the storage channel. With a batch
// session open the file is staged; otherwise it is saved and linked at once.
func (s *UploadService) Archive(ctx context.Context, adminID, chatID int64, messageID int, att Attachment) (UploadResult, error) {
	archived, err := s.copier.CopyMessage(ctx, s.archiveID, chatID, messageID)
	if err != nil {
		return UploadResult{}, fmt.Errorf("copy to storage channel: %w", err)
	}
	up := model.Upload{
		FileHandle:       att.FileID,
		DisplayName:      att.DisplayName(),
		Kind:             att.MimeOrKind(),
		ArchiveMessageID: archived,
	}
	logger := s.logger.With("user_id", adminID, "file", up.DisplayName)

	if s.sessions.Active(adminID) {
		n, err := s.sessions.Add(adminID, up)
		if err == nil {
			uploadsTotal.WithLabelValues("batch").Inc()
			logger.Info("batch_file_added", "batch_size", n)
			return UploadResult{Batched: true, BatchSize: n}, nil
		}
		logger.Warn("batch_closed_during_upload", "err", err)
	}

	rec, err := s.registry.SaveFile(ctx, up, adminID, nil)
	if err != nil {
		return UploadResult{}, err
	}
	uploadsTotal.WithLabelValues("single").Inc()
	if err := s.backup.SaveRecord(ctx, *rec); err != nil {
		logger.Error("backup_failed", "code", rec.Code, "err", err)
	}
	logger.Info("file_uploaded", "code", rec.Code)
	return UploadResult{Record: rec, Link: s.Link(rec.Code)}, nil
}

// EndBatch commits adminID's session as one batch group.
// ErrNoSession and ErrEmptyBatch are returned without touching the registry.
func (s *UploadService) EndBatch(ctx context.Context, adminID int64) (UploadResult, error) {
	var res UploadResult
	err := s.sessions.Commit(adminID, func(files []model.Upload) error {
		name := fmt.Sprintf("Batch_%d_files", len(files))
		group, members, err := s.registry.CommitBatch(ctx, name, adminID, files)
		if err != nil {
			return err
		}
		res = UploadResult{Group: group, Files: members, BatchSize: len(members), Link: s.Link(group.BatchID)}
		return nil
	})
	if err != nil {
		return UploadResult{}, err
	}
	if err := s.backup.SaveBatch(ctx, *res.Group, res.Files); err != nil {
		s.logger.Error("backup_failed", "code", res.Group.BatchID, "err", err)
	}
	s.logger.Info("batch_committed", "user_id", adminID, "code", res.Group.BatchID, "files", res.BatchSize)
	return res, nil
}
