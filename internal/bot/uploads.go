package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"filelinker/internal/service"
)

// attachmentOf extracts the uploaded file from m. Photos use the largest size.
func attachmentOf(m *tgbotapi.Message) (service.Attachment, bool) {
	switch {
	case m.Document != nil:
		d := m.Document
		return service.Attachment{Kind: service.AttachmentDocument, FileID: d.FileID, UniqueID: d.FileUniqueID, FileName: d.FileName, MimeType: d.MimeType}, true
	case len(m.Photo) > 0:
		p := m.Photo[len(m.Photo)-1]
		return service.Attachment{Kind: service.AttachmentPhoto, FileID: p.FileID, UniqueID: p.FileUniqueID}, true
	case m.Video != nil:
		v := m.Video
		return service.Attachment{Kind: service.AttachmentVideo, FileID: v.FileID, UniqueID: v.FileUniqueID, FileName: v.FileName, MimeType: v.MimeType}, true
	case m.Audio != nil:
		a := m.Audio
		return service.Attachment{Kind: service.AttachmentAudio, FileID: a.FileID, UniqueID: a.FileUniqueID, FileName: a.FileName, MimeType: a.MimeType}, true
	}
	return service.Attachment{}, false
}

func (b *Bot) handleUpload(ctx context.Context, m *tgbotapi.Message, att service.Attachment) {
	if !b.access.IsAdmin(m.From.ID) {
		b.logAction(m.From, "unauthorized_upload", "kind", string(att.Kind))
		b.reply(ctx, m.Chat.ID, msgNotAdmin)
		return
	}
	b.logAction(m.From, string(att.Kind)+"_upload")

	if b.sessions.Active(m.From.ID) {
		res, err := b.uploads.Archive(ctx, m.From.ID, m.Chat.ID, m.MessageID, att)
		if err != nil {
			b.logger.Error("batch_add_failed", "user_id", m.From.ID, "err", err)
			b.reply(ctx, m.Chat.ID, msgError)
			return
		}
		if res.Batched {
			b.reply(ctx, m.Chat.ID, addedToBatchText(res.BatchSize))
		} else {
			b.reply(ctx, m.Chat.ID, fileUploadedText(res.Link))
		}
		return
	}

	progressID, err := b.msgr.SendText(ctx, m.Chat.ID, msgProcessing, nil)
	if err != nil {
		b.logger.Error("send_failed", "chat_id", m.Chat.ID, "err", err)
	}
	text := msgError
	res, err := b.uploads.Archive(ctx, m.From.ID, m.Chat.ID, m.MessageID, att)
	if err != nil {
		b.logger.Error("upload_failed", "user_id", m.From.ID, "message_id", m.MessageID, "err", err)
	} else {
		text = fileUploadedText(res.Link)
		b.logAction(m.From, string(att.Kind)+"_uploaded", "code", res.Record.Code)
	}
	b.finish(ctx, m.Chat.ID, progressID, text)
}

// finish edits the progress message into text, or sends text when there is no progress message.
func (b *Bot) finish(ctx context.Context, chatID int64, progressID int, text string) {
	if progressID != 0 {
		err := b.msgr.EditText(ctx, chatID, progressID, text)
		if err == nil {
			return
		}
		b.logger.Warn("edit_failed", "chat_id", chatID, "message_id", progressID, "err", err)
	}
	b.reply(ctx, chatID, text)
}
