package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"filelinker/internal/service"
)

const (
	cmdStart       = "start"
	cmdStats       = "stats"
	cmdBatchStart  = "batch_start"
	cmdBatchEnd    = "batch_end"
	cmdBatchCancel = "batch_cancel"
	cmdBan         = "ban"
	cmdUnban       = "unban"
)

var adminCommands = map[string]bool{
	cmdStats:       true,
	cmdBatchStart:  true,
	cmdBatchEnd:    true,
	cmdBatchCancel: true,
	cmdBan:         true,
	cmdUnban:       true,
}

func (b *Bot) handleCommand(ctx context.Context, m *tgbotapi.Message) {
	cmd := m.Command()
	if adminCommands[cmd] && !b.access.IsAdmin(m.From.ID) {
		b.logAction(m.From, "unauthorized_command", "command", cmd)
		b.reply(ctx, m.Chat.ID, msgNotAdmin)
		return
	}

	switch cmd {
	case cmdStart:
		b.start(ctx, m)
	case cmdStats:
		b.stats(ctx, m)
	case cmdBatchStart:
		b.batchStart(ctx, m)
	case cmdBatchEnd:
		b.batchEnd(ctx, m)
	case cmdBatchCancel:
		b.batchCancel(ctx, m)
	case cmdBan:
		b.ban(ctx, m)
	case cmdUnban:
		b.unban(ctx, m)
	}
}

func (b *Bot) start(ctx context.Context, m *tgbotapi.Message) {
	code := strings.TrimSpace(m.CommandArguments())
	if code != "" {
		if i := strings.IndexAny(code, " \t\n"); i >= 0 {
			code = code[:i]
		}
		b.logAction(m.From, "file_request", "code", code)
		b.deliver(ctx, code, m.From.ID, m.Chat.ID)
		return
	}

	banned, err := b.access.IsBanned(ctx, m.From.ID)
	if err != nil {
		b.logger.Error("ban_check_failed", "user_id", m.From.ID, "err", err)
		b.reply(ctx, m.Chat.ID, msgError)
		return
	}
	if banned {
		b.reply(ctx, m.Chat.ID, msgBanned)
		return
	}
	b.logAction(m.From, "start_command")
	b.reply(ctx, m.Chat.ID, msgWelcome)
}

func (b *Bot) stats(ctx context.Context, m *tgbotapi.Message) {
	s, err := b.registry.Stats(ctx)
	if err != nil {
		b.logger.Error("stats_failed", "err", err)
		b.reply(ctx, m.Chat.ID, msgError)
		return
	}
	b.reply(ctx, m.Chat.ID, statsText(s))
}

func (b *Bot) batchStart(ctx context.Context, m *tgbotapi.Message) {
	if err := b.sessions.Begin(m.From.ID); err != nil {
		n, _ := b.sessions.Len(m.From.ID)
		b.reply(ctx, m.Chat.ID, batchOpenText(n))
		return
	}
	b.logAction(m.From, "batch_start")
	b.reply(ctx, m.Chat.ID, msgBatchStarted)
}

func (b *Bot) batchEnd(ctx context.Context, m *tgbotapi.Message) {
	res, err := b.uploads.EndBatch(ctx, m.From.ID)
	switch {
	case errors.Is(err, service.ErrNoSession):
		b.reply(ctx, m.Chat.ID, msgNoBatch)
	case errors.Is(err, service.ErrEmptyBatch):
		b.reply(ctx, m.Chat.ID, msgBatchEmpty)
	case err != nil:
		b.logger.Error("batch_commit_failed", "user_id", m.From.ID, "err", err)
		b.reply(ctx, m.Chat.ID, msgError)
	default:
		b.logAction(m.From, "batch_end", "code", res.Group.BatchID, "files", res.BatchSize)
		b.reply(ctx, m.Chat.ID, batchUploadedText(res.BatchSize, res.Link))
	}
}

func (b *Bot) batchCancel(ctx context.Context, m *tgbotapi.Message) {
	n, err := b.sessions.Discard(m.From.ID)
	if err != nil {
		b.reply(ctx, m.Chat.ID, msgNoBatch)
		return
	}
	b.logAction(m.From, "batch_cancel", "files", n)
	b.reply(ctx, m.Chat.ID, batchCancelledText(n))
}

func (b *Bot) ban(ctx context.Context, m *tgbotapi.Message) {
	target, ok := b.targetUser(ctx, m, msgBanUsage)
	if !ok {
		return
	}
	if err := b.registry.Ban(ctx, target, m.From.ID); err != nil {
		b.logger.Error("ban_failed", "target", target, "err", err)
		b.reply(ctx, m.Chat.ID, msgError)
		return
	}
	b.logAction(m.From, "ban", "target", target)
	b.reply(ctx, m.Chat.ID, userBannedText(target))
}

func (b *Bot) unban(ctx context.Context, m *tgbotapi.Message) {
	target, ok := b.targetUser(ctx, m, msgUnbanUsage)
	if !ok {
		return
	}
	if err := b.registry.Unban(ctx, target); err != nil {
		b.logger.Error("unban_failed", "target", target, "err", err)
		b.reply(ctx, m.Chat.ID, msgError)
		return
	}
	b.logAction(m.From, "unban", "target", target)
	b.reply(ctx, m.Chat.ID, userUnbannedText(target))
}

// targetUser parses the numeric user id argument, replying with usage or an
// invalid id message when it is missing or malformed.
func (b *Bot) targetUser(ctx context.Context, m *tgbotapi.Message, usage string) (int64, bool) {
	args := strings.Fields(m.CommandArguments())
	if len(args) == 0 {
		b.reply(ctx, m.Chat.ID, usage)
		return 0, false
	}
	id, ok := parseUserID(args[0])
	if !ok {
		b.reply(ctx, m.Chat.ID, msgInvalidUser)
		return 0, false
	}
	return id, true
}

// parseUserID accepts positive numeric ids only; @usernames cannot be resolved to ids.
func parseUserID(s string) (int64, bool) {
	if strings.HasPrefix(s, "@") {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
