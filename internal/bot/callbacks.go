package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	if err := b.msgr.AnswerCallback(ctx, q.ID); err != nil {
		b.logger.Warn("answer_callback_failed", "callback_id", q.ID, "err", err)
	}

	code, ok := strings.CutPrefix(q.Data, retryPrefix)
	if !ok || code == "" {
		return
	}
	chatID := q.From.ID
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}
	b.logAction(q.From, "retry", "code", code)
	b.deliver(ctx, code, q.From.ID, chatID)
}
