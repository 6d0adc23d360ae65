package bot

import (
	"context"

	"filelinker/internal/config"
	"filelinker/internal/model"
	"filelinker/internal/service"
	"filelinker/internal/telegram"
)

const (
	retryPrefix     = "retry_"
	maxCallbackData = 64
)

// deliver sends files to userID privately and reports the outcome in chatID.
func (b *Bot) deliver(ctx context.Context, code string, userID, chatID int64) {
	res := b.delivery.Deliver(ctx, code, userID)

	switch res.Outcome {
	case service.OutcomeDelivered:
		if res.Kind == model.ResolvedBatch {
			b.reply(ctx, chatID, msgBatchDelivered)
		} else {
			b.reply(ctx, chatID, msgFileDelivered)
		}
	case service.OutcomeForbidden:
		b.reply(ctx, chatID, msgBanned)
	case service.OutcomeJoinRequired:
		b.replyWithKeyboard(ctx, chatID, msgJoinRequired, joinKeyboard(res.Missing, code))
	case service.OutcomeNotFound:
		b.reply(ctx, chatID, msgFileNotFound)
	default:
		b.reply(ctx, chatID, msgError)
	}
}

// joinKeyboard lays out join buttons two per row followed by a retry button bound to code.
func joinKeyboard(missing []config.Channel, code string) telegram.Keyboard {
	var kb telegram.Keyboard
	for i := 0; i < len(missing); i += 2 {
		row := []telegram.Button{{Text: "Join " + missing[i].Name, URL: missing[i].URL}}
		if i+1 < len(missing) {
			row = append(row, telegram.Button{Text: "Join " + missing[i+1].Name, URL: missing[i+1].URL})
		}
		kb = append(kb, row)
	}
	if data := retryPrefix + code; code != "" && len(data) <= maxCallbackData {
		kb = append(kb, []telegram.Button{{Text: retryButtonText, Data: data}})
	}
	return kb
}
