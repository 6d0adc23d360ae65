// Package bot routes chat platform updates to the registry, batch and delivery workflows.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"filelinker/internal/service"
	"filelinker/internal/telegram"
)

var tracer = otel.Tracer("filelinker/bot")

// Bot handles one update at a time. Failures are contained to the update that caused them.
type Bot struct {
	msgr     telegram.Messenger
	access   *service.AccessGate
	registry *service.Registry
	sessions *service.SessionStore
	uploads  *service.UploadService
	delivery *service.DeliveryService
	logger   *log.Logger
}

// Deps groups the collaborators of a Bot.
type Deps struct {
	Messenger telegram.Messenger
	Access    *service.AccessGate
	Registry  *service.Registry
	Sessions  *service.SessionStore
	Uploads   *service.UploadService
	Delivery  *service.DeliveryService
	Logger    *log.Logger
}

// New creates a Bot.
func New(d Deps) *Bot {
	return &Bot{
		msgr:     d.Messenger,
		access:   d.Access,
		registry: d.Registry,
		sessions: d.Sessions,
		uploads:  d.Uploads,
		delivery: d.Delivery,
		logger:   d.Logger.With("component", "bot"),
	}
}

// Run processes updates sequentially until ctx is cancelled or updates is closed.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	b.logger.Info("bot_polling_started", "username", b.msgr.Username())
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bot_polling_stopped")
			return
		case u, ok := <-updates:
			if !ok {
				b.logger.Info("bot_updates_closed")
				return
			}
			b.Handle(ctx, u)
		}
	}
}

// Handle dispatches a single update. A panic is logged and the update dropped.
func (b *Bot) Handle(ctx context.Context, u tgbotapi.Update) {
	ctx, span := tracer.Start(ctx, "bot.Handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.Int("update.id", u.UpdateID)),
	)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update_panic", "update_id", u.UpdateID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.IsCommand() {
		b.handleCommand(ctx, m)
		return
	}
	if att, ok := attachmentOf(m); ok {
		b.handleUpload(ctx, m, att)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.replyWithKeyboard(ctx, chatID, text, nil)
}

func (b *Bot) replyWithKeyboard(ctx context.Context, chatID int64, text string, kb telegram.Keyboard) {
	if _, err := b.msgr.SendText(ctx, chatID, text, kb); err != nil {
		b.logger.Error("send_failed", "chat_id", chatID, "err", err)
	}
}

// logAction records user activity at info level.
func (b *Bot) logAction(u *tgbotapi.User, action string, kv ...any) {
	args := append([]any{"user_id", u.ID, "username", u.UserName, "action", action}, kv...)
	b.logger.Info("user_action", args...)
}
