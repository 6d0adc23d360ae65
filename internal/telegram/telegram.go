package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Member statuses that mean the user is not in the chat.
const (
	StatusLeft   = "left"
	StatusKicked = "kicked"
)

// Button is one inline keyboard button. Exactly one of URL or Data is set.
type Button struct {
	Text string
	URL  string
	Data string
}

// Keyboard is an inline keyboard, one slice per row.
type Keyboard [][]Button

// Messenger is the part of the chat platform the bot relies on.
// Message ids are chat-local references returned by the platform.
type Messenger interface {
	// Username is the bot's public handle, used to build share links.
	Username() string
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	// CopyMessage re-posts messageID from fromChatID into toChatID and returns the new message id.
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	// MemberStatus returns the platform status of userID in chatID (member, left, kicked, ...).
	MemberStatus(ctx context.Context, chatID, userID int64) (string, error)
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Client implements Messenger on top of telegram-bot-api.
type Client struct {
	api *tgbotapi.BotAPI
}

var _ Messenger = (*Client)(nil)

// NewHTTPClient returns an instrumented HTTP client whose timeout outlasts a long poll.
func NewHTTPClient(pollTimeoutSec int) *http.Client {
	return &http.Client{
		Timeout:   time.Duration(pollTimeoutSec+15) * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// New authenticates against the Bot API and returns a Client.
func New(token string, httpClient *http.Client) (*Client, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", err)
	}
	return &Client{api: api}, nil
}

// Updates starts long polling for messages and callback queries.
func (c *Client) Updates(timeoutSec int) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	u.AllowedUpdates = []string{"message", "callback_query"}
	return c.api.GetUpdatesChan(u)
}

// Stop ends long polling and closes the updates channel.
func (c *Client) Stop() {
	c.api.StopReceivingUpdates()
}

func (c *Client) Username() string {
	return c.api.Self.UserName
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if len(kb) > 0 {
		msg.ReplyMarkup = toMarkup(kb)
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id, err := c.api.CopyMessage(tgbotapi.NewCopyMessage(toChatID, fromChatID, messageID))
	if err != nil {
		return 0, err
	}
	return id.MessageID, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (c *Client) MemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return "", err
	}
	return member.Status, nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

func toMarkup(kb Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
