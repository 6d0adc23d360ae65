package mocks

import (
	"context"

	"filelinker/internal/telegram"
	"github.com/stretchr/testify/mock"
)

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) Username() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockMessenger) SendText(ctx context.Context, chatID int64, text string, kb telegram.Keyboard) (int, error) {
	args := m.Called(ctx, chatID, text, kb)
	return args.Int(0), args.Error(1)
}

func (m *MockMessenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	args := m.Called(ctx, chatID, messageID, text)
	return args.Error(0)
}

func (m *MockMessenger) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	args := m.Called(ctx, toChatID, fromChatID, messageID)
	if f, ok := args.Get(0).(func(context.Context, int64, int64, int) int); ok {
		return f(ctx, toChatID, fromChatID, messageID), args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockMessenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

func (m *MockMessenger) MemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	args := m.Called(ctx, chatID, userID)
	return args.String(0), args.Error(1)
}

func (m *MockMessenger) AnswerCallback(ctx context.Context, callbackID string) error {
	args := m.Called(ctx, callbackID)
	return args.Error(0)
}
