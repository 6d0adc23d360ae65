package bot

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"filelinker/internal/config"
	"filelinker/internal/logging"
	"filelinker/internal/model"
	"filelinker/internal/repository/memory"
	"filelinker/internal/service"
	"filelinker/internal/telegram"
	tgMocks "filelinker/internal/telegram/mocks"
)

const (
	adminID   = int64(7019)
	archiveID = int64(-100555)
)

var linkRe = regexp.MustCompile(`https://t\.me/relay_bot\?start=([A-Za-z0-9]{8})`)

type sentMessage struct {
	chatID int64
	text   string
	kb     telegram.Keyboard
}

type fixture struct {
	t         *testing.T
	store     *memory.Store
	registry  *service.Registry
	sessions  *service.SessionStore
	deletions *service.DeletionScheduler
	msgr      *tgMocks.MockMessenger
	bot       *Bot
	now       time.Time

	mu   sync.Mutex
	sent []sentMessage
}

func newFixture(t *testing.T, channels []config.Channel) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		store: memory.New(),
		msgr:  new(tgMocks.MockMessenger),
		now:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	logger := logging.Discard()
	f.registry = service.NewRegistry(f.store.Files(), f.store.Batches(), f.store.Bans(), f.store, logger)
	f.sessions = service.NewSessionStore()
	f.deletions = service.NewDeletionScheduler(f.store.Deletions(), f.msgr, 5*time.Minute, time.Minute, logger).
		WithClock(func() time.Time { return f.now })
	access := service.NewAccessGate(adminID, f.registry)
	gate := service.NewMembershipGate(f.msgr, channels, 0, 0, logger)
	backup := service.NewBackup(nil, logger)

	f.bot = New(Deps{
		Messenger: f.msgr,
		Access:    access,
		Registry:  f.registry,
		Sessions:  f.sessions,
		Uploads: service.NewUploadService(f.registry, f.sessions, f.msgr, backup, archiveID, "t.me",
			func() string { return "relay_bot" }, logger),
		Delivery: service.NewDeliveryService(f.registry, access, gate, f.msgr, f.deletions, archiveID, logger),
		Logger:   logger,
	})

	record := func(args mock.Arguments) {
		f.mu.Lock()
		defer f.mu.Unlock()
		kb, _ := args.Get(3).(telegram.Keyboard)
		f.sent = append(f.sent, sentMessage{chatID: args.Get(1).(int64), text: args.String(2), kb: kb})
	}
	f.msgr.On("SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Run(record).Return(1, nil).Maybe()
	f.msgr.On("EditText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sent = append(f.sent, sentMessage{chatID: args.Get(1).(int64), text: args.String(3)})
	}).Return(nil).Maybe()
	f.msgr.On("AnswerCallback", mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

func (f *fixture) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fixture) handle(u tgbotapi.Update) {
	f.bot.Handle(context.Background(), u)
}

func (f *fixture) stats() model.Stats {
	s, err := f.registry.Stats(context.Background())
	require.NoError(f.t, err)
	return s
}

func (f *fixture) codeFromLast() string {
	m := linkRe.FindStringSubmatch(f.last().text)
	require.Len(f.t, m, 2, "no share link in %q", f.last().text)
	return m[1]
}

func user(id int64) *tgbotapi.User { return &tgbotapi.User{ID: id, UserName: "u"} }

func command(from int64, text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      user(from),
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func document(from int64, msgID int, name string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: msgID,
		From:      user(from),
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		Document:  &tgbotapi.Document{FileID: "doc-" + name, FileUniqueID: "u-" + name, FileName: name},
	}}
}

func photo(from int64, msgID int, uid string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: msgID,
		From:      user(from),
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small-" + uid, FileUniqueID: "s" + uid, Width: 90},
			{FileID: "large-" + uid, FileUniqueID: uid, Width: 1280},
		},
	}}
}

func retry(from int64, code string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    user(from),
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: from}},
		Data:    "retry_" + code,
	}}
}

func TestSingleFileShareAndExpiry(t *testing.T) {
	f := newFixture(t, nil)

	f.msgr.On("CopyMessage", mock.Anything, archiveID, adminID, 10).Return(900, nil).Once()
	f.handle(document(adminID, 10, "manual.pdf"))
	code := f.codeFromLast()
	assert.Len(t, code, 8)

	rec, err := f.registry.LookupSingle(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, "manual.pdf", rec.DisplayName)
	assert.Equal(t, "application/pdf", rec.Kind)

	const requester = int64(42)
	f.msgr.On("CopyMessage", mock.Anything, requester, archiveID, 900).Return(5001, nil).Once()
	f.handle(command(requester, "/start "+code))
	assert.Equal(t, sentMessage{chatID: requester, text: msgFileDelivered}, f.last())

	f.now = f.now.Add(4 * time.Minute)
	_, err = f.deletions.RunOnce(context.Background())
	require.NoError(t, err)
	f.msgr.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything, mock.Anything)

	f.msgr.On("DeleteMessage", mock.Anything, requester, 5001).Return(nil).Once()
	f.now = f.now.Add(time.Minute)
	res, err := f.deletions.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	f.msgr.AssertExpectations(t)
}

func TestBatchShareDeliversInOrder(t *testing.T) {
	f := newFixture(t, nil)

	f.handle(command(adminID, "/batch_start"))
	assert.Equal(t, msgBatchStarted, f.last().text)

	for i, uid := range []string{"p1", "p2", "p3"} {
		f.msgr.On("CopyMessage", mock.Anything, archiveID, adminID, 20+i).Return(300+i, nil).Once()
		f.handle(photo(adminID, 20+i, uid))
		assert.Equal(t, addedToBatchText(i+1), f.last().text)
	}
	assert.Zero(t, f.stats().Files)

	f.handle(command(adminID, "/batch_end"))
	assert.Contains(t, f.last().text, "3 files uploaded successfully")
	code := f.codeFromLast()

	members, err := f.registry.LookupBatch(context.Background(), code)
	require.NoError(t, err)
	require.Len(t, members, 3)
	for i, m := range members {
		assert.Equal(t, "photo_p"+string(rune('1'+i))+".jpg", m.DisplayName)
		assert.Equal(t, "image/jpeg", m.Kind)
	}

	const requester = int64(77)
	var order []int
	f.msgr.On("CopyMessage", mock.Anything, requester, archiveID, mock.AnythingOfType("int")).
		Run(func(args mock.Arguments) { order = append(order, args.Int(3)) }).
		Return(9000, nil).Times(3)
	f.handle(command(requester, "/start "+code))

	assert.Equal(t, []int{300, 301, 302}, order)
	assert.Equal(t, msgBatchDelivered, f.last().text)
}

func TestBannedUserGetsNoLookup(t *testing.T) {
	f := newFixture(t, []config.Channel{{Name: "News", URL: "https://t.me/news", ChatID: -1}})

	f.handle(command(adminID, "/ban 66"))
	assert.Equal(t, userBannedText(66), f.last().text)

	f.handle(command(66, "/start Ab12Cd34"))
	assert.Equal(t, sentMessage{chatID: 66, text: msgBanned}, f.last())

	f.handle(command(66, "/start"))
	assert.Equal(t, msgBanned, f.last().text)

	f.handle(retry(66, "Ab12Cd34"))
	assert.Equal(t, msgBanned, f.last().text)

	f.msgr.AssertNotCalled(t, "MemberStatus", mock.Anything, mock.Anything, mock.Anything)
	f.msgr.AssertNotCalled(t, "CopyMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEmptyBatchEnd(t *testing.T) {
	f := newFixture(t, nil)

	f.handle(command(adminID, "/batch_start"))
	f.handle(command(adminID, "/batch_end"))

	assert.Equal(t, msgBatchEmpty, f.last().text)
	assert.Equal(t, model.Stats{}, f.stats())
	assert.True(t, f.sessions.Active(adminID))
}

func TestBatchCommands(t *testing.T) {
	f := newFixture(t, nil)

	f.handle(command(adminID, "/batch_end"))
	assert.Equal(t, msgNoBatch, f.last().text)

	f.handle(command(adminID, "/batch_start"))
	f.msgr.On("CopyMessage", mock.Anything, archiveID, adminID, 1).Return(2, nil).Once()
	f.handle(document(adminID, 1, "a.zip"))

	f.handle(command(adminID, "/batch_start"))
	assert.Equal(t, batchOpenText(1), f.last().text)
	n, err := f.sessions.Len(adminID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.handle(command(adminID, "/batch_cancel"))
	assert.Equal(t, batchCancelledText(1), f.last().text)
	assert.False(t, f.sessions.Active(adminID))

	f.handle(command(adminID, "/batch_cancel"))
	assert.Equal(t, msgNoBatch, f.last().text)
	assert.Equal(t, model.Stats{}, f.stats())
}

func TestNonAdminIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	const stranger = int64(12345)

	for _, u := range []tgbotapi.Update{
		command(stranger, "/batch_start"),
		command(stranger, "/batch_end"),
		command(stranger, "/batch_cancel"),
		command(stranger, "/ban 5"),
		command(stranger, "/unban 5"),
		command(stranger, "/stats"),
		document(stranger, 3, "x.pdf"),
		photo(stranger, 4, "p"),
	} {
		f.handle(u)
		assert.Equal(t, sentMessage{chatID: stranger, text: msgNotAdmin}, f.last())
	}

	assert.Equal(t, model.Stats{}, f.stats())
	assert.False(t, f.sessions.Active(stranger))
	f.msgr.AssertNotCalled(t, "CopyMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBanArguments(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/ban", msgBanUsage},
		{"/unban", msgUnbanUsage},
		{"/ban @someone", msgInvalidUser},
		{"/ban abc", msgInvalidUser},
		{"/ban -4", msgInvalidUser},
		{"/ban 0", msgInvalidUser},
		{"/ban 99", userBannedText(99)},
		{"/unban 99", userUnbannedText(99)},
		{"/unban 99", userUnbannedText(99)},
	}

	f := newFixture(t, nil)
	for _, tt := range tests {
		f.handle(command(adminID, tt.text))
		assert.Equal(t, tt.want, f.last().text, tt.text)
	}
	assert.Zero(t, f.stats().Banned)
}

func TestStatsCommand(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.registry.Ban(context.Background(), 5, adminID))

	f.handle(command(adminID, "/stats"))

	assert.Equal(t, statsText(model.Stats{Banned: 1}), f.last().text)
	assert.Contains(t, f.last().text, "Banned Users: 1")
}

func TestWelcomeAndNotFound(t *testing.T) {
	f := newFixture(t, nil)

	f.handle(command(10, "/start"))
	assert.Equal(t, msgWelcome, f.last().text)

	f.handle(command(10, "/start Zz00Zz00"))
	assert.Equal(t, msgFileNotFound, f.last().text)

	f.handle(command(10, "/start bad%code"))
	assert.Equal(t, msgFileNotFound, f.last().text)
}

func TestJoinRequiredThenRetry(t *testing.T) {
	channels := []config.Channel{
		{Name: "A", URL: "https://t.me/a", ChatID: -1},
		{Name: "B", URL: "https://t.me/b", ChatID: -2},
		{Name: "C", URL: "https://t.me/c", ChatID: -3},
	}
	f := newFixture(t, channels)
	f.msgr.On("CopyMessage", mock.Anything, archiveID, adminID, 1).Return(50, nil).Once()
	f.handle(document(adminID, 1, "a.mp4"))
	code := f.codeFromLast()

	const requester = int64(8)
	f.msgr.On("MemberStatus", mock.Anything, int64(-1), requester).Return("left", nil).Once()
	f.msgr.On("MemberStatus", mock.Anything, int64(-2), requester).Return("kicked", nil).Once()
	f.msgr.On("MemberStatus", mock.Anything, int64(-3), requester).Return("left", nil).Once()
	f.handle(command(requester, "/start "+code))

	got := f.last()
	assert.Equal(t, msgJoinRequired, got.text)
	require.Len(t, got.kb, 3)
	assert.Len(t, got.kb[0], 2)
	assert.Len(t, got.kb[1], 1)
	assert.Equal(t, "Join C", got.kb[1][0].Text)
	assert.Equal(t, "retry_"+code, got.kb[2][0].Data)

	f.msgr.On("MemberStatus", mock.Anything, mock.Anything, requester).Return("member", nil)
	f.msgr.On("CopyMessage", mock.Anything, requester, archiveID, 50).Return(60, nil).Once()
	f.handle(retry(requester, code))

	assert.Equal(t, msgFileDelivered, f.last().text)
	f.msgr.AssertCalled(t, "AnswerCallback", mock.Anything, "cb-1")
	f.msgr.AssertExpectations(t)
}

func TestGroupRequestDeliversPrivately(t *testing.T) {
	f := newFixture(t, nil)
	f.msgr.On("CopyMessage", mock.Anything, archiveID, adminID, 3).Return(70, nil).Once()
	f.handle(document(adminID, 3, "notes.pdf"))
	code := f.codeFromLast()

	const (
		requester = int64(42)
		groupID   = int64(-100999)
	)
	start := command(requester, "/start "+code)
	start.Message.Chat = &tgbotapi.Chat{ID: groupID, Type: "supergroup"}

	f.msgr.On("CopyMessage", mock.Anything, requester, archiveID, 70).Return(7001, nil).Once()
	f.handle(start)

	assert.Equal(t, sentMessage{chatID: groupID, text: msgFileDelivered}, f.last())
	f.msgr.AssertNotCalled(t, "CopyMessage", mock.Anything, groupID, mock.Anything, mock.Anything)

	cb := retry(requester, code)
	cb.CallbackQuery.Message.Chat = &tgbotapi.Chat{ID: groupID, Type: "supergroup"}
	f.msgr.On("CopyMessage", mock.Anything, requester, archiveID, 70).Return(7002, nil).Once()
	f.handle(cb)
	f.msgr.AssertNotCalled(t, "CopyMessage", mock.Anything, groupID, mock.Anything, mock.Anything)

	f.msgr.On("DeleteMessage", mock.Anything, requester, 7001).Return(nil).Once()
	f.msgr.On("DeleteMessage", mock.Anything, requester, 7002).Return(nil).Once()
	f.now = f.now.Add(5 * time.Minute)
	res, err := f.deletions.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)
	f.msgr.AssertExpectations(t)
}

func TestUploadFailureReportsError(t *testing.T) {
	f := newFixture(t, nil)
	f.msgr.On("CopyMessage", mock.Anything, archiveID, adminID, 1).Return(0, assert.AnError).Once()

	f.handle(document(adminID, 1, "a.pdf"))

	assert.Equal(t, msgError, f.last().text)
	assert.Zero(t, f.stats().Files)
}

func TestPanicIsContained(t *testing.T) {
	f := newFixture(t, nil)
	f.msgr.On("CopyMessage", mock.Anything, archiveID, adminID, 1).Run(func(mock.Arguments) {
		panic("boom")
	}).Return(0, nil)

	assert.NotPanics(t, func() { f.handle(document(adminID, 1, "a.pdf")) })
}

func TestRunStopsWhenUpdatesClose(t *testing.T) {
	f := newFixture(t, nil)
	f.msgr.On("Username").Return("relay_bot")

	updates := make(chan tgbotapi.Update, 1)
	updates <- command(5, "/start")
	close(updates)

	done := make(chan struct{})
	go func() {
		f.bot.Run(context.Background(), updates)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, msgWelcome, f.last().text)
}
