package notify_test

import (
	"chatroom/backend/internal/notify"
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBot struct {
	mock.Mock
}

func (m *MockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func TestTelegramNotifier_SendsToConfiguredChat(t *testing.T) {
	// Arrange
	bot := new(MockBot)
	n := &notify.TelegramNotifier{Bot: bot, ChatID: 42}
	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 42 && msg.ParseMode == tgbotapi.ModeMarkdown
	})).Return(tgbotapi.Message{}, nil)

	// Act
	err := n.Notify(context.Background(), notify.Notification{RoomID: "general", Author: "alice", Text: "hi"})

	// Assert
	assert.NoError(t, err)
	bot.AssertExpectations(t)
}

func TestTelegramNotifier_PropagatesError(t *testing.T) {
	bot := new(MockBot)
	bot.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("flood wait"))

	err := (&notify.TelegramNotifier{Bot: bot, ChatID: 1}).Notify(context.Background(), notify.Notification{RoomID: "general"})
	assert.Error(t, err)
}

func TestFormat_EscapesMarkdown(t *testing.T) {
	got := notify.Format(notify.Notification{RoomID: "general", Author: "al_ice", Text: "*bold*"})
	assert.Contains(t, got, `al\_ice`)
	assert.Contains(t, got, `\*bold\*`)
	assert.Contains(t, got, "#general")
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, notify.LogNotifier{}.Notify(context.Background(), notify.Notification{}))
}
