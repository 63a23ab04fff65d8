// Package notify delivers push notifications for sent messages.
package notify

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notification announces one sent message.
type Notification struct {
	RoomID string
	Author string
	Text   string
}

// Notifier is the push notification collaborator. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Format renders the notification body.
func Format(n Notification) string {
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }
	return fmt.Sprintf("💬 *%s* in #%s\n%s", esc(n.Author), esc(n.RoomID), esc(n.Text))
}

// BotSender is the part of tgbotapi.BotAPI the notifier uses.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts notifications to one Telegram chat.
type TelegramNotifier struct {
	Bot    BotSender
	ChatID int64
}

// NewTelegramNotifier authorizes the bot token.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)
	return &TelegramNotifier{Bot: bot, ChatID: chatID}, nil
}

func (t *TelegramNotifier) Notify(_ context.Context, n Notification) error {
	msg := tgbotapi.NewMessage(t.ChatID, Format(n))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableNotification = false
	if _, err := t.Bot.Send(msg); err != nil {
		log.Printf("ERROR: Failed to send telegram notification for room %s: %v", n.RoomID, err)
		return err
	}
	return nil
}

// LogNotifier writes notifications to the process log. Used when no bot is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	log.Printf("INFO: New message in %s from %s", n.RoomID, n.Author)
	return nil
}
