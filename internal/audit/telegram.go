package audit

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botSender is the subset of tgbotapi.BotAPI used by TelegramSink.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink posts a one-line notice per status change to a chat.
type TelegramSink struct {
	bot    botSender
	chatID int64
}

// NewTelegramSink connects a bot with token and targets chatID.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Write(_ context.Context, rec Record) error {
	if _, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, formatNotice(rec))); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatNotice(rec Record) string {
	var b strings.Builder
	if rec.Outcome == "ok" {
		b.WriteString("[OK] ")
	} else {
		b.WriteString("[FAILED] ")
	}
	fmt.Fprintf(&b, "Malop %s -> %s (API %s)", rec.MalopID, rec.Status, rec.APIVersion)
	if rec.Comment != "" {
		fmt.Fprintf(&b, "\nComment: %s", rec.Comment)
	}
	if rec.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", rec.Error)
	}
	return b.String()
}
