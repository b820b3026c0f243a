package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier mirrors operational alerts to a Telegram chat so breakage is
// visible even when Slack itself is the problem. A nil Notifier is safe to
// call and does nothing.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

func NewNotifier(token string, chatID int64, logger *slog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{api: api, chatID: chatID, logger: logger}, nil
}

// Notify sends text to the ops chat. Delivery is best-effort: failures are
// logged, never propagated.
func (n *Notifier) Notify(_ context.Context, text string) {
	if n == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true

	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warn("telegram notify failed", "error", err)
	}
}
