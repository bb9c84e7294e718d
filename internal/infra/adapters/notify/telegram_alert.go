package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/ports/adapter"
)

var _ adapter.MerchantAlerter = (*TelegramAlerter)(nil)

// TelegramAlerter sends sale alerts to a single merchant chat.
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramAlerter(token string, chatID int64) (*TelegramAlerter, error) {
	return NewTelegramAlerterWithEndpoint(token, chatID, tgbotapi.APIEndpoint)
}

// NewTelegramAlerterWithEndpoint allows pointing the bot at a different API
// host. endpoint must contain two %s verbs (token, method).
func NewTelegramAlerterWithEndpoint(token string, chatID int64, endpoint string) (*TelegramAlerter, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramAlerter{bot: bot, chatID: chatID}, nil
}

func (a *TelegramAlerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return &domain.NotificationError{Channel: "telegram", Err: err}
	}
	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := a.bot.Send(msg); err != nil {
		return &domain.NotificationError{Channel: "telegram", Err: err}
	}
	return nil
}
