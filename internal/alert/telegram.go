package alert

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramDispatcher mirrors high-severity alerts into a staff Telegram
// chat. Optional; enabled only when a bot token is configured.
type TelegramDispatcher struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

func NewTelegramDispatcher(token string, chatID int64, logger *zap.Logger) (*TelegramDispatcher, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram alert channel authorized", zap.String("username", botAPI.Self.UserName))

	return &TelegramDispatcher{
		api:    botAPI,
		chatID: chatID,
		logger: logger,
	}, nil
}

func (d *TelegramDispatcher) SendTeacherAlert(_ context.Context, a TeacherAlert) error {
	text := "New safety flag\n\n" + alertBody(a)
	msg := tgbotapi.NewMessage(d.chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := d.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send Telegram alert: %w", err)
	}

	d.logger.Info("Staff Telegram alert sent",
		zap.String("concern_type", a.ConcernType),
		zap.Int("concern_level", a.ConcernLevel))
	return nil
}
