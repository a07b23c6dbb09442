// Package notify provides the Observability layer's optional outbound audit
// hook, grounded on this codebase's telegram-bot notifier.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Hook emits one structured audit event. Implementations must not block the
// caller for longer than a few seconds; emission failures are logged, never
// surfaced as scan failures.
type Hook interface {
	Emit(ctx context.Context, scanID, event string, payload map[string]any) error
}

// NoopHook is the default: disabled until a Telegram token is configured.
type NoopHook struct{}

func (NoopHook) Emit(context.Context, string, string, map[string]any) error { return nil }

// TelegramHook posts audit events to a single chat.
type TelegramHook struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramHook dials the bot API eagerly so a bad token fails at startup
// rather than on the first scan completion.
func NewTelegramHook(token string, chatID int64) (*TelegramHook, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = false
	return &TelegramHook{bot: bot, chatID: chatID}, nil
}

func (h *TelegramHook) Emit(_ context.Context, scanID, event string, payload map[string]any) error {
	text := fmt.Sprintf("scan %s: %s\n%v", scanID, event, payload)
	msg := tgbotapi.NewMessage(h.chatID, text)
	_, err := h.bot.Send(msg)
	return err
}
