package notify

import (
	"context"
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramMessageLimit is the Bot API's hard cap on message length; a
// long run log is truncated rather than rejected.
const telegramMessageLimit = 4096

// Telegram delivers the run report as a bot message.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(botToken, chatID string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	var id int64
	if _, err := fmt.Sscanf(chatID, "%d", &id); err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}

	return &Telegram{bot: bot, chatID: id}, nil
}

func (t *Telegram) Notify(ctx context.Context, subject, body string) error {
	text := truncateMessage(subject + "\n\n" + body)

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

// truncateMessage cuts an overlong run log down to the Bot API limit. The
// cut never lands inside a multi-byte rune; the result stays valid UTF-8.
func truncateMessage(text string) string {
	if len(text) <= telegramMessageLimit {
		return text
	}

	const marker = "\n[truncated]"
	cut := telegramMessageLimit - len(marker)
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + marker
}
