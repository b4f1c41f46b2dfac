package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramLogger mirrors handler errors into a log chat.
type TelegramLogger struct {
	sender Sender
	chatID int64
}

// NewTelegramLogger returns a logger that posts to chatID. A zero chatID disables it.
func NewTelegramLogger(s Sender, chatID int64) *TelegramLogger {
	return &TelegramLogger{sender: s, chatID: chatID}
}

const logChunkSize = 4000

func (l *TelegramLogger) LogError(err error, where string) {
	if l == nil || l.chatID == 0 || err == nil {
		return
	}

	msg := fmt.Sprintf("❌ <b>Error</b>\n\n<b>Context:</b> %s\n<b>Time:</b> %s\n\n<pre>%s</pre>",
		html.EscapeString(where), time.Now().UTC().Format("2006-01-02 15:04:05"), html.EscapeString(err.Error()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, part := range SplitMessage(msg, logChunkSize) {
		_, sendErr := l.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    l.chatID,
			Text:      part,
			ParseMode: models.ParseModeHTML,
		})
		if sendErr != nil {
			// a split can cut through <pre>; retry the chunk unformatted
			_, sendErr = l.sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: l.chatID, Text: part})
		}
		if sendErr != nil {
			slog.Error("failed to send telegram log", "error", sendErr)
			return
		}
	}
}
