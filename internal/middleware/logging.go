package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// slowUpdate is the handling time above which an update is logged as a warning.
const slowUpdate = 30 * time.Second

// Logging returns middleware that logs update processing time.
func Logging() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			start := time.Now()
			next(ctx, b, update)
			elapsed := time.Since(start)

			attrs := append(describe(update), "duration", elapsed)
			if elapsed > slowUpdate {
				slog.Warn("slow update", attrs...)
				return
			}
			slog.Debug("update processed", attrs...)
		}
	}
}

// describe returns log attributes identifying the update.
func describe(update *models.Update) []any {
	attrs := []any{"update_id", int64(update.ID)}

	var msg *models.Message
	switch {
	case update.Message != nil:
		attrs = append(attrs, "type", "message")
		msg = update.Message
	case update.EditedMessage != nil:
		attrs = append(attrs, "type", "edited_message")
		msg = update.EditedMessage
	case update.CallbackQuery != nil:
		attrs = append(attrs, "type", "callback_query", "user_id", update.CallbackQuery.From.ID)
		msg = update.CallbackQuery.Message.Message
		if msg != nil {
			attrs = append(attrs, "chat_id", msg.Chat.ID)
		}
		return attrs
	default:
		return append(attrs, "type", "other")
	}

	attrs = append(attrs, "chat_id", msg.Chat.ID, "chat_type", string(msg.Chat.Type))
	if msg.From != nil {
		attrs = append(attrs, "user_id", msg.From.ID)
	}
	return attrs
}
