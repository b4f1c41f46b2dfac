package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Access returns middleware that drops updates from users outside the allow-list.
func Access(isAllowed func(username string) bool) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			from := sender(update)
			if from != nil && !isAllowed(from.Username) {
				slog.Debug("update from user outside allow-list dropped", "user_id", from.ID, "username", from.Username)
				return
			}
			next(ctx, b, update)
		}
	}
}

func sender(update *models.Update) *models.User {
	switch {
	case update.Message != nil:
		return update.Message.From
	case update.EditedMessage != nil:
		return update.EditedMessage.From
	case update.CallbackQuery != nil:
		return &update.CallbackQuery.From
	}
	return nil
}
