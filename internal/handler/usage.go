package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jishankai/sp-telegram-bot/internal/middleware"
	tg "github.com/jishankai/sp-telegram-bot/internal/telegram"
)

func (h *Handler) handleUsage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	used, err := h.dialogs.Usage(ctx, user.ID)
	if err != nil {
		slog.Error("get usage", "error", err, "user_id", user.ID)
		h.tgLogger.LogError(err, "/usage")
		return
	}
	_ = tg.SendHTML(ctx, b, update.Message.Chat.ID, fmt.Sprintf("You have used <b>%d</b> tokens so far.", used), 0)
}
