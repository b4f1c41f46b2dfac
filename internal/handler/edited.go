package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jishankai/sp-telegram-bot/internal/service"
	tg "github.com/jishankai/sp-telegram-bot/internal/telegram"
)

func (h *Handler) handleEdited(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.EditedMessage
	if msg.Chat.Type != "private" && !mentions(msg.Text, h.mention) {
		return
	}
	_ = tg.SendHTML(ctx, b, msg.Chat.ID, service.EditedMessageNotice, msg.ID)
}
