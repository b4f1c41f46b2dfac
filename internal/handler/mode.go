package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jishankai/sp-telegram-bot/internal/config"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
	"github.com/jishankai/sp-telegram-bot/internal/middleware"
	tg "github.com/jishankai/sp-telegram-bot/internal/telegram"
)

const modeCallbackPrefix = "mode_"

func (h *Handler) handleMode(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        "Select chat mode:",
		ReplyMarkup: modeKeyboard(h.modes, user.CurrentChatMode),
	})
	if err != nil {
		slog.Error("send mode menu", "error", err)
	}
}

func (h *Handler) handleModeSelect(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	h.answerCallback(ctx, b, update)

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	chatID := cq.From.ID
	if cq.Message.Message != nil {
		chatID = cq.Message.Message.Chat.ID
	}

	key := strings.TrimPrefix(cq.Data, modeCallbackPrefix)
	mode, err := h.dialogs.SetChatMode(ctx, user.ID, key, time.Now())
	if err != nil {
		if errors.Is(err, domain.ErrUnknownChatMode) {
			_ = tg.SendPlain(ctx, b, chatID, "❌ Unknown chat mode.", 0)
			return
		}
		slog.Error("set chat mode", "error", err, "user_id", user.ID, "mode", key)
		h.tgLogger.LogError(err, "mode selection")
		return
	}

	_ = tg.SendHTML(ctx, b, chatID, mode.WelcomeMessage, 0)
}

func modeKeyboard(modes config.ChatModes, current string) *models.InlineKeyboardMarkup {
	choices := make([]tg.Choice, 0, len(modes))
	for _, key := range modes.Keys() {
		choices = append(choices, tg.Choice{Key: key, Label: modes.Get(key).Name})
	}
	return tg.ChoiceKeyboard(modeCallbackPrefix, current, choices...)
}
