package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jishankai/sp-telegram-bot/internal/middleware"
	tg "github.com/jishankai/sp-telegram-bot/internal/telegram"
)

const welcomeText = "Hi! I'm <b>SignalPlus</b> bot. How can I help you today? 🤖"

const helpText = "📋 <b>Commands:</b>\n" +
	"/new – Start new dialog\n" +
	"/mode – Select chat mode\n" +
	"/quote &lt;symbol&gt; – Market quote and volatility index\n" +
	"/usage – Tokens used so far\n" +
	"/help – Show help\n\n" +
	"In groups, mention me to start a conversation."

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	if _, err := h.dialogs.ResetDialog(ctx, user.ID, time.Now()); err != nil {
		slog.Error("reset dialog on start", "error", err, "user_id", user.ID)
		h.tgLogger.LogError(err, "/start")
	}

	if err := tg.SendHTML(ctx, b, update.Message.Chat.ID, welcomeText+"\n\n"+helpText, 0); err != nil {
		slog.Error("send welcome", "error", err)
	}
}

func (h *Handler) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	if err := tg.SendHTML(ctx, b, update.Message.Chat.ID, helpText, 0); err != nil {
		slog.Error("send help", "error", err)
	}
}

func (h *Handler) handleNew(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	if _, err := h.dialogs.ResetDialog(ctx, user.ID, time.Now()); err != nil {
		slog.Error("reset dialog", "error", err, "user_id", user.ID)
		h.tgLogger.LogError(err, "/new")
		_ = tg.SendPlain(ctx, b, update.Message.Chat.ID, "❌ Could not start a new dialog, please try again.", 0)
		return
	}

	mode := h.modes.Get(user.CurrentChatMode)
	_ = tg.SendHTML(ctx, b, update.Message.Chat.ID, "Starting new dialog ✅\n\n"+mode.WelcomeMessage, 0)
}
