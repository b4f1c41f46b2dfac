package handler

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jishankai/sp-telegram-bot/internal/config"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
	"github.com/jishankai/sp-telegram-bot/internal/middleware"
	"github.com/jishankai/sp-telegram-bot/internal/service"
	tg "github.com/jishankai/sp-telegram-bot/internal/telegram"
)

// HandleText answers plain text messages. In groups only messages that
// mention the bot are answered.
func (h *Handler) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	msg := update.Message

	// Skip commands
	if strings.HasPrefix(msg.Text, "/") {
		return
	}

	text := msg.Text
	replyTo := 0
	switch msg.Chat.Type {
	case "private":
	case "group", "supergroup":
		if !mentions(text, h.mention) {
			return
		}
		text = stripMention(text, h.mention)
		replyTo = msg.ID
	default:
		return
	}

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	chatID := msg.Chat.ID
	if strings.TrimSpace(text) == "" {
		_ = tg.SendHTML(ctx, b, chatID, "🥲 You sent <b>empty message</b>. Please, try again!", replyTo)
		return
	}

	stopTyping := tg.StartTyping(ctx, b, chatID)
	reqCtx, cancel := context.WithTimeout(ctx, config.RequestTimeout)
	reply, err := h.dialogs.HandleMessage(reqCtx, user.ID, text, time.Now())
	cancel()
	stopTyping()

	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) {
			return
		}
		slog.Error("handle message", "error", err, "user_id", user.ID)
		h.tgLogger.LogError(err, "message from user "+user.Username)
		_ = tg.SendPlain(ctx, b, chatID, service.DiagnosticText(err), replyTo)
		return
	}

	if notice := reply.TrimNotice(); notice != "" {
		_ = tg.SendHTML(ctx, b, chatID, notice, replyTo)
	}
	if err := tg.SendHTML(ctx, b, chatID, reply.Answer, replyTo); err != nil {
		slog.Error("send answer", "error", err, "user_id", user.ID)
	}
}

// mentionPattern matches @username case-insensitively. It returns nil for an empty username.
func mentionPattern(username string) *regexp.Regexp {
	if username == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(username) + `\b`)
}

func mentions(text string, pattern *regexp.Regexp) bool {
	return pattern != nil && pattern.MatchString(text)
}

func stripMention(text string, pattern *regexp.Regexp) string {
	if pattern != nil {
		text = pattern.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}
