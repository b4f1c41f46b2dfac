package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jishankai/sp-telegram-bot/internal/config"
)

// Sender is the part of *bot.Bot used for outgoing messages.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// ChatActionSender is the part of *bot.Bot used for chat actions.
type ChatActionSender interface {
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// SendHTML sends text split into Telegram-sized parts. Parts are sent as HTML when they
// only use supported tags; a part Telegram rejects is resent as plain text.
// A non-zero replyToID makes the first part a reply.
func SendHTML(ctx context.Context, s Sender, chatID int64, text string, replyToID int) error {
	for _, part := range SplitMessage(text, config.MaxTelegramMessageLen) {
		params := &bot.SendMessageParams{
			ChatID: chatID,
			Text:   part,
		}
		if CanSendHTML(part) {
			params.ParseMode = models.ParseModeHTML
		}
		if replyToID != 0 {
			params.ReplyParameters = &models.ReplyParameters{MessageID: replyToID}
			replyToID = 0
		}

		_, err := s.SendMessage(ctx, params)
		if err != nil && params.ParseMode != "" {
			slog.Warn("html send failed, falling back to plain text", "chat_id", chatID, "error", err)
			params.ParseMode = ""
			_, err = s.SendMessage(ctx, params)
		}
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// SendPlain sends text without any parse mode.
func SendPlain(ctx context.Context, s Sender, chatID int64, text string, replyToID int) error {
	for _, part := range SplitMessage(text, config.MaxTelegramMessageLen) {
		params := &bot.SendMessageParams{ChatID: chatID, Text: part}
		if replyToID != 0 {
			params.ReplyParameters = &models.ReplyParameters{MessageID: replyToID}
			replyToID = 0
		}
		if _, err := s.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// StartTyping sends "typing..." action every 4 seconds until the returned cancel function is called.
func StartTyping(ctx context.Context, s ChatActionSender, chatID int64) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	send := func() {
		_, _ = s.SendChatAction(ctx, &bot.SendChatActionParams{
			ChatID: chatID,
			Action: models.ChatActionTyping,
		})
	}
	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		send()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				send()
			}
		}
	}()
	return cancel
}
