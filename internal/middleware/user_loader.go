package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jishankai/sp-telegram-bot/internal/config"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
)

type ctxKey string

const UserKey ctxKey = "user"

// GetUser extracts user from context.
func GetUser(ctx context.Context) *domain.User {
	u, ok := ctx.Value(UserKey).(*domain.User)
	if !ok {
		return nil
	}
	return u
}

// Registry registers users and group chats.
type Registry interface {
	EnsureUser(ctx context.Context, p domain.Profile, now time.Time) (*domain.User, error)
	UpsertGroup(ctx context.Context, g domain.Group) error
}

// MemberCounter is the part of *bot.Bot used to size group chats.
type MemberCounter interface {
	GetChatMemberCount(ctx context.Context, params *bot.GetChatMemberCountParams) (int, error)
}

// UserLoader returns middleware that registers the sender on first contact,
// records group chats and puts the user into context.
func UserLoader(registry Registry) bot.Middleware {
	groups := newGroupTracker(registry, config.GroupRefreshInterval)
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User
			var chat *models.Chat

			if update.Message != nil {
				from = update.Message.From
				chat = &update.Message.Chat
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
				if update.CallbackQuery.Message.Message != nil {
					chat = &update.CallbackQuery.Message.Message.Chat
				}
			}

			if from == nil || from.IsBot {
				next(ctx, b, update)
				return
			}

			now := time.Now()
			profile := domain.Profile{
				UserID:    from.ID,
				ChatID:    from.ID,
				Username:  from.Username,
				FirstName: from.FirstName,
				LastName:  from.LastName,
			}
			if chat != nil && chat.Type == "private" {
				profile.ChatID = chat.ID
			}

			user, err := registry.EnsureUser(ctx, profile, now)
			if err != nil {
				slog.Error("register user", "error", err, "user_id", from.ID)
			} else {
				ctx = context.WithValue(ctx, UserKey, user)
			}

			if update.Message != nil && chat != nil && (chat.Type == "group" || chat.Type == "supergroup") {
				groups.record(ctx, b, chat, now)
			}

			next(ctx, b, update)
		}
	}
}

// groupTracker upserts a group at most once per interval so that the member
// count is not fetched from Telegram on every group message.
type groupTracker struct {
	registry Registry
	interval time.Duration

	mu   sync.Mutex
	seen map[int64]time.Time
}

func newGroupTracker(registry Registry, interval time.Duration) *groupTracker {
	return &groupTracker{registry: registry, interval: interval, seen: map[int64]time.Time{}}
}

// due reports whether chatID needs a refresh and marks it refreshed at now.
func (t *groupTracker) due(chatID int64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.seen[chatID]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.seen[chatID] = now
	return true
}

func (t *groupTracker) record(ctx context.Context, counter MemberCounter, chat *models.Chat, now time.Time) {
	if !t.due(chat.ID, now) {
		return
	}

	g := domain.Group{ID: chat.ID, Name: chat.Title, UpdatedAt: now}
	count, err := counter.GetChatMemberCount(ctx, &bot.GetChatMemberCountParams{ChatID: chat.ID})
	if err != nil {
		slog.Warn("get chat member count", "error", err, "chat_id", chat.ID)
	} else {
		g.MemberCount = &count
	}

	if err := t.registry.UpsertGroup(ctx, g); err != nil {
		slog.Error("upsert group", "error", err, "chat_id", chat.ID)
		t.mu.Lock()
		delete(t.seen, chat.ID)
		t.mu.Unlock()
	}
}
