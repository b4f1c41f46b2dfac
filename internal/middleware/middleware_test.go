package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	profiles  []domain.Profile
	groups    []domain.Group
	err       error
	upsertErr error
}

func (r *fakeRegistry) EnsureUser(_ context.Context, p domain.Profile, now time.Time) (*domain.User, error) {
	r.profiles = append(r.profiles, p)
	if r.err != nil {
		return nil, r.err
	}
	return &domain.User{ID: p.UserID, ChatID: p.ChatID, Username: p.Username, FirstSeen: now}, nil
}

func (r *fakeRegistry) UpsertGroup(_ context.Context, g domain.Group) error {
	r.groups = append(r.groups, g)
	return r.upsertErr
}

func privateMessage(username string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			From: &models.User{ID: 7, Username: username, FirstName: "Ada"},
			Chat: models.Chat{ID: 7, Type: "private"},
			Text: "hello",
		},
	}
}

func TestAccess(t *testing.T) {
	allow := func(u string) bool { return u == "alice" }
	calls := 0
	next := func(context.Context, *bot.Bot, *models.Update) { calls++ }
	h := Access(allow)(next)

	h(context.Background(), nil, privateMessage("alice"))
	require.Equal(t, 1, calls)

	h(context.Background(), nil, privateMessage("mallory"))
	require.Equal(t, 1, calls)

	h(context.Background(), nil, &models.Update{ID: 2})
	require.Equal(t, 2, calls)
}

func TestUserLoader_PrivateMessage(t *testing.T) {
	reg := &fakeRegistry{}
	var got *domain.User
	h := UserLoader(reg)(func(ctx context.Context, _ *bot.Bot, _ *models.Update) {
		got = GetUser(ctx)
	})

	h(context.Background(), nil, privateMessage("alice"))

	require.NotNil(t, got)
	require.Equal(t, int64(7), got.ID)
	require.Len(t, reg.profiles, 1)
	require.Equal(t, "Ada", reg.profiles[0].FirstName)
	require.Empty(t, reg.groups)
}

func TestUserLoader_RegistryFailureStillCallsNext(t *testing.T) {
	reg := &fakeRegistry{err: errors.New("db down")}
	called := false
	h := UserLoader(reg)(func(ctx context.Context, _ *bot.Bot, _ *models.Update) {
		called = true
		require.Nil(t, GetUser(ctx))
	})

	h(context.Background(), nil, privateMessage("alice"))
	require.True(t, called)
}

func TestUserLoader_SkipsBots(t *testing.T) {
	reg := &fakeRegistry{}
	update := privateMessage("otherbot")
	update.Message.From.IsBot = true

	UserLoader(reg)(func(context.Context, *bot.Bot, *models.Update) {})(context.Background(), nil, update)
	require.Empty(t, reg.profiles)
}

type countingCounter struct {
	calls int
	count int
	err   error
}

func (c *countingCounter) GetChatMemberCount(context.Context, *bot.GetChatMemberCountParams) (int, error) {
	c.calls++
	return c.count, c.err
}

func TestGroupTracker_Record(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	chat := &models.Chat{ID: -100, Type: "supergroup", Title: "Options desk"}
	reg := &fakeRegistry{}
	counter := &countingCounter{count: 42}
	tracker := newGroupTracker(reg, time.Hour)

	tracker.record(context.Background(), counter, chat, now)
	require.Len(t, reg.groups, 1)
	require.Equal(t, int64(-100), reg.groups[0].ID)
	require.Equal(t, "Options desk", reg.groups[0].Name)
	require.NotNil(t, reg.groups[0].MemberCount)
	require.Equal(t, 42, *reg.groups[0].MemberCount)

	tracker.record(context.Background(), counter, chat, now.Add(59*time.Minute))
	require.Equal(t, 1, counter.calls)
	require.Len(t, reg.groups, 1)

	tracker.record(context.Background(), counter, chat, now.Add(time.Hour))
	require.Equal(t, 2, counter.calls)
	require.Len(t, reg.groups, 2)
}

func TestGroupTracker_CountFailureKeepsStoredCount(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	chat := &models.Chat{ID: -100, Type: "group", Title: "Options desk"}
	reg := &fakeRegistry{}

	newGroupTracker(reg, time.Hour).record(context.Background(), &countingCounter{err: errors.New("forbidden")}, chat, now)

	require.Len(t, reg.groups, 1)
	require.Nil(t, reg.groups[0].MemberCount)
	require.Equal(t, "Options desk", reg.groups[0].Name)
}

func TestGroupTracker_RetriesAfterUpsertFailure(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	chat := &models.Chat{ID: -100, Type: "group", Title: "Options desk"}
	reg := &fakeRegistry{upsertErr: errors.New("db down")}
	counter := &countingCounter{count: 7}
	tracker := newGroupTracker(reg, time.Hour)

	tracker.record(context.Background(), counter, chat, now)
	reg.upsertErr = nil
	tracker.record(context.Background(), counter, chat, now.Add(time.Minute))

	require.Equal(t, 2, counter.calls)
	require.Len(t, reg.groups, 2)
}

func TestRecover(t *testing.T) {
	var reported error
	h := Recover(func(err error) { reported = err })(func(context.Context, *bot.Bot, *models.Update) {
		panic("boom")
	})

	require.NotPanics(t, func() { h(context.Background(), nil, &models.Update{ID: 3}) })
	require.EqualError(t, reported, "panic: boom")
}

func TestDescribe(t *testing.T) {
	attrs := describe(privateMessage("alice"))
	require.Equal(t, []any{"update_id", int64(1), "type", "message", "chat_id", int64(7), "chat_type", "private", "user_id", int64(7)}, attrs)

	edited := &models.Update{ID: 2, EditedMessage: &models.Message{Chat: models.Chat{ID: -5, Type: "group"}}}
	require.Equal(t, []any{"update_id", int64(2), "type", "edited_message", "chat_id", int64(-5), "chat_type", "group"}, describe(edited))

	require.Equal(t, []any{"update_id", int64(3), "type", "other"}, describe(&models.Update{ID: 3}))
}
