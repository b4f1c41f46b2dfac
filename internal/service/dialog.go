package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jishankai/sp-telegram-bot/internal/config"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
)

const EditedMessageNotice = "🥲 Unfortunately, message <b>editing</b> is not supported"

// Reply is the outcome of one processed message.
type Reply struct {
	Answer       string
	DialogID     string
	TokensUsed   int
	TurnsRemoved int
	Rotated      bool
}

// TrimNotice is the advisory line sent before the answer, or "" when nothing was trimmed.
func (r *Reply) TrimNotice() string {
	return TrimNotice(r.TurnsRemoved)
}

func TrimNotice(removed int) string {
	switch {
	case removed <= 0:
		return ""
	case removed == 1:
		return "✍️ <i>Note:</i> Your current dialog is too long, so your <b>first message</b> was removed from the context."
	default:
		return fmt.Sprintf("✍️ <i>Note:</i> Your current dialog is too long, so <b>%d first messages</b> were removed from the context.", removed)
	}
}

// DiagnosticText is the single reply shown when a message could not be completed.
func DiagnosticText(err error) string {
	return "Something went wrong during completion.\nReason: " + err.Error()
}

type DialogService struct {
	store       Store
	llm         LanguageModel
	modes       config.ChatModes
	locks       *KeyedMutex
	idleTimeout time.Duration
	budget      int
	size        Sizer
}

type DialogOption func(*DialogService)

// WithIdleTimeout sets the inactivity window after which a non-empty dialog is rotated. Zero disables rotation.
func WithIdleTimeout(d time.Duration) DialogOption {
	return func(s *DialogService) {
		s.idleTimeout = d
	}
}

// WithHistoryBudget bounds the history sent to the model and stored per dialog.
func WithHistoryBudget(budget int, size Sizer) DialogOption {
	return func(s *DialogService) {
		s.budget = budget
		if size != nil {
			s.size = size
		}
	}
}

func NewDialogService(store Store, llm LanguageModel, modes config.ChatModes, opts ...DialogOption) *DialogService {
	s := &DialogService{
		store: store,
		llm:   llm,
		modes: modes,
		locks: NewKeyedMutex(),
		size:  CharSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureUser registers the user on first contact and guarantees a current dialog.
func (s *DialogService) EnsureUser(ctx context.Context, p domain.Profile, now time.Time) (*domain.User, error) {
	unlock := s.locks.Lock(p.UserID)
	defer unlock()

	exists, err := s.store.UserExists(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		if err := s.store.CreateUser(ctx, p, config.DefaultChatMode, now); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
	}

	user, err := s.store.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.HasDialog() {
		id, err := s.store.StartNewDialog(ctx, p.UserID, now)
		if err != nil {
			return nil, fmt.Errorf("start dialog: %w", err)
		}
		user.CurrentDialogID = id
	}
	return user, nil
}

// HandleMessage runs one user message through rotation, trimming, the model and persistence.
// On error neither the dialog history nor the token counter is changed.
func (s *DialogService) HandleMessage(ctx context.Context, userID int64, text string, now time.Time) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyMessage
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	previous := user.LastInteraction
	if err := s.store.SetAttribute(ctx, userID, domain.AttrLastInteraction, now); err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}

	reply := &Reply{DialogID: user.CurrentDialogID}
	var history []domain.Turn

	if reply.DialogID == "" {
		if reply.DialogID, err = s.store.StartNewDialog(ctx, userID, now); err != nil {
			return nil, fmt.Errorf("start dialog: %w", err)
		}
	} else {
		if history, err = s.store.GetDialogTurns(ctx, userID, reply.DialogID); err != nil {
			return nil, fmt.Errorf("load dialog: %w", err)
		}
		if s.expired(previous, now) && len(history) > 0 {
			if reply.DialogID, err = s.store.StartNewDialog(ctx, userID, now); err != nil {
				return nil, fmt.Errorf("rotate dialog: %w", err)
			}
			reply.Rotated = true
			history = nil
		}
	}

	kept, removed := TrimHistory(history, s.budget, s.size)
	reply.TurnsRemoved = removed

	completion, err := s.llm.Generate(ctx, Prompt{
		Text:    text,
		History: kept,
		Mode:    s.modes.Get(user.CurrentChatMode),
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	dropped := min(max(completion.TurnsRemoved, 0), len(kept))
	kept = kept[dropped:]
	reply.TurnsRemoved += dropped

	next := make([]domain.Turn, 0, len(kept)+1)
	next = append(next, kept...)
	next = append(next, domain.Turn{User: text, Bot: completion.Answer, Date: now})
	next, removed = TrimHistory(next, s.budget, s.size)
	reply.TurnsRemoved += removed

	tokens := max(completion.TokensUsed, 0)
	if err := s.store.CommitTurn(ctx, userID, reply.DialogID, next, int64(tokens)); err != nil {
		return nil, fmt.Errorf("save dialog: %w", err)
	}

	reply.Answer = completion.Answer
	reply.TokensUsed = tokens
	return reply, nil
}

// ResetDialog starts a fresh dialog and marks the user active. The previous dialog is kept.
func (s *DialogService) ResetDialog(ctx context.Context, userID int64, now time.Time) (string, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	id, err := s.store.StartNewDialog(ctx, userID, now)
	if err != nil {
		return "", fmt.Errorf("start dialog: %w", err)
	}
	if err := s.store.SetAttribute(ctx, userID, domain.AttrLastInteraction, now); err != nil {
		return "", fmt.Errorf("touch user: %w", err)
	}
	return id, nil
}

// SetChatMode switches the user's mode and starts a new dialog in it.
func (s *DialogService) SetChatMode(ctx context.Context, userID int64, key string, now time.Time) (config.ChatMode, error) {
	if !s.modes.Has(key) {
		return config.ChatMode{}, fmt.Errorf("%w: %q", domain.ErrUnknownChatMode, key)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.store.SetAttribute(ctx, userID, domain.AttrCurrentChatMode, key); err != nil {
		return config.ChatMode{}, fmt.Errorf("set chat mode: %w", err)
	}
	if _, err := s.store.StartNewDialog(ctx, userID, now); err != nil {
		return config.ChatMode{}, fmt.Errorf("start dialog: %w", err)
	}
	return s.modes.Get(key), nil
}

// Usage returns the total number of model tokens the user has consumed.
func (s *DialogService) Usage(ctx context.Context, userID int64) (int64, error) {
	v, err := s.store.GetAttribute(ctx, userID, domain.AttrUsedTokens)
	if err != nil {
		return 0, fmt.Errorf("get usage: %w", err)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("get usage: unexpected type %T", v)
	}
}

// UpsertGroup records a group chat the bot is active in.
func (s *DialogService) UpsertGroup(ctx context.Context, g domain.Group) error {
	if err := s.store.UpsertGroup(ctx, g); err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

func (s *DialogService) expired(previous, now time.Time) bool {
	if s.idleTimeout <= 0 || previous.IsZero() {
		return false
	}
	return now.Sub(previous) > s.idleTimeout
}
