package service

import (
	"context"
	"time"

	"github.com/jishankai/sp-telegram-bot/internal/domain"
)

// Store is the persistence contract of the dialog engine.
// An empty dialogID addresses the user's current dialog.
type Store interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	CreateUser(ctx context.Context, p domain.Profile, chatMode string, now time.Time) error
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	StartNewDialog(ctx context.Context, userID int64, now time.Time) (string, error)
	GetAttribute(ctx context.Context, userID int64, attr domain.UserAttribute) (any, error)
	SetAttribute(ctx context.Context, userID int64, attr domain.UserAttribute, value any) error
	GetDialogTurns(ctx context.Context, userID int64, dialogID string) ([]domain.Turn, error)
	SetDialogTurns(ctx context.Context, userID int64, turns []domain.Turn, dialogID string) error
	// CommitTurn replaces the dialog turns and adds tokensDelta to n_used_tokens atomically.
	CommitTurn(ctx context.Context, userID int64, dialogID string, turns []domain.Turn, tokensDelta int64) error
	UpsertGroup(ctx context.Context, g domain.Group) error
}
