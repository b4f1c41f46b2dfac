package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
)

var newDialogID = func() string { return uuid.NewString() }

// attributeColumns whitelists the user attributes that may be read or written by name.
var attributeColumns = map[domain.UserAttribute]string{
	domain.AttrChatID:          "chat_id",
	domain.AttrUsername:        "username",
	domain.AttrFirstName:       "first_name",
	domain.AttrLastName:        "last_name",
	domain.AttrCurrentDialogID: "current_dialog_id",
	domain.AttrCurrentChatMode: "current_chat_mode",
	domain.AttrLastInteraction: "last_interaction",
	domain.AttrUsedTokens:      "n_used_tokens",
}

// Store persists users, dialogs and groups in Postgres.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

// CreateUser inserts a user with no current dialog. Existing users are left untouched.
func (s *Store) CreateUser(ctx context.Context, p domain.Profile, chatMode string, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, chat_id, username, first_name, last_name, current_chat_mode, last_interaction, first_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO NOTHING`,
		p.UserID, p.ChatID, p.Username, p.FirstName, p.LastName, chatMode, timeToPgTimestamptz(now),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	var (
		u               domain.User
		dialogID        pgtype.Text
		lastInteraction pgtype.Timestamptz
		firstSeen       pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, chat_id, username, first_name, last_name, current_dialog_id,
		       current_chat_mode, last_interaction, first_seen, n_used_tokens
		FROM users WHERE id = $1`, userID,
	).Scan(&u.ID, &u.ChatID, &u.Username, &u.FirstName, &u.LastName, &dialogID,
		&u.CurrentChatMode, &lastInteraction, &firstSeen, &u.UsedTokens)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CurrentDialogID = pgTextToString(dialogID)
	u.LastInteraction = pgTimestamptzToTime(lastInteraction)
	u.FirstSeen = pgTimestamptzToTime(firstSeen)
	return &u, nil
}

// StartNewDialog creates an empty dialog in the user's current chat mode and makes it current.
// The previous dialog is kept as is.
func (s *Store) StartNewDialog(ctx context.Context, userID int64, now time.Time) (string, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var chatMode string
	err = tx.QueryRow(ctx, `SELECT current_chat_mode FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&chatMode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("lock user: %w", err)
	}

	id := newDialogID()
	if _, err := tx.Exec(ctx, `
		INSERT INTO dialogs (id, user_id, chat_mode, start_time, turns)
		VALUES ($1, $2, $3, $4, '[]'::jsonb)`,
		id, userID, chatMode, timeToPgTimestamptz(now),
	); err != nil {
		return "", fmt.Errorf("insert dialog: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET current_dialog_id = $2 WHERE id = $1`, userID, id); err != nil {
		return "", fmt.Errorf("set current dialog: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func (s *Store) GetAttribute(ctx context.Context, userID int64, attr domain.UserAttribute) (any, error) {
	column, err := attributeColumn(attr)
	if err != nil {
		return nil, err
	}

	var value any
	err = s.db.QueryRow(ctx, "SELECT "+column+" FROM users WHERE id = $1", userID).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get %s: %w", attr, err)
	}
	if value == nil && attr == domain.AttrCurrentDialogID {
		return "", nil
	}
	return value, nil
}

func (s *Store) SetAttribute(ctx context.Context, userID int64, attr domain.UserAttribute, value any) error {
	column, err := attributeColumn(attr)
	if err != nil {
		return err
	}
	arg, err := attributeArg(attr, value)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, "UPDATE users SET "+column+" = $2 WHERE id = $1", userID, arg)
	if err != nil {
		return fmt.Errorf("set %s: %w", attr, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// GetDialogTurns returns the turns of dialogID, or of the current dialog when dialogID is empty.
func (s *Store) GetDialogTurns(ctx context.Context, userID int64, dialogID string) ([]domain.Turn, error) {
	dialogID, err := s.resolveDialog(ctx, s.db, userID, dialogID)
	if err != nil {
		return nil, err
	}

	var turns []domain.Turn
	err = s.db.QueryRow(ctx, `SELECT turns FROM dialogs WHERE id = $1 AND user_id = $2`, dialogID, userID).Scan(&turns)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDialogNotFound
		}
		return nil, fmt.Errorf("get dialog turns: %w", err)
	}
	return turns, nil
}

// SetDialogTurns replaces the turns of dialogID, or of the current dialog when dialogID is empty.
func (s *Store) SetDialogTurns(ctx context.Context, userID int64, turns []domain.Turn, dialogID string) error {
	dialogID, err := s.resolveDialog(ctx, s.db, userID, dialogID)
	if err != nil {
		return err
	}
	return setTurns(ctx, s.db, userID, dialogID, turns)
}

// CommitTurn stores the dialog history and adds tokensDelta to the user's counter in one transaction.
func (s *Store) CommitTurn(ctx context.Context, userID int64, dialogID string, turns []domain.Turn, tokensDelta int64) error {
	if tokensDelta < 0 {
		return fmt.Errorf("commit turn: negative token delta %d", tokensDelta)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	dialogID, err = s.resolveDialog(ctx, tx, userID, dialogID)
	if err != nil {
		return err
	}
	if err := setTurns(ctx, tx, userID, dialogID, turns); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `UPDATE users SET n_used_tokens = n_used_tokens + $2 WHERE id = $1`, userID, tokensDelta)
	if err != nil {
		return fmt.Errorf("add used tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpsertGroup records a group chat. A nil MemberCount leaves the stored count unchanged.
func (s *Store) UpsertGroup(ctx context.Context, g domain.Group) error {
	updatedAt := g.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO groups (id, name, member_count, updated_at)
		VALUES ($1, $2, COALESCE($3::INTEGER, 0), $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    member_count = COALESCE($3::INTEGER, groups.member_count),
		    updated_at = EXCLUDED.updated_at`,
		g.ID, g.Name, g.MemberCount, timeToPgTimestamptz(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) resolveDialog(ctx context.Context, q querier, userID int64, dialogID string) (string, error) {
	if dialogID != "" {
		return dialogID, nil
	}
	var current pgtype.Text
	err := q.QueryRow(ctx, `SELECT current_dialog_id FROM users WHERE id = $1`, userID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("get current dialog: %w", err)
	}
	if !current.Valid {
		return "", domain.ErrDialogNotFound
	}
	return current.String, nil
}

func setTurns(ctx context.Context, q querier, userID int64, dialogID string, turns []domain.Turn) error {
	if turns == nil {
		turns = []domain.Turn{}
	}
	tag, err := q.Exec(ctx, `UPDATE dialogs SET turns = $3 WHERE id = $1 AND user_id = $2`, dialogID, userID, turns)
	if err != nil {
		return fmt.Errorf("set dialog turns: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDialogNotFound
	}
	return nil
}

func attributeColumn(attr domain.UserAttribute) (string, error) {
	column, ok := attributeColumns[attr]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownAttribute, attr)
	}
	return column, nil
}

// attributeArg checks the Go type of value against the attribute and converts it to a query argument.
func attributeArg(attr domain.UserAttribute, value any) (any, error) {
	bad := func() (any, error) {
		return nil, fmt.Errorf("set %s: unexpected value type %T", attr, value)
	}
	switch attr {
	case domain.AttrChatID, domain.AttrUsedTokens:
		switch v := value.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		}
		return bad()
	case domain.AttrLastInteraction:
		if v, ok := value.(time.Time); ok {
			return timeToPgTimestamptz(v), nil
		}
		return bad()
	case domain.AttrCurrentDialogID:
		if v, ok := value.(string); ok {
			return stringToPgText(v), nil
		}
		return bad()
	default:
		if v, ok := value.(string); ok {
			return v, nil
		}
		return bad()
	}
}
