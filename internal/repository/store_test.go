package repository

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jishankai/sp-telegram-bot/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestAttributeColumn(t *testing.T) {
	col, err := attributeColumn(domain.AttrUsedTokens)
	require.NoError(t, err)
	require.Equal(t, "n_used_tokens", col)

	_, err = attributeColumn(domain.UserAttribute("balance; DROP TABLE users"))
	require.ErrorIs(t, err, domain.ErrUnknownAttribute)
}

func TestAttributeArg(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	arg, err := attributeArg(domain.AttrLastInteraction, now)
	require.NoError(t, err)
	require.Equal(t, pgtype.Timestamptz{Time: now, Valid: true}, arg)

	arg, err = attributeArg(domain.AttrUsedTokens, 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), arg)

	arg, err = attributeArg(domain.AttrCurrentDialogID, "")
	require.NoError(t, err)
	require.Equal(t, pgtype.Text{}, arg)

	arg, err = attributeArg(domain.AttrCurrentChatMode, "code_assistant")
	require.NoError(t, err)
	require.Equal(t, "code_assistant", arg)

	_, err = attributeArg(domain.AttrLastInteraction, "yesterday")
	require.Error(t, err)

	_, err = attributeArg(domain.AttrChatID, "100")
	require.Error(t, err)
}

func TestNewDialogID_Unique(t *testing.T) {
	a, b := newDialogID(), newDialogID()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}
