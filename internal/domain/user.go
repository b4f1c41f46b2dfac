package domain

import "time"

type User struct {
	ID              int64
	ChatID          int64
	Username        string
	FirstName       string
	LastName        string
	CurrentDialogID string // empty only before the first dialog is started
	CurrentChatMode string
	LastInteraction time.Time
	FirstSeen       time.Time
	UsedTokens      int64
}

// Profile is what the transport knows about a user on first contact.
type Profile struct {
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
}

// UserAttribute names a single mutable field of a stored user.
type UserAttribute string

const (
	AttrChatID          UserAttribute = "chat_id"
	AttrUsername        UserAttribute = "username"
	AttrFirstName       UserAttribute = "first_name"
	AttrLastName        UserAttribute = "last_name"
	AttrCurrentDialogID UserAttribute = "current_dialog_id"
	AttrCurrentChatMode UserAttribute = "current_chat_mode"
	AttrLastInteraction UserAttribute = "last_interaction"
	AttrUsedTokens      UserAttribute = "n_used_tokens"
)

func (u *User) HasDialog() bool {
	return u.CurrentDialogID != ""
}
