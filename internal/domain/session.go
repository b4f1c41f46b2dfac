package domain

import (
	"time"
)

// Dialog is one conversation bounded by session rotation.
type Dialog struct {
	ID        string
	UserID    int64
	ChatMode  string
	StartTime time.Time
	Turns     []Turn
}

// Turn is one user/bot exchange. Turns are never edited after they are appended.
type Turn struct {
	User string    `json:"user"`
	Bot  string    `json:"bot"`
	Date time.Time `json:"date"`
}
