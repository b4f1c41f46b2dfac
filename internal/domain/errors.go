package domain

import "errors"

var (
	ErrEmptyMessage      = errors.New("empty message")
	ErrEmptySymbol       = errors.New("empty symbol")
	ErrUserNotFound      = errors.New("user not found")
	ErrDialogNotFound    = errors.New("dialog not found")
	ErrUnknownAttribute  = errors.New("unknown user attribute")
	ErrUnknownSymbol     = errors.New("unknown symbol")
	ErrUnknownChatMode   = errors.New("unknown chat mode")
	ErrMetricUnavailable = errors.New("metric unavailable")
	ErrProtocolViolation = errors.New("protocol violation")
)
