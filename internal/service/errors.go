package service

import "errors"

var (
	ErrInsufficientTokens = errors.New("insufficient tokens")
	ErrTargetUnavailable  = errors.New("publish target unavailable")
	ErrAlreadyClaimed     = errors.New("minute already claimed")
	ErrPublishFailed      = errors.New("publish failed")
	ErrNotOwner           = errors.New("resource belongs to another user")
)
