package transfer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type CustomClaims struct {
	UserID string `json:"user_id"`
	ChatID int64  `json:"chat_id,omitempty"`
	jwt.RegisteredClaims
}

type TokenRequest struct {
	ChatID   int64  `json:"chat_id"`
	Username string `json:"username"`
}

type TokenResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
}

type UserInfo struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	TelegramChatID int64     `json:"telegram_chat_id"`
	Balance        int64     `json:"balance"`
	LowBalance     bool      `json:"low_balance"`
	MemberSince    time.Time `json:"member_since"`
}
