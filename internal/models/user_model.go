package models

import "time"

type User struct {
	ID             int64     `db:"id" json:"id"`
	TelegramChatID int64     `db:"telegram_chat_id" json:"telegram_chat_id"`
	Username       string    `db:"username" json:"username"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type TokenBalance struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type TokenTopUp struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Amount    int64     `db:"amount" json:"amount"`
	Reference string    `db:"reference" json:"reference"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
