package models

import "time"

type Account struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Connections is filled on demand, keyed by platform type.
	Connections map[PlatformType][]*PlatformConnection `db:"-" json:"connections,omitempty"`
}

type Category struct {
	ID            int64     `db:"id" json:"id"`
	AccountID     int64     `db:"account_id" json:"account_id"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description"`
	Keywords      string    `db:"keywords" json:"keywords"`
	GenerateImage bool      `db:"generate_image" json:"generate_image"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Owner is the result of walking Category -> Account -> User.
type Owner struct {
	UserID   int64
	Account  *Account
	Category *Category
}
