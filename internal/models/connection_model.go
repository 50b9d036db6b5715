package models

import "time"

type PlatformType string

const (
	PlatformWordPress PlatformType = "wordpress"
	PlatformBlogger   PlatformType = "blogger"
	PlatformTelegram  PlatformType = "telegram"
	PlatformPinterest PlatformType = "pinterest"
	PlatformVK        PlatformType = "vk"
)

func (p PlatformType) Valid() bool {
	switch p {
	case PlatformWordPress, PlatformBlogger, PlatformTelegram, PlatformPinterest, PlatformVK:
		return true
	}
	return false
}

// PlatformConnection is one connected publishing target. ExternalID carries
// the routing information: site URL, blog id, channel id, board id or
// community id depending on the platform.
type PlatformConnection struct {
	ID           int64        `db:"id" json:"id"`
	AccountID    int64        `db:"account_id" json:"account_id"`
	PlatformType PlatformType `db:"platform_type" json:"platform_type"`
	ExternalID   string       `db:"external_id" json:"external_id"`
	Title        string       `db:"title" json:"title"`
	Credentials  string       `db:"credentials" json:"-"`
	IsActive     bool         `db:"is_active" json:"is_active"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// Credentials is the decrypted form of PlatformConnection.Credentials.
type Credentials struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	Username     string    `json:"username,omitempty"`
	Password     string    `json:"password,omitempty"`
	BotToken     string    `json:"bot_token,omitempty"`
}

func (c *Credentials) Empty() bool {
	return c == nil || (c.AccessToken == "" && c.Password == "" && c.BotToken == "")
}
