package models

import (
	"database/sql"
	"time"
)

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

type PublishRecord struct {
	ID           int64         `db:"id" json:"id"`
	UserID       int64         `db:"user_id" json:"user_id"`
	CategoryID   int64         `db:"category_id" json:"category_id"`
	PlatformType PlatformType  `db:"platform_type" json:"platform_type"`
	PlatformID   int64         `db:"platform_id" json:"platform_id"`
	ScheduleID   sql.NullInt64 `db:"schedule_id" json:"-"`
	Trigger      Trigger       `db:"trigger_kind" json:"trigger"`
	Success      bool          `db:"success" json:"success"`
	TokensSpent  int64         `db:"tokens_spent" json:"tokens_spent"`
	PostURL      string        `db:"post_url" json:"post_url"`
	ErrorMessage string        `db:"error_message" json:"error_message"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

type PublishRecordFilter struct {
	UserID       int64
	PlatformType PlatformType
	Success      *bool
	Since        time.Time
	Limit        uint64
}

// PublishClaim is the durable at-most-once key for a scheduled publish.
type PublishClaim struct {
	ScheduleID int64     `db:"schedule_id"`
	MinuteKey  string    `db:"minute_key"`
	Owner      string    `db:"owner"`
	ClaimedAt  time.Time `db:"claimed_at"`
}

const minuteKeyLayout = "2006-01-02T15:04"

// MinuteKey identifies the calendar minute t falls in.
func MinuteKey(t time.Time) string {
	return t.Format(minuteKeyLayout)
}
