package models

import "time"

type NotificationKind string

const (
	NotificationDigest     NotificationKind = "digest"
	NotificationLowBalance NotificationKind = "low_balance"
)

func (k NotificationKind) Valid() bool {
	return k == NotificationDigest || k == NotificationLowBalance
}

type NotificationSchedule struct {
	ID        int64            `db:"id" json:"id"`
	UserID    int64            `db:"user_id" json:"user_id"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	Enabled   bool             `db:"enabled" json:"enabled"`
	Days      CodeList         `db:"days" json:"days"`
	Times     CodeList         `db:"times" json:"times"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

func (n *NotificationSchedule) Normalize() error {
	days, err := NormalizeDays(n.Days)
	if err != nil {
		return err
	}
	times, err := NormalizeTimes(n.Times)
	if err != nil {
		return err
	}
	n.Days, n.Times = days, times
	return nil
}

func (n *NotificationSchedule) IsDue(weekday, hhmm string) bool {
	return n != nil && n.Enabled && dueAt(n.Days, n.Times, weekday, hhmm)
}
