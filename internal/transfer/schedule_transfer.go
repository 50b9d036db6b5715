package transfer

import "time"

type ScheduleUpdate struct {
	Enabled     bool     `json:"enabled"`
	Days        []string `json:"days"`
	Times       []string `json:"times"`
	PostsPerDay int      `json:"posts_per_day"`
	Frequency   string   `json:"frequency"`
	SubTargets  []string `json:"sub_targets"`
}

type NotificationUpdate struct {
	Enabled bool     `json:"enabled"`
	Days    []string `json:"days"`
	Times   []string `json:"times"`
}

type PublishRequest struct {
	CategoryID   int64  `json:"category_id"`
	PlatformType string `json:"platform_type"`
	PlatformID   int64  `json:"platform_id"`
	SubTarget    string `json:"sub_target"`
}

type PublishResponse struct {
	Success     bool   `json:"success"`
	URL         string `json:"url,omitempty"`
	TokensSpent int64  `json:"tokens_spent"`
	Balance     int64  `json:"balance"`
}

type GenerateRequest struct {
	CategoryID int64 `json:"category_id"`
	Text       bool  `json:"text"`
	Image      bool  `json:"image"`
	Keywords   bool  `json:"keywords"`
}

type GenerateResponse struct {
	Text        string   `json:"text,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	TokensSpent int64    `json:"tokens_spent"`
	Balance     int64    `json:"balance"`
}

type BalanceInfo struct {
	Balance int64            `json:"balance"`
	Prices  map[string]int64 `json:"prices"`
	AsOf    time.Time        `json:"as_of"`
}
