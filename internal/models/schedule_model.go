package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyCustom Frequency = "custom"
)

// PlatformSchedule drives auto-publishing of one category to one platform
// instance. Enabled schedules with times set always satisfy
// PostsPerDay == len(Times) once saved.
type PlatformSchedule struct {
	ID           int64        `db:"id" json:"id"`
	CategoryID   int64        `db:"category_id" json:"category_id"`
	PlatformType PlatformType `db:"platform_type" json:"platform_type"`
	PlatformID   int64        `db:"platform_id" json:"platform_id"`
	Enabled      bool         `db:"enabled" json:"enabled"`
	Days         CodeList     `db:"days" json:"days"`
	Times        CodeList     `db:"times" json:"times"`
	PostsPerDay  int          `db:"posts_per_day" json:"posts_per_day"`
	Frequency    Frequency    `db:"frequency" json:"frequency"`
	SubTargets   SubTargets   `db:"sub_targets" json:"sub_targets"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// Normalize canonicalizes days and times and enforces the posts-per-day
// invariant. It mutates s only when it returns nil.
func (s *PlatformSchedule) Normalize() error {
	days, err := NormalizeDays(s.Days)
	if err != nil {
		return err
	}
	times, err := NormalizeTimes(s.Times)
	if err != nil {
		return err
	}

	freq := s.Frequency
	switch freq {
	case "":
		freq = FrequencyDaily
	case FrequencyDaily, FrequencyWeekly, FrequencyCustom:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidSchedule, s.Frequency)
	}

	postsPerDay := s.PostsPerDay
	if postsPerDay < 0 {
		return fmt.Errorf("%w: posts_per_day must not be negative", ErrInvalidSchedule)
	}
	if s.Enabled && len(times) > 0 {
		if postsPerDay == 0 {
			postsPerDay = len(times)
		}
		if postsPerDay != len(times) {
			return fmt.Errorf("%w: posts_per_day is %d but %d times are set", ErrInvalidSchedule, postsPerDay, len(times))
		}
	}

	s.Days, s.Times, s.Frequency, s.PostsPerDay = days, times, freq, postsPerDay
	return nil
}

// IsDue reports whether the schedule fires at the given weekday and minute.
// Matching is exact; there is no range or catch-up matching.
func (s *PlatformSchedule) IsDue(weekday, hhmm string) bool {
	if s == nil || !s.Enabled {
		return false
	}
	return dueAt(s.Days, s.Times, weekday, hhmm)
}

// SubTargetFor rotates through SubTargets by the position of hhmm in Times.
func (s *PlatformSchedule) SubTargetFor(hhmm string) string {
	if len(s.SubTargets) == 0 {
		return ""
	}
	idx := slices.Index(s.Times, hhmm)
	if idx < 0 {
		idx = 0
	}
	return s.SubTargets[idx%len(s.SubTargets)]
}

func dueAt(days, times CodeList, weekday, hhmm string) bool {
	day, err := NormalizeDay(weekday)
	if err != nil {
		return false
	}
	return days.Contains(day) && times.Contains(hhmm)
}

var weekOrder = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

var dayAliases = map[string]string{
	"mon": "mon", "monday": "mon",
	"tue": "tue", "tues": "tue", "tuesday": "tue",
	"wed": "wed", "wednesday": "wed",
	"thu": "thu", "thur": "thu", "thurs": "thu", "thursday": "thu",
	"fri": "fri", "friday": "fri",
	"sat": "sat", "saturday": "sat",
	"sun": "sun", "sunday": "sun",
}

// DayCode maps a weekday onto the short code stored in schedules.
func DayCode(d time.Weekday) string {
	return weekOrder[(int(d)+6)%7]
}

// NormalizeDay accepts short or full day names in any case.
func NormalizeDay(day string) (string, error) {
	code, ok := dayAliases[strings.ToLower(strings.TrimSpace(day))]
	if !ok {
		return "", fmt.Errorf("%w: unknown day %q", ErrInvalidSchedule, day)
	}
	return code, nil
}

// NormalizeDays returns the distinct short codes in week order.
func NormalizeDays(days []string) (CodeList, error) {
	seen := make(map[string]bool, len(days))
	for _, d := range days {
		code, err := NormalizeDay(d)
		if err != nil {
			return nil, err
		}
		seen[code] = true
	}

	out := make(CodeList, 0, len(seen))
	for _, code := range weekOrder {
		if seen[code] {
			out = append(out, code)
		}
	}
	return out, nil
}

// NormalizeTimes validates HH:MM values and returns them distinct and sorted.
func NormalizeTimes(times []string) (CodeList, error) {
	out := make(CodeList, 0, len(times))
	for _, raw := range times {
		t, err := time.Parse("15:04", strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: bad time %q", ErrInvalidSchedule, raw)
		}
		hhmm := t.Format("15:04")
		if !slices.Contains(out, hhmm) {
			out = append(out, hhmm)
		}
	}
	slices.Sort(out)
	return out, nil
}

// CodeList is stored as ",a,b,c," so a single LIKE '%,a,%' narrows rows.
type CodeList []string

func (l CodeList) Contains(code string) bool {
	return slices.Contains(l, code)
}

func (l CodeList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "", nil
	}
	return "," + strings.Join(l, ",") + ",", nil
}

func (l *CodeList) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("code list: unsupported type %T", src)
	}

	s = strings.Trim(s, ",")
	if s == "" {
		*l = CodeList{}
		return nil
	}
	*l = strings.Split(s, ",")
	return nil
}

// SubTargets is stored as a JSON array.
type SubTargets []string

func (t SubTargets) Value() (driver.Value, error) {
	if len(t) == 0 {
		return "", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *SubTargets) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("sub targets: unsupported type %T", src)
	}

	if len(b) == 0 {
		*t = SubTargets{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*t = out
	return nil
}
