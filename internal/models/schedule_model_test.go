package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformSchedule_DueOnlyAtListedDayAndTime(t *testing.T) {
	s := &PlatformSchedule{
		Enabled:     true,
		Days:        CodeList{"mon", "wed", "fri"},
		Times:       CodeList{"09:00", "18:00"},
		PostsPerDay: 2,
	}
	require.NoError(t, s.Normalize())

	// Walk every minute of a week starting Monday 2026-10-12.
	start := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	var due []string
	for m := 0; m < 7*24*60; m++ {
		at := start.Add(time.Duration(m) * time.Minute)
		if s.IsDue(DayCode(at.Weekday()), at.Format("15:04")) {
			due = append(due, DayCode(at.Weekday())+" "+at.Format("15:04"))
		}
	}

	assert.Equal(t, []string{
		"mon 09:00", "mon 18:00",
		"wed 09:00", "wed 18:00",
		"fri 09:00", "fri 18:00",
	}, due)

	assert.True(t, s.IsDue("Wednesday", "09:00"))
	assert.True(t, s.IsDue("WED", "18:00"))
	assert.False(t, s.IsDue("wed", "09:01"))
	assert.False(t, s.IsDue("wed", "9:00"))
	assert.False(t, s.IsDue("thu", "09:00"))
}

func TestPlatformSchedule_DisabledIsNeverDue(t *testing.T) {
	s := &PlatformSchedule{Days: CodeList{"mon"}, Times: CodeList{"09:00"}}
	assert.False(t, s.IsDue("mon", "09:00"))

	var empty *PlatformSchedule
	assert.False(t, empty.IsDue("mon", "09:00"))
}

func TestPlatformSchedule_Normalize(t *testing.T) {
	s := &PlatformSchedule{
		Enabled: true,
		Days:    CodeList{"Friday", "mon", "MONDAY", "wed"},
		Times:   CodeList{"18:00", "9:00", "09:00"},
	}
	require.NoError(t, s.Normalize())

	assert.Equal(t, CodeList{"mon", "wed", "fri"}, s.Days)
	assert.Equal(t, CodeList{"09:00", "18:00"}, s.Times)
	assert.Equal(t, 2, s.PostsPerDay)
	assert.Equal(t, FrequencyDaily, s.Frequency)
}

func TestPlatformSchedule_NormalizeRejects(t *testing.T) {
	cases := map[string]PlatformSchedule{
		"posts per day mismatch": {Enabled: true, Days: CodeList{"mon"}, Times: CodeList{"09:00", "10:00"}, PostsPerDay: 3},
		"bad day":                {Days: CodeList{"someday"}},
		"bad time":               {Times: CodeList{"25:00"}},
		"bad frequency":          {Frequency: "hourly"},
	}

	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			before := s
			err := s.Normalize()
			assert.ErrorIs(t, err, ErrInvalidSchedule)
			assert.Equal(t, before, s)
		})
	}
}

func TestPlatformSchedule_DisabledKeepsPostsPerDay(t *testing.T) {
	s := &PlatformSchedule{Times: CodeList{"09:00"}, PostsPerDay: 4}
	require.NoError(t, s.Normalize())
	assert.Equal(t, 4, s.PostsPerDay)
}

func TestPlatformSchedule_SubTargetRotation(t *testing.T) {
	s := &PlatformSchedule{
		Times:      CodeList{"09:00", "12:00", "18:00"},
		SubTargets: SubTargets{"board-a", "board-b"},
	}
	assert.Equal(t, "board-a", s.SubTargetFor("09:00"))
	assert.Equal(t, "board-b", s.SubTargetFor("12:00"))
	assert.Equal(t, "board-a", s.SubTargetFor("18:00"))

	s.SubTargets = nil
	assert.Equal(t, "", s.SubTargetFor("09:00"))
}

func TestDayCode(t *testing.T) {
	assert.Equal(t, "sun", DayCode(time.Sunday))
	assert.Equal(t, "mon", DayCode(time.Monday))
	assert.Equal(t, "sat", DayCode(time.Saturday))
}

func TestCodeList_Scan(t *testing.T) {
	var l CodeList
	require.NoError(t, l.Scan(",mon,wed,"))
	assert.Equal(t, CodeList{"mon", "wed"}, l)

	require.NoError(t, l.Scan([]byte("")))
	assert.Empty(t, l)

	v, err := CodeList{"09:00", "18:00"}.Value()
	require.NoError(t, err)
	assert.Equal(t, ",09:00,18:00,", v)
}
