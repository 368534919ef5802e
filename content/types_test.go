package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettingsGet(t *testing.T) {
	s := Settings{"hero_title": "DJ Virtu", "empty": ""}
	assert.Equal(t, "DJ Virtu", s.Get("hero_title", "x"))
	assert.Equal(t, "fallback", s.Get("missing", "fallback"))
	assert.Equal(t, "fallback", s.Get("empty", "fallback"))

	var nilSettings Settings
	assert.Equal(t, "fallback", nilSettings.Get("anything", "fallback"))
}

func TestEventUpcoming(t *testing.T) {
	now := time.Date(2026, time.August, 26, 18, 30, 0, 0, time.UTC)

	cases := []struct {
		name     string
		date     string
		upcoming bool
	}{
		{"tomorrow", "2026-08-27", true},
		{"today regardless of hour", "2026-08-26", true},
		{"yesterday", "2026-08-25", false},
		{"far future", "2027-01-01", true},
		{"malformed date sorts as past", "26/08/2026", false},
		{"empty date", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := Event{Date: tc.date}
			assert.Equal(t, tc.upcoming, e.Upcoming(now))
		})
	}
}

func TestEventDate(t *testing.T) {
	assert.Equal(t, time.Date(2026, time.November, 20, 0, 0, 0, 0, time.UTC), Event{Date: "2026-11-20"}.EventDate())
	assert.True(t, Event{Date: "soon"}.EventDate().IsZero())
}
