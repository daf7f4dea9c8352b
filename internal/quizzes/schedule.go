package quizzes

import (
	"errors"
	"strings"
	"time"
)

// ErrIncompleteSchedule is returned when only one of date and time is given.
var ErrIncompleteSchedule = errors.New("schedule_date and schedule_time must be given together")

// ParseSchedule interprets date (YYYY-MM-DD) and clock (HH:MM) in loc. It returns the
// fire time and whether the send should be deferred; a missing or past time means now.
func ParseSchedule(date, clock string, loc *time.Location, now time.Time) (time.Time, bool, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" && clock == "" {
		return now, false, nil
	}
	if date == "" || clock == "" {
		return time.Time{}, false, ErrIncompleteSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	layout := "2006-01-02 15:04"
	if strings.Count(clock, ":") == 2 {
		layout = "2006-01-02 15:04:05"
	}
	at, err := time.ParseInLocation(layout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	if !at.After(now) {
		return now, false, nil
	}
	return at, true, nil
}
