package model

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrMalformedDate is returned for text that is not D/M[/Y] or names a
	// day that does not exist.
	ErrMalformedDate = errors.New("malformed date")
	// ErrPastDate is returned for a valid date before today.
	ErrPastDate = errors.New("date is in the past")
)

var datePattern = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?\s*$`)

// ParseBookingDate parses day/month[/year] relative to now.  The year
// defaults to now's year, two digit years are taken as 20YY.  The result is
// midnight of that day in now's location.  Today is accepted.
func ParseBookingDate(text string, now time.Time) (time.Time, error) {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, ErrMalformedDate
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := now.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, ErrMalformedDate
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	// time.Date normalizes 31/02 into March; reject instead.
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, ErrMalformedDate
	}
	if d.Before(StartOfDay(now)) {
		return time.Time{}, ErrPastDate
	}
	return d, nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
