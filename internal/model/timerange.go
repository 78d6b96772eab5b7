package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrMalformedTimeRange is returned when the text is not H:MM-H:MM or a
	// field is out of range.
	ErrMalformedTimeRange = errors.New("malformed time range")
	// ErrInvalidOrdering is returned when the end is not after the start.
	ErrInvalidOrdering = errors.New("end must be after start")
)

var timeRangePattern = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*-\s*(\d{1,2}):(\d{2})\s*$`)

// TimeRange is a half-open interval [Start, End) in minutes of day.
// Ranges never span midnight.
type TimeRange struct {
	Start int
	End   int
}

// ParseTimeRange parses text such as "9:00-10:30" or "14:00 - 15:00".
func ParseTimeRange(text string) (TimeRange, error) {
	m := timeRangePattern.FindStringSubmatch(text)
	if m == nil {
		return TimeRange{}, ErrMalformedTimeRange
	}
	start, err := clockMinutes(m[1], m[2])
	if err != nil {
		return TimeRange{}, err
	}
	end, err := clockMinutes(m[3], m[4])
	if err != nil {
		return TimeRange{}, err
	}
	if end <= start {
		return TimeRange{}, ErrInvalidOrdering
	}
	return TimeRange{Start: start, End: end}, nil
}

func clockMinutes(hh, mm string) (int, error) {
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, ErrMalformedTimeRange
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, ErrMalformedTimeRange
	}
	return h*60 + m, nil
}

// Overlaps reports whether the two half-open ranges intersect.  Adjacent
// ranges (one ends where the other starts) do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return !(o.End <= r.Start || o.Start >= r.End)
}

// StartOn places the range start on the given day.
func (r TimeRange) StartOn(day time.Time) time.Time {
	return day.Add(time.Duration(r.Start) * time.Minute)
}

// EndOn places the range end on the given day.
func (r TimeRange) EndOn(day time.Time) time.Time {
	return day.Add(time.Duration(r.End) * time.Minute)
}

// String renders the canonical HH:MM-HH:MM form.
func (r TimeRange) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", r.Start/60, r.Start%60, r.End/60, r.End%60)
}
