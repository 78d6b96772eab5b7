package model

import (
	"strconv"
	"strings"
	"time"
)

// Layouts used by the persisted tables.  Dates carry no time of day and
// times are minute resolution wall clock values in the fixed zone.
const (
	DateLayout     = "02/01/2006"
	ClockLayout    = "15:04"
	DateTimeLayout = "02/01/2006 15:04:05"
)

// Row is one record of the bookings table exactly as it is persisted.
// Every field is kept as text so rows written by older versions (or by
// hand) can still be read back and classified.
//
// Fields:
//  Date       – booking day formatted as DD/MM/YYYY.
//  Time       – time range formatted as HH:MM-HH:MM.
//  Name       – display name of the requester.
//  TelegramID – numeric chat identity of the requester.
type Row struct {
	Date       string `json:"date"`        // bookings.booking_date
	Time       string `json:"time"`        // bookings.time_range
	Name       string `json:"name"`        // bookings.name
	TelegramID string `json:"telegram_id"` // bookings.telegram_id
}

// BookingHeader is row 0 of the bookings table.
var BookingHeader = Row{Date: "Date", Time: "Time", Name: "Name", TelegramID: "TelegramID"}

// Booking is a Row located in the table.  Index is the 1-based data row
// position (the header occupies index 0).  Positions are only valid until
// a row before it is removed or the table is rewritten.
type Booking struct {
	Index int `json:"index"`
	Row
}

// NewRow builds the canonical row for a validated booking.
func NewRow(day time.Time, span TimeRange, name string, ownerID int64) Row {
	return Row{
		Date:       day.Format(DateLayout),
		Time:       span.String(),
		Name:       name,
		TelegramID: strconv.FormatInt(ownerID, 10),
	}
}

// BookingsFromRows assigns positions to rows in store order.
func BookingsFromRows(rows []Row) []Booking {
	out := make([]Booking, len(rows))
	for i, r := range rows {
		out[i] = Booking{Index: i + 1, Row: r}
	}
	return out
}

// Rows strips positions from bookings.
func Rows(bs []Booking) []Row {
	out := make([]Row, len(bs))
	for i, b := range bs {
		out[i] = b.Row
	}
	return out
}

// Day parses the booking date at midnight in loc.
func (r Row) Day(loc *time.Location) (time.Time, bool) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(r.Date), loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Span parses the stored time range.
func (r Row) Span() (TimeRange, bool) {
	tr, err := ParseTimeRange(r.Time)
	if err != nil {
		return TimeRange{}, false
	}
	return tr, true
}

// Interval returns the absolute start and end instants of the booking.
// ok is false for rows whose date or time cannot be parsed.
func (r Row) Interval(loc *time.Location) (start, end time.Time, ok bool) {
	day, ok := r.Day(loc)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	span, ok := r.Span()
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return span.StartOn(day), span.EndOn(day), true
}

// Valid reports whether both date and time parse.
func (r Row) Valid(loc *time.Location) bool {
	_, _, ok := r.Interval(loc)
	return ok
}

// OwnedBy compares the stored identity with id.
func (r Row) OwnedBy(id int64) bool {
	return strings.TrimSpace(r.TelegramID) == strconv.FormatInt(id, 10)
}

// SameAs reports whether two rows carry identical values.
func (r Row) SameAs(o Row) bool {
	return r.Date == o.Date && r.Time == o.Time && r.Name == o.Name && r.TelegramID == o.TelegramID
}
