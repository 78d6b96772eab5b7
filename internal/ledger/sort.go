package ledger

import (
	"sort"
	"time"

	"github.com/iliyamo/meeting-room-bot/internal/model"
)

// SortBookings returns a copy of bs ordered by (date, start) ascending.
// Rows whose date or time cannot be parsed keep their relative order and
// go after every parsable row.
func SortBookings(bs []model.Booking, loc *time.Location) []model.Booking {
	type keyed struct {
		b     model.Booking
		start time.Time
		ok    bool
	}
	ks := make([]keyed, len(bs))
	for i, b := range bs {
		start, _, ok := b.Interval(loc)
		ks[i] = keyed{b: b, start: start, ok: ok}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		a, b := ks[i], ks[j]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false
		}
		return a.start.Before(b.start)
	})
	out := make([]model.Booking, len(ks))
	for i, k := range ks {
		out[i] = k.b
	}
	return out
}
