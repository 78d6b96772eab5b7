package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TimeRange
		wantErr error
	}{
		{name: "canonical", input: "14:00-15:00", want: TimeRange{Start: 840, End: 900}},
		{name: "single digit hour", input: "9:05-10:30", want: TimeRange{Start: 545, End: 630}},
		{name: "spaces around dash", input: "09:00 - 09:30", want: TimeRange{Start: 540, End: 570}},
		{name: "one digit minute", input: "9:5-10:30", wantErr: ErrMalformedTimeRange},
		{name: "missing end", input: "14:00", wantErr: ErrMalformedTimeRange},
		{name: "hour out of range", input: "24:00-25:00", wantErr: ErrMalformedTimeRange},
		{name: "minute out of range", input: "10:60-11:00", wantErr: ErrMalformedTimeRange},
		{name: "text", input: "lunch", wantErr: ErrMalformedTimeRange},
		{name: "end before start", input: "15:00-14:00", wantErr: ErrInvalidOrdering},
		{name: "empty range", input: "15:00-15:00", wantErr: ErrInvalidOrdering},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeRange(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeRangeOverlaps(t *testing.T) {
	base := TimeRange{Start: 14 * 60, End: 15 * 60}

	tests := []struct {
		name  string
		other TimeRange
		want  bool
	}{
		{name: "identical", other: base, want: true},
		{name: "partial tail", other: TimeRange{Start: 14*60 + 30, End: 15*60 + 30}, want: true},
		{name: "partial head", other: TimeRange{Start: 13 * 60, End: 14*60 + 1}, want: true},
		{name: "contained", other: TimeRange{Start: 14*60 + 10, End: 14*60 + 20}, want: true},
		{name: "containing", other: TimeRange{Start: 13 * 60, End: 16 * 60}, want: true},
		{name: "adjacent after", other: TimeRange{Start: 15 * 60, End: 16 * 60}, want: false},
		{name: "adjacent before", other: TimeRange{Start: 13 * 60, End: 14 * 60}, want: false},
		{name: "disjoint", other: TimeRange{Start: 8 * 60, End: 9 * 60}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, base.Overlaps(tt.other), tt.other.Overlaps(base), "overlap must be symmetric")
		})
	}
}

func TestTimeRangeOverlapSymmetryExhaustive(t *testing.T) {
	// every range on a coarse 15 minute grid over a few hours
	var ranges []TimeRange
	for s := 8 * 60; s < 12*60; s += 15 {
		for e := s + 15; e <= 12*60; e += 15 {
			ranges = append(ranges, TimeRange{Start: s, End: e})
		}
	}
	for _, a := range ranges {
		for _, b := range ranges {
			if a.Overlaps(b) != b.Overlaps(a) {
				t.Fatalf("asymmetric overlap for %v and %v", a, b)
			}
		}
	}
}

func TestTimeRangeString(t *testing.T) {
	tr, err := ParseTimeRange("9:05 - 10:30")
	require.NoError(t, err)
	assert.Equal(t, "09:05-10:30", tr.String())
}
