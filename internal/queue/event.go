// Package queue defines the schedule events exchanged over RabbitMQ and
// the publisher/consumer pair that moves them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds double as routing keys on the events exchange.
const (
	KindBookingAdded     = "booking.added"
	KindBookingCancelled = "booking.cancelled"
	KindMeetingEnded     = "meeting.ended"
	KindScheduleSwept    = "schedule.swept"
	KindSweepFailed      = "schedule.sweep_failed"
	KindAnnouncement     = "announcement.sent"
)

// Slot is one booking as carried by an event.
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
	Name string `json:"name"`
}

// ScheduleEvent is published after every schedule change.  It carries
// enough for downstream consumers to log or notify without reading the
// bookings table.
type ScheduleEvent struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	ActorID    int64  `json:"actor_id,omitempty"`
	ActorName  string `json:"actor_name,omitempty"`
	Slots      []Slot `json:"slots,omitempty"`
	Remaining  int    `json:"remaining"`
	Text       string `json:"text,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// NewEvent stamps a fresh id and time on an event of the given kind.
func NewEvent(kind string, now time.Time) ScheduleEvent {
	return ScheduleEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: now.Format(time.RFC3339),
	}
}
