package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetroom_bookings_total",
			Help: "Booking attempts by result",
		},
		[]string{"result"},
	)

	CancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetroom_cancellations_total",
			Help: "Bookings cancelled by their owner",
		},
	)

	MeetingsEndedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetroom_meetings_ended_total",
			Help: "Meetings ended early by their owner",
		},
	)

	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetroom_sweep_runs_total",
			Help: "Expiry sweeps by outcome",
		},
		[]string{"outcome"},
	)

	SweepRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetroom_sweep_removed_total",
			Help: "Expired bookings removed by the sweep",
		},
	)

	ScheduleSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meetroom_schedule_size",
			Help: "Bookings in the table after the last mutation",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetroom_notifications_total",
			Help: "Outbound chat notifications",
		},
		[]string{"target", "status"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetroom_events_published_total",
			Help: "Schedule events published to the broker",
		},
		[]string{"kind", "status"},
	)

	ActivityLogFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetroom_activity_log_failures_total",
			Help: "Activity log appends that failed and were dropped",
		},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetroom_commands_total",
			Help: "Chat commands received",
		},
		[]string{"command"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetroom_http_requests_total",
			Help: "Ops/admin HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

func RecordBooking(result string) {
	BookingsTotal.WithLabelValues(result).Inc()
}

func RecordSweep(outcome string, removed int) {
	SweepRunsTotal.WithLabelValues(outcome).Inc()
	if removed > 0 {
		SweepRemovedTotal.Add(float64(removed))
	}
}

func SetScheduleSize(n int) {
	ScheduleSize.Set(float64(n))
}

func RecordNotification(target string, err error) {
	NotificationsTotal.WithLabelValues(target, status(err)).Inc()
}

func RecordEvent(kind string, err error) {
	EventsPublishedTotal.WithLabelValues(kind, status(err)).Inc()
}

func RecordCommand(command string) {
	CommandsTotal.WithLabelValues(command).Inc()
}

func RecordHTTPRequest(method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
