package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-bot/internal/ledger"
	"github.com/iliyamo/meeting-room-bot/internal/logger"
	"github.com/iliyamo/meeting-room-bot/internal/metrics"
	"github.com/iliyamo/meeting-room-bot/internal/model"
	"github.com/iliyamo/meeting-room-bot/internal/queue"
)

// EventPublisher is satisfied by *queue.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ScheduleEvent) error
}

// Notifier turns ledger outcomes into group broadcasts, admin alerts and
// bus events.  The chat message goes out first.  Broadcast errors are
// returned; event errors are only logged and counted.
type Notifier struct {
	gw     Gateway
	events EventPublisher
	clock  func() time.Time
	log    *zap.Logger
}

// NewNotifier wires a gateway and an optional publisher (nil disables
// events).
func NewNotifier(gw Gateway, events EventPublisher, log *zap.Logger) *Notifier {
	return &Notifier{gw: gw, events: events, clock: time.Now, log: logger.OrNop(log)}
}

func (n *Notifier) BookingAdded(ctx context.Context, actorID int64, actor string, m ledger.Mutation) error {
	err := n.gw.Broadcast(ctx, FormatBookingAdded(actor, m))
	n.publish(ctx, queue.KindBookingAdded, actorID, actor, []model.Booking{m.Booking}, len(m.Schedule), "")
	return err
}

func (n *Notifier) BookingCancelled(ctx context.Context, actorID int64, actor string, m ledger.Mutation) error {
	err := n.gw.Broadcast(ctx, FormatBookingCancelled(actor, m))
	n.publish(ctx, queue.KindBookingCancelled, actorID, actor, []model.Booking{m.Booking}, len(m.Schedule), "")
	return err
}

func (n *Notifier) MeetingEnded(ctx context.Context, actorID int64, actor string, m ledger.Mutation) error {
	err := n.gw.Broadcast(ctx, FormatMeetingEnded(actor, m))
	n.publish(ctx, queue.KindMeetingEnded, actorID, actor, []model.Booking{m.Booking}, len(m.Schedule), "")
	return err
}

// Swept broadcasts a successful sweep.  Empty sweeps send nothing.
func (n *Notifier) Swept(ctx context.Context, res ledger.SweepResult) error {
	if len(res.Removed) == 0 {
		return nil
	}
	err := n.gw.Broadcast(ctx, FormatSweep(res))
	n.publish(ctx, queue.KindScheduleSwept, 0, "", res.Removed, len(res.Kept), "")
	return err
}

// SweepFailed alerts the administrator that the rewrite did not complete.
func (n *Notifier) SweepFailed(ctx context.Context, res ledger.SweepResult, cause error) error {
	err := n.gw.NotifyAdmin(ctx, FormatSweepFailure(res, cause))
	n.publish(ctx, queue.KindSweepFailed, 0, "", res.Removed, len(res.Kept), cause.Error())
	return err
}

func (n *Notifier) Announce(ctx context.Context, actorID int64, actor, text string) error {
	err := n.gw.Broadcast(ctx, FormatAnnouncement(text))
	n.publish(ctx, queue.KindAnnouncement, actorID, actor, nil, 0, text)
	return err
}

// Alert forwards free text to the administrator.
func (n *Notifier) Alert(ctx context.Context, text string) error {
	return n.gw.NotifyAdmin(ctx, text)
}

func (n *Notifier) publish(ctx context.Context, kind string, actorID int64, actor string, bs []model.Booking, remaining int, text string) {
	if n.events == nil {
		return
	}
	ev := queue.NewEvent(kind, n.clock())
	ev.ActorID = actorID
	ev.ActorName = actor
	ev.Remaining = remaining
	ev.Text = text
	for _, b := range bs {
		ev.Slots = append(ev.Slots, queue.Slot{Date: b.Date, Time: b.Time, Name: b.Name})
	}
	err := n.events.Publish(ctx, ev)
	metrics.RecordEvent(kind, err)
	if err != nil {
		n.log.Warn("event publish failed", zap.String("kind", kind), zap.Error(err))
	}
}
