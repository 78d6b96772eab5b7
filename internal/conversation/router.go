// Package conversation routes chat messages to the booking ledger and the
// admin tools, keeping a small per-user state machine between messages.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-bot/internal/docs"
	"github.com/iliyamo/meeting-room-bot/internal/ledger"
	"github.com/iliyamo/meeting-room-bot/internal/logger"
	"github.com/iliyamo/meeting-room-bot/internal/metrics"
	"github.com/iliyamo/meeting-room-bot/internal/model"
	"github.com/iliyamo/meeting-room-bot/internal/notify"
	"github.com/iliyamo/meeting-room-bot/internal/ratelimit"
)

// Document is an attachment on an incoming message.
type Document struct {
	FileID   string
	FileName string
}

// Message is one incoming chat message.
type Message struct {
	ChatID    int64
	UserID    int64
	FirstName string
	Text      string
	Document  *Document
}

// Reply is an outgoing text.  Keyboard, when set, is shown as a one-time
// keyboard with one button per row.
type Reply struct {
	Text           string
	Markdown       bool
	Keyboard       []string
	RemoveKeyboard bool
}

type Replier interface {
	Reply(ctx context.Context, chatID int64, r Reply) error
	SendFile(ctx context.Context, chatID int64, path, caption string) error
}

// FileFetcher downloads an uploaded file by its transport id.
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, error)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// Ledger is the booking surface the router drives.
type Ledger interface {
	Now() time.Time
	Location() *time.Location
	ParseDate(text string) (time.Time, error)
	Book(ctx context.Context, day time.Time, timeText, ownerName string, ownerID int64) (ledger.Mutation, error)
	Cancel(ctx context.Context, ownerID int64) ([]model.Booking, error)
	DeleteByIndex(ctx context.Context, ownerID int64, selection []model.Booking, choice string) (ledger.Mutation, error)
	EndMeeting(ctx context.Context, ownerID int64, now time.Time) (ledger.Mutation, error)
	SortedView(ctx context.Context) ([]model.Booking, error)
}

type Notifier interface {
	BookingAdded(ctx context.Context, actorID int64, actor string, m ledger.Mutation) error
	BookingCancelled(ctx context.Context, actorID int64, actor string, m ledger.Mutation) error
	MeetingEnded(ctx context.Context, actorID int64, actor string, m ledger.Mutation) error
	Announce(ctx context.Context, actorID int64, actor, text string) error
}

type Sweeper interface {
	RunOnce(ctx context.Context) (ledger.SweepResult, error)
}

type Activity interface {
	Record(ctx context.Context, ownerID int64, ownerName, command string, now time.Time)
	Summarize(ctx context.Context) ([]model.UserSummary, error)
}

type Library interface {
	List() ([]string, error)
	Path(name string) (string, error)
	Save(name string, r io.Reader) (string, error)
}

// Deps wires a Router.  Limiter may be nil.
type Deps struct {
	Ledger   Ledger
	Notifier Notifier
	Sweeper  Sweeper
	Activity Activity
	Docs     Library
	States   StateStore
	Replier  Replier
	Files    FileFetcher
	Limiter  Limiter
	AdminID  int64
	Log      *zap.Logger
}

// Router handles every incoming message.  Messages from one user must be
// delivered in order; messages from different users may run concurrently.
type Router struct {
	Deps
	log *zap.Logger
}

func NewRouter(d Deps) *Router {
	return &Router{Deps: d, log: logger.OrNop(d.Log)}
}

const (
	docButtonPrefix = "📄 "
	genericFailure  = "⚠️ Something went wrong. Please try again later."
)

// Commands lists the menu shown to everyone; AdminCommands is appended for
// the administrator.
var (
	Commands = []Command{
		{"start", "Start bot"},
		{"book", "Book room"},
		{"cancel", "Cancel booking"},
		{"end", "End meeting"},
		{"docs", "Download documents"},
		{"schedule", "Show schedule"},
		{"abort", "Leave the current step"},
	}
	AdminCommands = []Command{
		{"announce", "Send announcement"},
		{"stats", "View user stats"},
		{"clean", "Clean expired"},
		{"uploaddoc", "Upload document"},
	}
)

func known(cmd string) bool {
	for _, c := range append(Commands, AdminCommands...) {
		if "/"+c.Name == cmd {
			return true
		}
	}
	return false
}

// Command is a menu entry.
type Command struct {
	Name        string
	Description string
}

const welcome = "👋 Welcome!\n\nCommands:\n" +
	"/book - Book meeting room\n" +
	"/cancel - Cancel booking\n" +
	"/end - End your meeting\n" +
	"/docs - Download files\n" +
	"/schedule - Show schedule\n" +
	"/abort - Leave the current step\n\n" +
	"(Admin) /announce /stats /clean /uploaddoc"

// Handle processes one message.  Errors from the replier are returned;
// everything else is answered in chat.
func (r *Router) Handle(ctx context.Context, m Message) error {
	if r.Limiter != nil {
		d, err := r.Limiter.Allow(ctx, "user:"+strconv.FormatInt(m.UserID, 10))
		if err != nil {
			r.log.Warn("rate limiter unavailable", zap.Error(err))
		}
		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			return r.say(ctx, m, fmt.Sprintf("⏳ Too many requests. Try again in %ds.", secs))
		}
	}

	if cmd, ok := parseCommand(m.Text); ok {
		return r.command(ctx, m, cmd)
	}

	st, err := r.States.Get(ctx, keyOf(m))
	if err != nil {
		r.log.Error("load conversation state", zap.Int64("user_id", m.UserID), zap.Error(err))
		return r.say(ctx, m, genericFailure)
	}
	switch st.Step {
	case StepAwaitingDate:
		return r.onDate(ctx, m)
	case StepAwaitingTime:
		return r.onTime(ctx, m, st)
	case StepAwaitingCancelSelection:
		return r.onCancelSelection(ctx, m, st)
	case StepAwaitingAnnouncement:
		return r.onAnnouncement(ctx, m)
	case StepAwaitingDocument:
		return r.onDocument(ctx, m)
	case StepAwaitingDocSelection:
		return r.onDocSelection(ctx, m)
	}
	return nil
}

// parseCommand extracts "/name" from "/name@bot args".
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text)[0]
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	return strings.ToLower(name), true
}

func (r *Router) command(ctx context.Context, m Message, cmd string) error {
	if known(cmd) {
		metrics.RecordCommand(cmd)
	} else {
		metrics.RecordCommand("unknown")
	}

	var prev State
	if cmd == "/abort" {
		prev, _ = r.States.Get(ctx, keyOf(m))
	}
	r.reset(ctx, m)

	switch cmd {
	case "/start":
		r.record(ctx, m, cmd)
		return r.say(ctx, m, welcome)
	case "/book":
		r.record(ctx, m, cmd)
		return r.advance(ctx, m, State{Step: StepAwaitingDate}, Reply{Text: "📅 Enter date (e.g. 30/10 or 30/10/2025):"})
	case "/cancel":
		r.record(ctx, m, cmd)
		return r.startCancel(ctx, m)
	case "/end":
		r.record(ctx, m, cmd)
		return r.endMeeting(ctx, m)
	case "/schedule":
		return r.showSchedule(ctx, m)
	case "/docs":
		return r.docsMenu(ctx, m)
	case "/abort":
		if prev.Step == "" || prev.Step == StepIdle {
			return r.say(ctx, m, "Nothing to abort.")
		}
		return r.reply(ctx, m, Reply{Text: "🛑 Stopped.", RemoveKeyboard: true})
	case "/announce", "/stats", "/clean", "/uploaddoc":
		err := ledger.Authorize(m.UserID, r.AdminID)
		switch {
		case errors.Is(err, ledger.ErrUnauthorized):
			r.log.Info("unauthorized admin command", zap.Int64("user_id", m.UserID), zap.String("command", cmd))
			return r.say(ctx, m, "🚫 Unauthorized.")
		case err != nil:
			return r.fail(ctx, m, "authorize", err)
		}
		return r.admin(ctx, m, cmd)
	}
	return r.say(ctx, m, "❓ Unknown command. Send /start for the list.")
}

func (r *Router) admin(ctx context.Context, m Message, cmd string) error {
	switch cmd {
	case "/announce":
		return r.advance(ctx, m, State{Step: StepAwaitingAnnouncement}, Reply{Text: "📝 Type announcement:"})
	case "/uploaddoc":
		return r.advance(ctx, m, State{Step: StepAwaitingDocument}, Reply{Text: "📤 Send document:", RemoveKeyboard: true})
	case "/stats":
		sums, err := r.Activity.Summarize(ctx)
		if err != nil {
			return r.say(ctx, m, "⚠️ Could not read stats: "+err.Error())
		}
		return r.reply(ctx, m, Reply{Text: notify.FormatStats(sums), Markdown: true})
	default:
		res, err := r.Sweeper.RunOnce(ctx)
		switch {
		case err != nil:
			return r.say(ctx, m, "⚠️ Cleanup failed: "+err.Error())
		case len(res.Removed) == 0:
			return r.say(ctx, m, "✨ No expired bookings to clean.")
		}
		return r.say(ctx, m, "✅ Cleanup done.")
	}
}

func (r *Router) onDate(ctx context.Context, m Message) error {
	day, err := r.Ledger.ParseDate(m.Text)
	switch {
	case errors.Is(err, ledger.ErrPastDate):
		return r.say(ctx, m, "⚠️ Invalid or past date.")
	case err != nil:
		return r.say(ctx, m, "❌ Format: DD/MM or DD/MM/YYYY")
	}
	st := State{Step: StepAwaitingTime, Date: day.Format(model.DateLayout)}
	return r.advance(ctx, m, st, Reply{Text: "⏰ Enter time range (e.g. 14:00-15:00):"})
}

func (r *Router) onTime(ctx context.Context, m Message, st State) error {
	day, err := time.ParseInLocation(model.DateLayout, st.Date, r.Ledger.Location())
	if err != nil {
		r.log.Error("corrupt pending date", zap.String("date", st.Date), zap.Error(err))
		return r.advance(ctx, m, State{Step: StepAwaitingDate}, Reply{Text: "📅 Enter date (e.g. 30/10 or 30/10/2025):"})
	}
	name := displayName(m)
	mut, err := r.Ledger.Book(ctx, day, m.Text, name, m.UserID)
	switch {
	case errors.Is(err, model.ErrInvalidOrdering):
		return r.say(ctx, m, "⚠️ End must be after start.")
	case errors.Is(err, ledger.ErrMalformedInput):
		return r.say(ctx, m, "❌ Format: HH:MM-HH:MM")
	case errors.Is(err, ledger.ErrOverlap):
		return r.say(ctx, m, "⚠️ Overlaps another booking.")
	case errors.Is(err, ledger.ErrPastDate):
		return r.advance(ctx, m, State{Step: StepAwaitingDate}, Reply{Text: "⚠️ Invalid or past date.\n📅 Enter date (e.g. 30/10 or 30/10/2025):"})
	case err != nil:
		return r.fail(ctx, m, "book", err)
	}
	r.reset(ctx, m)
	if err := r.say(ctx, m, fmt.Sprintf("✅ Booking confirmed for %s at %s.", mut.Booking.Date, mut.Booking.Time)); err != nil {
		return err
	}
	if err := r.Notifier.BookingAdded(ctx, m.UserID, name, mut); err != nil {
		r.log.Warn("booking broadcast failed", zap.Error(err))
	}
	return nil
}

func (r *Router) startCancel(ctx context.Context, m Message) error {
	own, err := r.Ledger.Cancel(ctx, m.UserID)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return r.say(ctx, m, "❌ No bookings.")
	case err != nil:
		return r.fail(ctx, m, "list bookings", err)
	}
	var b strings.Builder
	b.WriteString("🗓 *Your Bookings:*\n\n")
	for i, o := range own {
		fmt.Fprintf(&b, "%d. %s | %s\n", i+1, notify.Escape(o.Date), notify.Escape(o.Time))
	}
	b.WriteString("\nReply with number to cancel:")
	return r.advance(ctx, m, State{Step: StepAwaitingCancelSelection, Selection: own}, Reply{Text: b.String(), Markdown: true})
}

func (r *Router) onCancelSelection(ctx context.Context, m Message, st State) error {
	mut, err := r.Ledger.DeleteByIndex(ctx, m.UserID, st.Selection, m.Text)
	switch {
	case errors.Is(err, ledger.ErrInvalidChoice):
		return r.say(ctx, m, "❌ Invalid choice.")
	case errors.Is(err, ledger.ErrNotFound):
		r.reset(ctx, m)
		return r.say(ctx, m, "⚠️ That booking no longer exists.")
	case err != nil:
		return r.fail(ctx, m, "cancel booking", err)
	}
	r.reset(ctx, m)
	if err := r.Notifier.BookingCancelled(ctx, m.UserID, displayName(m), mut); err != nil {
		r.log.Warn("cancellation broadcast failed", zap.Error(err))
	}
	return r.say(ctx, m, "✅ Booking canceled.")
}

func (r *Router) endMeeting(ctx context.Context, m Message) error {
	mut, err := r.Ledger.EndMeeting(ctx, m.UserID, r.Ledger.Now())
	switch {
	case errors.Is(err, ledger.ErrNoActiveMeeting):
		return r.say(ctx, m, "⏰ No active or recent meeting to end.")
	case errors.Is(err, ledger.ErrNotFound):
		return r.say(ctx, m, "❌ No meetings.")
	case err != nil:
		return r.fail(ctx, m, "end meeting", err)
	}
	if err := r.Notifier.MeetingEnded(ctx, m.UserID, displayName(m), mut); err != nil {
		r.log.Warn("meeting ended broadcast failed", zap.Error(err))
	}
	return r.say(ctx, m, "✅ Meeting ended.")
}

func (r *Router) showSchedule(ctx context.Context, m Message) error {
	view, err := r.Ledger.SortedView(ctx)
	if err != nil {
		return r.fail(ctx, m, "read schedule", err)
	}
	return r.reply(ctx, m, Reply{Text: notify.FormatSchedule(view), Markdown: true})
}

func (r *Router) onAnnouncement(ctx context.Context, m Message) error {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return r.say(ctx, m, "⚠️ Empty message.")
	}
	r.reset(ctx, m)
	if err := r.Notifier.Announce(ctx, m.UserID, displayName(m), text); err != nil {
		return r.say(ctx, m, "⚠️ Announcement failed: "+err.Error())
	}
	return r.say(ctx, m, "✅ Announcement sent.")
}

func (r *Router) docsMenu(ctx context.Context, m Message) error {
	names, err := r.Docs.List()
	if err != nil {
		return r.fail(ctx, m, "list docs", err)
	}
	if len(names) == 0 {
		return r.say(ctx, m, "📂 No documents.")
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = docButtonPrefix + n
	}
	return r.advance(ctx, m, State{Step: StepAwaitingDocSelection}, Reply{Text: "📁 Choose document:", Keyboard: keys})
}

func (r *Router) onDocSelection(ctx context.Context, m Message) error {
	r.reset(ctx, m)
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(m.Text), docButtonPrefix))
	p, err := r.Docs.Path(name)
	if err != nil {
		return r.reply(ctx, m, Reply{Text: "⚠️ File not found.", RemoveKeyboard: true})
	}
	return r.Replier.SendFile(ctx, m.ChatID, p, "📘 "+name)
}

func (r *Router) onDocument(ctx context.Context, m Message) error {
	if m.Document == nil {
		return r.say(ctx, m, "⚠️ Send a file.")
	}
	r.reset(ctx, m)
	body, err := r.Files.Fetch(ctx, m.Document.FileID)
	if err != nil {
		return r.say(ctx, m, "⚠️ Upload failed: "+err.Error())
	}
	defer body.Close()
	saved, err := r.Docs.Save(m.Document.FileName, body)
	switch {
	case errors.Is(err, docs.ErrInvalidName):
		return r.say(ctx, m, "⚠️ Invalid file name.")
	case err != nil:
		return r.say(ctx, m, "⚠️ Upload failed: "+err.Error())
	}
	r.log.Info("document uploaded", zap.String("name", saved))
	return r.say(ctx, m, "✅ Uploaded "+saved)
}

// fail ends the conversation after an unexpected error.  Only the
// administrator sees the error text.
func (r *Router) fail(ctx context.Context, m Message, op string, err error) error {
	r.log.Error(op+" failed", zap.Int64("user_id", m.UserID), zap.Error(err))
	r.reset(ctx, m)
	if m.UserID == r.AdminID {
		return r.say(ctx, m, "⚠️ "+op+" failed: "+err.Error())
	}
	return r.say(ctx, m, genericFailure)
}

func (r *Router) advance(ctx context.Context, m Message, st State, rep Reply) error {
	if err := r.States.Put(ctx, keyOf(m), st); err != nil {
		r.log.Error("save conversation state", zap.Int64("user_id", m.UserID), zap.Error(err))
		return r.say(ctx, m, genericFailure)
	}
	return r.reply(ctx, m, rep)
}

func (r *Router) reset(ctx context.Context, m Message) {
	if err := r.States.Clear(ctx, keyOf(m)); err != nil {
		r.log.Warn("clear conversation state", zap.Int64("chat_id", m.ChatID), zap.Int64("user_id", m.UserID), zap.Error(err))
	}
}

func keyOf(m Message) Key { return Key{ChatID: m.ChatID, UserID: m.UserID} }

func (r *Router) record(ctx context.Context, m Message, cmd string) {
	r.Activity.Record(ctx, m.UserID, displayName(m), cmd, r.Ledger.Now())
}

func (r *Router) say(ctx context.Context, m Message, text string) error {
	return r.reply(ctx, m, Reply{Text: text})
}

func (r *Router) reply(ctx context.Context, m Message, rep Reply) error {
	return r.Replier.Reply(ctx, m.ChatID, rep)
}

func displayName(m Message) string {
	if n := strings.TrimSpace(m.FirstName); n != "" {
		return n
	}
	return "user " + strconv.FormatInt(m.UserID, 10)
}
