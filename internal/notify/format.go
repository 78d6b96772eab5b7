package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iliyamo/meeting-room-bot/internal/ledger"
	"github.com/iliyamo/meeting-room-bot/internal/model"
)

// Escape quotes user supplied text for Markdown messages.
func Escape(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }

// ScheduleLines renders one "date | time | name" line per booking, or a
// closing line when the schedule is empty.
func ScheduleLines(schedule []model.Booking) string {
	if len(schedule) == 0 {
		return "✅ No bookings left.\n"
	}
	var b strings.Builder
	for _, s := range schedule {
		fmt.Fprintf(&b, "%s | %s | %s\n", Escape(s.Date), Escape(s.Time), Escape(s.Name))
	}
	return b.String()
}

func FormatBookingAdded(actor string, m ledger.Mutation) string {
	return fmt.Sprintf("📢 *New Booking Added!*\n\n👤 %s\n🗓 %s | ⏰ %s\n\n📋 *Current Schedule (old → new):*\n%s",
		Escape(actor), m.Booking.Date, m.Booking.Time, ScheduleLines(m.Schedule))
}

func FormatBookingCancelled(actor string, m ledger.Mutation) string {
	return fmt.Sprintf("❌ %s *CANCEL* booking:\n📅 %s | ⏰ %s\n\n📋 *Updated Schedule:*\n%s",
		Escape(actor), m.Booking.Date, m.Booking.Time, ScheduleLines(m.Schedule))
}

func FormatMeetingEnded(actor string, m ledger.Mutation) string {
	return fmt.Sprintf("🏁 *Meeting Ended!*\n👤 %s\n📅 %s | ⏰ %s\n\n📋 *Updated Schedule:*\n%s",
		Escape(actor), m.Booking.Date, m.Booking.Time, ScheduleLines(m.Schedule))
}

// FormatSweep lists removed bookings followed by the remaining schedule.
func FormatSweep(res ledger.SweepResult) string {
	var b strings.Builder
	b.WriteString("🧹 *Expired Meetings Removed:*\n")
	for _, r := range res.Removed {
		fmt.Fprintf(&b, "• %s | %s | %s\n", Escape(r.Date), Escape(r.Time), Escape(r.Name))
	}
	if len(res.Kept) == 0 {
		b.WriteString("\n✅ No meetings left.")
		return b.String()
	}
	b.WriteString("\n📋 *Updated Schedule (old → new):*\n")
	b.WriteString(ScheduleLines(res.Kept))
	return b.String()
}

// FormatSweepFailure is the admin alert for a failed rewrite.  It is plain
// text and may include the store error.
func FormatSweepFailure(res ledger.SweepResult, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expiry sweep could not rewrite the bookings table (%d expired, %d to keep).\n",
		len(res.Removed), len(res.Kept))
	b.WriteString("The table may be incomplete. Check it before the next sweep.\n")
	if len(res.Kept) > 0 {
		b.WriteString("\nRows that should remain:\n")
		for _, k := range res.Kept {
			fmt.Fprintf(&b, "%s | %s | %s | %s\n", k.Date, k.Time, k.Name, k.TelegramID)
		}
	}
	fmt.Fprintf(&b, "\nError: %v", err)
	return b.String()
}

// FormatSchedule is the reply to /schedule.
func FormatSchedule(schedule []model.Booking) string {
	return "📋 *Current Schedule (old → new):*\n" + ScheduleLines(schedule)
}

func FormatAnnouncement(text string) string {
	return "📢 *Announcement:*\n\n" + Escape(text)
}

// FormatStats renders the activity summary for the administrator.
func FormatStats(summaries []model.UserSummary) string {
	if len(summaries) == 0 {
		return "📊 No data."
	}
	var b strings.Builder
	b.WriteString("📊 *User Activity:*\n\n")
	for _, s := range summaries {
		acts := make([]string, len(s.Commands))
		for i, c := range s.Commands {
			acts[i] = fmt.Sprintf("%s(%d)", c.Command, c.Count)
		}
		fmt.Fprintf(&b, "👤 *%s*\n🕒 %s\n📈 %d\n📝 %s\n\n", Escape(s.Name), s.Last, s.Total, Escape(strings.Join(acts, ", ")))
	}
	return b.String()
}
