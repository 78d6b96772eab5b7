// Package activity keeps the command audit trail that feeds /stats.
package activity

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-bot/internal/logger"
	"github.com/iliyamo/meeting-room-bot/internal/metrics"
	"github.com/iliyamo/meeting-room-bot/internal/model"
	"github.com/iliyamo/meeting-room-bot/internal/repository"
)

// Log records and summarizes chat commands.
type Log struct {
	store repository.ActivityStore
	loc   *time.Location
	log   *zap.Logger
}

// New returns a Log writing timestamps in loc.
func New(store repository.ActivityStore, loc *time.Location, log *zap.Logger) *Log {
	return &Log{store: store, loc: loc, log: logger.OrNop(log)}
}

// Record appends one entry.  It never fails the caller: store errors are
// logged and counted, then dropped.
func (l *Log) Record(ctx context.Context, ownerID int64, ownerName, command string, now time.Time) {
	e := model.ActivityEntry{
		TelegramID: strconv.FormatInt(ownerID, 10),
		Name:       ownerName,
		Command:    command,
		DateTime:   now.In(l.loc).Format(model.DateTimeLayout),
	}
	if err := l.store.AppendEntry(ctx, e); err != nil {
		metrics.ActivityLogFailuresTotal.Inc()
		l.log.Warn("activity log append failed",
			zap.Int64("telegram_id", ownerID), zap.String("command", command), zap.Error(err))
	}
}

// Summarize groups all entries by display name.  The result is ordered by
// most recent activity first; names with equal timestamps are ordered
// alphabetically.  Commands within a summary keep first-use order.
func (l *Log) Summarize(ctx context.Context) ([]model.UserSummary, error) {
	entries, err := l.store.ReadEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("read activity: %w", err)
	}

	type agg struct {
		summary model.UserSummary
		last    time.Time
		counts  map[string]int
	}
	byName := map[string]*agg{}
	var order []string
	for _, e := range entries {
		a, ok := byName[e.Name]
		if !ok {
			a = &agg{summary: model.UserSummary{Name: e.Name}, counts: map[string]int{}}
			byName[e.Name] = a
			order = append(order, e.Name)
		}
		a.summary.Total++
		if _, seen := a.counts[e.Command]; !seen {
			a.summary.Commands = append(a.summary.Commands, model.CommandCount{Command: e.Command})
		}
		a.counts[e.Command]++
		// unparsable timestamps never become the latest
		if ts, ok := e.At(l.loc); ok && !ts.Before(a.last) {
			a.last = ts
			a.summary.Last = e.DateTime
		} else if a.summary.Last == "" {
			a.summary.Last = e.DateTime
		}
	}

	out := make([]model.UserSummary, 0, len(order))
	lasts := make(map[string]time.Time, len(order))
	for _, name := range order {
		a := byName[name]
		for i := range a.summary.Commands {
			a.summary.Commands[i].Count = a.counts[a.summary.Commands[i].Command]
		}
		out = append(out, a.summary)
		lasts[name] = a.last
	}
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := lasts[out[i].Name], lasts[out[j].Name]
		if !li.Equal(lj) {
			return li.After(lj)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
