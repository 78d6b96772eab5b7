// Package scheduler runs the periodic expiry sweep of the booking table.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-bot/internal/ledger"
	"github.com/iliyamo/meeting-room-bot/internal/logger"
)

// SweepLedger is the part of *ledger.Ledger the sweeper drives.
type SweepLedger interface {
	Now() time.Time
	ExpireAndSweep(ctx context.Context, now time.Time) (ledger.SweepResult, error)
}

// SweepNotifier is satisfied by *notify.Notifier.
type SweepNotifier interface {
	Swept(ctx context.Context, res ledger.SweepResult) error
	SweepFailed(ctx context.Context, res ledger.SweepResult, err error) error
}

type Sweeper struct {
	ledger   SweepLedger
	notifier SweepNotifier
	interval time.Duration
	firstRun time.Duration
	log      *zap.Logger
}

func New(l SweepLedger, n SweepNotifier, interval, firstRun time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{ledger: l, notifier: n, interval: interval, firstRun: firstRun, log: logger.OrNop(log)}
}

// RunOnce sweeps now and reports the outcome: removals go to the group,
// a failed rewrite goes to the administrator.  Notification failures are
// logged and do not change the returned result.
func (s *Sweeper) RunOnce(ctx context.Context) (ledger.SweepResult, error) {
	res, err := s.ledger.ExpireAndSweep(ctx, s.ledger.Now())
	switch {
	case errors.Is(err, ledger.ErrSweepRewrite):
		if nerr := s.notifier.SweepFailed(ctx, res, err); nerr != nil {
			s.log.Error("sweep failure alert not delivered", zap.Error(nerr))
		}
		return res, err
	case err != nil:
		s.log.Error("sweep failed", zap.Error(err))
		return res, err
	}
	if nerr := s.notifier.Swept(ctx, res); nerr != nil {
		s.log.Warn("sweep broadcast failed", zap.Int("removed", len(res.Removed)), zap.Error(nerr))
	}
	return res, nil
}

// Run sweeps once after the first-run delay and then every interval until
// ctx is done.  Runs never overlap; a tick that finds the previous sweep
// still running is skipped.
func (s *Sweeper) Run(ctx context.Context) error {
	clog := cron.PrintfLogger(zap.NewStdLog(s.log.Named("cron")))
	job := cron.NewChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)).Then(cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		_, _ = s.RunOnce(ctx)
	}))

	c := cron.New(cron.WithLocation(s.ledger.Now().Location()), cron.WithLogger(clog))
	c.Schedule(cron.Every(s.interval), job)
	c.Start()
	s.log.Info("sweeper started", zap.Duration("interval", s.interval), zap.Duration("first_run", s.firstRun))

	first := time.NewTimer(s.firstRun)
	defer first.Stop()
	for {
		select {
		case <-ctx.Done():
			<-c.Stop().Done()
			s.log.Info("sweeper stopped")
			return ctx.Err()
		case <-first.C:
			go job.Run()
		}
	}
}
