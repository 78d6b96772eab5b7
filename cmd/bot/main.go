package main // entry point of the meeting room bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-bot/internal/activity"
	"github.com/iliyamo/meeting-room-bot/internal/bot"
	"github.com/iliyamo/meeting-room-bot/internal/config"
	"github.com/iliyamo/meeting-room-bot/internal/conversation"
	"github.com/iliyamo/meeting-room-bot/internal/database"
	"github.com/iliyamo/meeting-room-bot/internal/docs"
	"github.com/iliyamo/meeting-room-bot/internal/handler"
	"github.com/iliyamo/meeting-room-bot/internal/ledger"
	"github.com/iliyamo/meeting-room-bot/internal/logger"
	"github.com/iliyamo/meeting-room-bot/internal/notify"
	"github.com/iliyamo/meeting-room-bot/internal/queue"
	"github.com/iliyamo/meeting-room-bot/internal/ratelimit"
	"github.com/iliyamo/meeting-room-bot/internal/repository"
	"github.com/iliyamo/meeting-room-bot/internal/router"
	"github.com/iliyamo/meeting-room-bot/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.Init(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("bot stopped", zap.Error(err))
	}
	log.Info("bot stopped")
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("load zone: %w", err)
	}

	var (
		bookings repository.BookingStore
		stats    repository.ActivityStore
	)
	switch cfg.StoreDriver {
	case "mysql":
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		bookings = repository.NewMySQLBookingStore(db)
		stats = repository.NewMySQLActivityStore(db)
	default:
		log.Warn("using in-memory stores; bookings are lost on restart")
		bookings = repository.NewMemoryBookingStore()
		stats = repository.NewMemoryActivityStore()
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable; conversation state is per process and rate limiting is off")
	} else {
		defer rdb.Close()
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("connect bot api: %w", err)
	}
	log.Info("authorized", zap.String("bot", api.Self.UserName))

	var events notify.EventPublisher
	var wg sync.WaitGroup
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, cfg.EventsExchange, log)
		defer pub.Close()
		events = pub

		audit := &queue.AuditConsumer{URL: cfg.AMQPURL, Exchange: cfg.EventsExchange, Queue: cfg.AuditQueue, Path: cfg.AuditLogPath, Log: log}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = audit.Run(ctx)
		}()
	}

	gw := notify.NewTelegramGateway(api, cfg.GroupChatID, cfg.AdminID, cfg.NotifyPerMinute, log)
	notifier := notify.NewNotifier(gw, events, log)

	// Alert the administrator before a crash takes the bot down.
	defer func() {
		if r := recover(); r != nil {
			_ = notifier.Alert(context.Background(), fmt.Sprintf("Bot crashed: %v", r))
			panic(r)
		}
	}()

	l := ledger.New(bookings, loc, ledger.WithGrace(cfg.EndGrace), ledger.WithLogger(log))
	act := activity.New(stats, loc, log)
	sweeper := scheduler.New(l, notifier, cfg.SweepInterval, cfg.SweepFirstRun, log)

	lib, err := docs.Open(cfg.DocsDir)
	if err != nil {
		return err
	}

	var states conversation.StateStore = conversation.NewMemoryStateStore(cfg.StateTTL)
	if rdb != nil {
		states = conversation.NewRedisStateStore(rdb, "conv", cfg.StateTTL)
	}
	bucket := ratelimit.New(cfg.RateLimit, rdb)
	var limiter conversation.Limiter
	if bucket != nil {
		limiter = bucket
	}

	conv := conversation.NewRouter(conversation.Deps{
		Ledger:   l,
		Notifier: notifier,
		Sweeper:  sweeper,
		Activity: act,
		Docs:     lib,
		States:   states,
		Replier:  bot.NewReplier(api),
		Files:    bot.NewFileFetcher(api, &http.Client{Timeout: time.Minute}),
		Limiter:  limiter,
		AdminID:  cfg.AdminID,
		Log:      log,
	})
	b := bot.New(api, conv, cfg.AdminID, cfg.BotWorkers, log)
	if err := b.Setup(); err != nil {
		return err
	}

	var admin *handler.AdminHandler
	if cfg.JWTSecret != "" {
		admin = handler.NewAdminHandler(act, sweeper, notifier, cfg.AdminID, log)
	}
	e := router.New(router.Deps{
		Schedule: handler.NewScheduleHandler(l, log),
		Admin:    admin,
		Limiter:  bucket,
		Redis:    rdb,
		Cache:    cfg.Cache,
		Secret:   cfg.JWTSecret,
		AdminID:  cfg.AdminID,
		Log:      log,
	})
	wg.Add(2)
	go func() {
		defer wg.Done()
		addr := ":" + cfg.HTTPPort
		log.Info("http listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		_ = sweeper.Run(ctx)
	}()

	err = b.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		_ = notifier.Alert(context.Background(), fmt.Sprintf("Bot stopped unexpectedly: %v", err))
	}

	cancel()
	shutdown, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = e.Shutdown(shutdown)
	wg.Wait()
	return err
}
