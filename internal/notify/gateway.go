// Package notify delivers schedule broadcasts to the group chat and alerts
// to the administrator, and mirrors every schedule change onto the event
// bus.
package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iliyamo/meeting-room-bot/internal/logger"
	"github.com/iliyamo/meeting-room-bot/internal/metrics"
)

// Gateway sends text to the two fixed destinations.
type Gateway interface {
	Broadcast(ctx context.Context, text string) error
	NotifyAdmin(ctx context.Context, text string) error
}

// Sender is the subset of *tgbotapi.BotAPI used for outbound messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramGateway sends through the Bot API.  Broadcasts use Markdown and
// share one limiter so bursts of schedule changes stay under the group
// message limit.
type TelegramGateway struct {
	sender  Sender
	groupID int64
	adminID int64
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewTelegramGateway allows perMinute group messages with a small burst.
// perMinute <= 0 disables throttling.
func NewTelegramGateway(sender Sender, groupID, adminID int64, perMinute int, log *zap.Logger) *TelegramGateway {
	lim := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 3)
	}
	return &TelegramGateway{sender: sender, groupID: groupID, adminID: adminID, limiter: lim, log: logger.OrNop(log)}
}

// Broadcast posts text to the group chat.
func (g *TelegramGateway) Broadcast(ctx context.Context, text string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		metrics.RecordNotification("group", err)
		return fmt.Errorf("broadcast throttled: %w", err)
	}
	msg := tgbotapi.NewMessage(g.groupID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := g.sender.Send(msg)
	metrics.RecordNotification("group", err)
	if err != nil {
		g.log.Warn("group broadcast failed", zap.Int64("chat_id", g.groupID), zap.Error(err))
		return fmt.Errorf("broadcast: %w", err)
	}
	return nil
}

// NotifyAdmin sends a plain text alert to the administrator.
func (g *TelegramGateway) NotifyAdmin(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.sender.Send(tgbotapi.NewMessage(g.adminID, "⚠️ [Bot Alert]\n\n"+text))
	metrics.RecordNotification("admin", err)
	if err != nil {
		g.log.Warn("admin alert failed", zap.Error(err))
		return fmt.Errorf("notify admin: %w", err)
	}
	return nil
}
