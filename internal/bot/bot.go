// Package bot connects the conversation router to the Telegram Bot API:
// long polling, command menus, replies and file transfer.
package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-bot/internal/conversation"
	"github.com/iliyamo/meeting-room-bot/internal/logger"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

type Handler interface {
	Handle(ctx context.Context, m conversation.Message) error
}

// Bot polls for updates and hands messages to workers.  Messages of one
// chat always go to the same worker so a conversation is processed in
// order.
type Bot struct {
	api     API
	handler Handler
	adminID int64
	workers int
	log     *zap.Logger
}

func New(api API, h Handler, adminID int64, workers int, log *zap.Logger) *Bot {
	if workers < 1 {
		workers = 1
	}
	return &Bot{api: api, handler: h, adminID: adminID, workers: workers, log: logger.OrNop(log)}
}

// Setup drops any webhook together with queued updates, then installs the
// user menu for everyone and the merged menu for the administrator.
func (b *Bot) Setup() error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	user := menu(conversation.Commands)
	if _, err := b.api.Request(tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeDefault(), user...)); err != nil {
		return fmt.Errorf("set user commands: %w", err)
	}
	all := menu(append(append([]conversation.Command(nil), conversation.Commands...), conversation.AdminCommands...))
	scope := tgbotapi.NewBotCommandScopeChatMember(b.adminID, b.adminID)
	if _, err := b.api.Request(tgbotapi.NewSetMyCommandsWithScope(scope, all...)); err != nil {
		return fmt.Errorf("set admin commands: %w", err)
	}
	b.log.Info("command menus set", zap.Int("user", len(user)), zap.Int("admin", len(all)))
	return nil
}

func menu(cmds []conversation.Command) []tgbotapi.BotCommand {
	seen := make(map[string]bool, len(cmds))
	out := make([]tgbotapi.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

// Run polls until ctx is done, then waits for in-flight messages.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	queues := make([]chan conversation.Message, b.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan conversation.Message, 16)
		wg.Add(1)
		go func(q <-chan conversation.Message) {
			defer wg.Done()
			for m := range q {
				b.dispatch(ctx, m)
			}
		}(queues[i])
	}
	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	b.log.Info("polling for updates", zap.Int("workers", b.workers))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return fmt.Errorf("update channel closed")
			}
			m, ok := toMessage(upd)
			if !ok {
				continue
			}
			select {
			case queues[shard(m.ChatID, b.workers)] <- m:
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				return ctx.Err()
			}
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, m conversation.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("handler panic", zap.Int64("chat_id", m.ChatID), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	if err := b.handler.Handle(ctx, m); err != nil {
		b.log.Warn("handle message", zap.Int64("chat_id", m.ChatID), zap.Int64("user_id", m.UserID), zap.Error(err))
	}
}

func toMessage(upd tgbotapi.Update) (conversation.Message, bool) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return conversation.Message{}, false
	}
	m := conversation.Message{
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		FirstName: msg.From.FirstName,
		Text:      msg.Text,
	}
	if d := msg.Document; d != nil {
		m.Document = &conversation.Document{FileID: d.FileID, FileName: d.FileName}
	}
	return m, true
}

func shard(chatID int64, n int) int {
	s := int(chatID % int64(n))
	if s < 0 {
		s = -s
	}
	return s
}
