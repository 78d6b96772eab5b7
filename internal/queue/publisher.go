package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-bot/internal/logger"
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a channel with the exchange declared and returns a closer
// for the underlying connection.
type dialFunc func() (channel, func() error, error)

const (
	dialTimeout  = 2 * time.Second
	dialCooldown = 30 * time.Second
)

// ErrBrokerUnavailable is returned without dialing while the publisher is
// cooling down after a failed dial.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// Publisher sends ScheduleEvents to a durable topic exchange.  The
// connection is opened lazily and re-opened after a failed publish.  A
// failed dial costs at most dialTimeout and is not retried for
// dialCooldown, so a broker outage costs events but never stalls the bot.
type Publisher struct {
	exchange string
	dial     dialFunc
	log      *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	ch        channel
	closeConn func() error
	nextDial  time.Time
}

// NewPublisher returns a publisher for exchange on the broker at url.
func NewPublisher(url, exchange string, log *zap.Logger) *Publisher {
	return &Publisher{
		exchange: exchange,
		dial:     amqpDialer(url, exchange),
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

func amqpDialer(url, exchange string) dialFunc {
	return func() (channel, func() error, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(dialTimeout),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("open channel: %w", err)
		}
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("declare exchange: %w", err)
		}
		return ch, conn.Close, nil
	}
}

// Publish marshals ev and publishes it persistently with ev.Kind as the
// routing key.
func (p *Publisher) Publish(ctx context.Context, ev ScheduleEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := p.clock()
		if now.Before(p.nextDial) {
			return fmt.Errorf("publish %s: %w", ev.Kind, ErrBrokerUnavailable)
		}
		ch, closeConn, err := p.dial()
		if err != nil {
			p.nextDial = now.Add(dialCooldown)
			return err
		}
		p.ch, p.closeConn = ch, closeConn
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, ev.Kind, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.log.Warn("publish failed, dropping connection", zap.String("kind", ev.Kind), zap.Error(err))
		p.resetLocked()
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return nil
}

func (p *Publisher) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.ch, p.closeConn = nil, nil
}
