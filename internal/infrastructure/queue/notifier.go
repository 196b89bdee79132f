package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

const channelName = "amqp"

var errClosed = errors.New("amqp notifier is closed")

// Alert is the message body published for every notification.
type Alert struct {
	Text     string    `json:"text"`
	QueuedAt time.Time `json:"queued_at"`
}

// Channel is the subset of *amqp.Channel used by the notifier.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel. The closer releases whatever else was opened with it (the connection).
type Dialer func() (Channel, io.Closer, error)

// Notifier publishes alerts to a topic exchange so other services can deliver them.
// With a Dialer it reconnects after the broker drops the channel.
type Notifier struct {
	exchange   string
	routingKey string
	dial       Dialer

	mu     sync.Mutex
	ch     Channel
	conn   io.Closer
	closed bool
}

var _ ports.Notifier = (*Notifier)(nil)

// Dial connects to the broker and declares the exchange.
func Dial(cfg config.AMQPConfig) (*Notifier, error) {
	n := NewRedialingNotifier(func() (Channel, io.Closer, error) {
		return open(cfg)
	}, cfg.Exchange, cfg.RoutingKey)

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.connectLocked(); err != nil {
		return nil, err
	}
	return n, nil
}

func open(cfg config.AMQPConfig) (Channel, io.Closer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return ch, conn, nil
}

// NewNotifier wraps an already open channel. It does not reconnect.
func NewNotifier(ch Channel, exchange, routingKey string) *Notifier {
	return &Notifier{ch: ch, exchange: exchange, routingKey: routingKey}
}

// NewRedialingNotifier dials lazily on first Send and again after a failed publish.
func NewRedialingNotifier(dial Dialer, exchange, routingKey string) *Notifier {
	return &Notifier{dial: dial, exchange: exchange, routingKey: routingKey}
}

// Send publishes one alert as JSON. A failed publish is retried once on a fresh connection.
func (n *Notifier) Send(ctx context.Context, message string) error {
	if n == nil {
		return &domain.NotifyError{Channel: channelName, Err: errors.New("amqp channel is not open")}
	}

	body, err := json.Marshal(Alert{Text: message, QueuedAt: time.Now().UTC()})
	if err != nil {
		return &domain.NotifyError{Channel: channelName, Err: err}
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return &domain.NotifyError{Channel: channelName, Err: errClosed}
	}
	if n.ch == nil {
		if err := n.connectLocked(); err != nil {
			return &domain.NotifyError{Channel: channelName, Err: err}
		}
	}

	err = n.ch.PublishWithContext(ctx, n.exchange, n.routingKey, false, false, msg)
	if err == nil {
		return nil
	}
	if n.dial == nil || ctx.Err() != nil {
		return &domain.NotifyError{Channel: channelName, Err: err}
	}

	n.releaseLocked()
	if dialErr := n.connectLocked(); dialErr != nil {
		return &domain.NotifyError{Channel: channelName, Err: errors.Join(err, dialErr)}
	}
	if err := n.ch.PublishWithContext(ctx, n.exchange, n.routingKey, false, false, msg); err != nil {
		return &domain.NotifyError{Channel: channelName, Err: err}
	}
	return nil
}

func (n *Notifier) connectLocked() error {
	if n.dial == nil {
		return errors.New("amqp channel is not open")
	}
	ch, conn, err := n.dial()
	if err != nil {
		return err
	}
	n.ch, n.conn = ch, conn
	return nil
}

func (n *Notifier) releaseLocked() {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
	n.ch, n.conn = nil, nil
}

// Close releases the channel and connection. Later sends fail without redialing.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.releaseLocked()
	return nil
}
