package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-monitor/pkg/config"
)

const publishTimeout = 5 * time.Second

// ErrClosed is returned when the delivery stream ends because the broker went away.
var ErrClosed = errors.New("broker: delivery channel closed")

// MessageHandler processes one message body. A nil error acknowledges the message.
type MessageHandler func(ctx context.Context, body []byte) error

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// RabbitMQ publishes and consumes JSON messages over a durable direct exchange bound to one queue.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel channel
	cfg     config.RabbitMQConfig
	logger  *zap.Logger
}

// Dial connects to the broker and declares the exchange, queue and binding.
func Dial(cfg config.RabbitMQConfig, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	b, err := newWithChannel(ch, cfg, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	b.conn = conn
	return b, nil
}

func newWithChannel(ch channel, cfg config.RabbitMQConfig, logger *zap.Logger) (*RabbitMQ, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = cfg.Queue
	}
	b := &RabbitMQ{channel: ch, cfg: cfg, logger: logger}
	if err := b.declare(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *RabbitMQ) declare() error {
	if err := b.channel.ExchangeDeclare(b.cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", b.cfg.Exchange, err)
	}
	if _, err := b.channel.QueueDeclare(b.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", b.cfg.Queue, err)
	}
	if err := b.channel.QueueBind(b.cfg.Queue, b.cfg.RoutingKey, b.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", b.cfg.Queue, err)
	}
	return nil
}

// Publish sends a persistent JSON message to the configured exchange and routing key.
func (b *RabbitMQ) Publish(ctx context.Context, body []byte) error {
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := b.channel.PublishWithContext(publishCtx, b.cfg.Exchange, b.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.cfg.Exchange, err)
	}
	return nil
}

// Consume delivers queued messages to handler one at a time until ctx is cancelled.
// Handler failures are dropped with Nack(requeue=false); handlers own their retry policy.
func (b *RabbitMQ) Consume(ctx context.Context, consumerTag string, handler MessageHandler) error {
	prefetch := b.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := b.channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := b.channel.Consume(b.cfg.Queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", b.cfg.Queue, err)
	}
	b.logger.Info("rabbitmq consumer started", zap.String("queue", b.cfg.Queue), zap.String("consumer_tag", consumerTag))

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("rabbitmq consumer stopping", zap.String("queue", b.cfg.Queue))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrClosed
			}
			b.handle(ctx, d, handler)
		}
	}
}

func (b *RabbitMQ) handle(ctx context.Context, d amqp.Delivery, handler MessageHandler) {
	if err := handler(ctx, d.Body); err != nil {
		b.logger.Warn("message handling failed", zap.String("queue", b.cfg.Queue), zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			b.logger.Error("nack message", zap.Error(nackErr))
		}
		return
	}
	if err := d.Ack(false); err != nil {
		b.logger.Error("ack message", zap.Error(err))
	}
}

// Healthy reports whether the underlying connection is still open.
func (b *RabbitMQ) Healthy() bool {
	return b.conn == nil || !b.conn.IsClosed()
}

// Close releases the channel and the connection.
func (b *RabbitMQ) Close() error {
	var errs []error
	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
