package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"attendly/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpPublisher is the part of *amqp.Channel the dispatcher needs.
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQDispatcher publishes notifications to a durable queue on the default exchange.
type RabbitMQDispatcher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel amqpPublisher
	queue   string
	log     *logger.Logger
}

func NewRabbitMQDispatcher(url, queue string, log *logger.Logger) (*RabbitMQDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	log.Info("RabbitMQ notification publisher ready", slog.String("queue", queue))

	d := newRabbitMQDispatcher(ch, queue, log)
	d.conn = conn
	return d, nil
}

func newRabbitMQDispatcher(ch amqpPublisher, queue string, log *logger.Logger) *RabbitMQDispatcher {
	return &RabbitMQDispatcher{channel: ch, queue: queue, log: log}
}

func (d *RabbitMQDispatcher) Dispatch(ctx context.Context, notification *AdmissionNotification) error {
	body, err := notification.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    notification.ID.String(),
		Type:         string(notification.Type),
		Timestamp:    notification.CreatedAt,
		Headers: amqp.Table{
			"event_id":      notification.EventID.String(),
			"attendance_id": notification.AttendanceID.String(),
			"priority":      string(notification.Priority),
		},
		Body: body,
	}

	// amqp channels are not safe for concurrent publishing
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.channel.PublishWithContext(ctx, "", d.queue, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish notification to RabbitMQ: %w", err)
	}
	return nil
}

func (d *RabbitMQDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	if d.channel != nil {
		firstErr = d.channel.Close()
	}
	if d.conn != nil {
		if err := d.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
