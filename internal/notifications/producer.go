package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"attendly/pkg/logger"

	"github.com/IBM/sarama"
)

// KafkaProducerConfig contains configuration for the Kafka notification producer
type KafkaProducerConfig struct {
	Brokers           []string
	NotificationTopic string
	ClientID          string
	RetryMax          int
	TimeoutMs         int
	RequiredAcks      sarama.RequiredAcks
	CompressionType   sarama.CompressionCodec
	IdempotentWrites  bool
	MaxMessageBytes   int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:           []string{"localhost:9092"},
		NotificationTopic: "admission-notifications",
		ClientID:          "attendly-producer",
		RetryMax:          3,
		TimeoutMs:         10000,             // 10 seconds
		RequiredAcks:      sarama.WaitForAll, // Wait for all in-sync replicas
		CompressionType:   sarama.CompressionSnappy,
		IdempotentWrites:  true,
		MaxMessageBytes:   1000000, // 1MB
	}
}

// KafkaDispatcher publishes admission notifications to Kafka
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewKafkaDispatcher creates a dispatcher backed by a sarama SyncProducer
func NewKafkaDispatcher(config *KafkaProducerConfig, log *logger.Logger) (*KafkaDispatcher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = config.ClientID

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes

	// Idempotent producers require a single in-flight request
	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash on the event id so one event's notifications stay ordered
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Info("Kafka notification producer created", slog.String("topic", config.NotificationTopic))
	return NewKafkaDispatcherWithProducer(producer, config.NotificationTopic, log), nil
}

// NewKafkaDispatcherWithProducer wraps an existing producer
func NewKafkaDispatcherWithProducer(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer, topic: topic, log: log}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, notification *AdmissionNotification) error {
	message, err := d.buildMessage(notification)
	if err != nil {
		return err
	}

	var partition int32
	var offset int64
	err = d.send(ctx, func() (err error) {
		partition, offset, err = d.producer.SendMessage(message)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send notification to Kafka: %w", err)
	}

	d.log.DebugContext(ctx, "Notification published to Kafka",
		slog.String("topic", d.topic),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
		slog.String("type", string(notification.Type)),
	)
	return nil
}

func (d *KafkaDispatcher) DispatchBatch(ctx context.Context, notifications []*AdmissionNotification) error {
	messages := make([]*sarama.ProducerMessage, 0, len(notifications))
	for _, n := range notifications {
		message, err := d.buildMessage(n)
		if err != nil {
			d.log.WarnContext(ctx, "Skipping unencodable notification",
				slog.String("notification_id", n.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		messages = append(messages, message)
	}

	err := d.send(ctx, func() error {
		return d.producer.SendMessages(messages)
	})
	if err != nil {
		return fmt.Errorf("failed to send batch notifications to Kafka: %w", err)
	}

	d.log.DebugContext(ctx, "Notification batch published to Kafka",
		slog.String("topic", d.topic),
		slog.Int("count", len(messages)),
	)
	return nil
}

// send runs a blocking produce call and stops waiting once ctx is done. An
// abandoned send keeps running inside sarama and may still be delivered.
func (d *KafkaDispatcher) send(ctx context.Context, produce func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- produce()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		d.log.WarnContext(ctx, "Stopped waiting for Kafka acknowledgement",
			slog.String("topic", d.topic),
			slog.String("error", ctx.Err().Error()),
		)
		return ctx.Err()
	}
}

func (d *KafkaDispatcher) buildMessage(notification *AdmissionNotification) (*sarama.ProducerMessage, error) {
	messageBytes, err := notification.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}

	return &sarama.ProducerMessage{
		Topic:     d.topic,
		Key:       sarama.StringEncoder(notification.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   createHeaders(notification),
		Timestamp: notification.CreatedAt,
	}, nil
}

// createHeaders creates Kafka headers for notifications
func createHeaders(notification *AdmissionNotification) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("notification_id"), Value: []byte(notification.ID.String())},
		{Key: []byte("notification_type"), Value: []byte(notification.Type)},
		{Key: []byte("priority"), Value: []byte(notification.Priority)},
		{Key: []byte("event_id"), Value: []byte(notification.EventID.String())},
		{Key: []byte("attendance_id"), Value: []byte(notification.AttendanceID.String())},
		{Key: []byte("producer"), Value: []byte("attendly-admission")},
		{Key: []byte("created_at"), Value: []byte(notification.CreatedAt.Format(time.RFC3339))},
	}
}

// Close closes the Kafka producer
func (d *KafkaDispatcher) Close() error {
	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
	}
	return nil
}
