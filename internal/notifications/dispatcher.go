package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"attendly/internal/shared/config"
	"attendly/pkg/logger"
)

// Dispatcher delivers admission notifications after the state change committed.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification *AdmissionNotification) error
	Close() error
}

type batchDispatcher interface {
	DispatchBatch(ctx context.Context, notifications []*AdmissionNotification) error
}

// DispatchAll sends every notification, batching when the dispatcher supports it.
func DispatchAll(ctx context.Context, d Dispatcher, notifications []*AdmissionNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	if b, ok := d.(batchDispatcher); ok {
		return b.DispatchBatch(ctx, notifications)
	}

	var failed []string
	for _, n := range notifications {
		if err := d.Dispatch(ctx, n); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", n.ID, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to dispatch %d of %d notifications: %s",
			len(failed), len(notifications), strings.Join(failed, "; "))
	}
	return nil
}

// LogDispatcher writes notifications to the application log. Used in
// development and whenever no broker is configured.
type LogDispatcher struct {
	log *logger.Logger
}

func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, n *AdmissionNotification) error {
	d.log.InfoContext(ctx, "Admission Notification",
		slog.String("type", string(n.Type)),
		slog.String("event_id", n.EventID.String()),
		slog.String("attendance_id", n.AttendanceID.String()),
		slog.String("recipient", n.RecipientEmail),
		slog.Int("position", n.Position),
	)
	return nil
}

func (d *LogDispatcher) Close() error { return nil }

// NoopDispatcher drops everything.
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(context.Context, *AdmissionNotification) error { return nil }
func (NoopDispatcher) Close() error { return nil }

// NewDispatcher builds the dispatcher selected by configuration.
func NewDispatcher(cfg config.NotificationConfig, log *logger.Logger) (Dispatcher, error) {
	switch cfg.Driver {
	case "kafka":
		producerConfig := DefaultKafkaProducerConfig()
		producerConfig.Brokers = cfg.KafkaBrokers
		producerConfig.NotificationTopic = cfg.KafkaTopic
		producerConfig.ClientID = cfg.KafkaClientID
		return NewKafkaDispatcher(producerConfig, log)
	case "rabbitmq":
		return NewRabbitMQDispatcher(cfg.RabbitMQURL, cfg.RabbitMQQueue, log)
	case "log", "":
		return NewLogDispatcher(log), nil
	case "none":
		return NoopDispatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown notification driver %q", cfg.Driver)
	}
}
