package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"attendly/internal/shared/config"
	"attendly/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promoted(eventID uuid.UUID) *AdmissionNotification {
	return NewNotificationBuilder().
		WithType(NotificationTypeAttendeePromoted).
		WithRecipient(uuid.New(), "b@example.com", "B").
		WithAttendance(eventID, uuid.New(), "confirmed").
		WithTrigger("auto").
		Build()
}

func TestBuilderSetsPriority(t *testing.T) {
	n := promoted(uuid.New())
	assert.Equal(t, NotificationPriorityHigh, n.Priority)
	assert.Equal(t, n.EventID.String(), n.GetPartitionKey())

	update := NewNotificationBuilder().WithType(NotificationTypeWaitlistPositionUpdate).WithPosition(3, 2).Build()
	assert.Equal(t, NotificationPriorityLow, update.Priority)
	assert.Equal(t, 3, update.PreviousPosition)
	assert.Equal(t, 2, update.Position)
}

func TestKafkaDispatcherPublishesJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	eventID := uuid.New()
	n := promoted(eventID)

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got AdmissionNotification
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.Type != NotificationTypeAttendeePromoted || got.EventID != eventID {
			return fmt.Errorf("unexpected payload %+v", got)
		}
		return nil
	})

	d := NewKafkaDispatcherWithProducer(producer, "admission-notifications", logger.Discard())
	require.NoError(t, d.Dispatch(context.Background(), n))
	require.NoError(t, d.Close())
}

func TestKafkaDispatcherReportsFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	d := NewKafkaDispatcherWithProducer(producer, "admission-notifications", logger.Discard())
	err := d.Dispatch(context.Background(), promoted(uuid.New()))
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, d.Close())
}

func TestDispatchAllUsesBatch(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()

	d := NewKafkaDispatcherWithProducer(producer, "admission-notifications", logger.Discard())
	eventID := uuid.New()
	require.NoError(t, DispatchAll(context.Background(), d, []*AdmissionNotification{promoted(eventID), promoted(eventID)}))
	require.NoError(t, d.Close())
}

func TestKafkaDispatcherStopsWaitingAtDeadline(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	release := make(chan struct{})
	drained := make(chan struct{}, 3)
	block := func(*sarama.ProducerMessage) error {
		<-release
		drained <- struct{}{}
		return nil
	}
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(block)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(block)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(block)

	d := NewKafkaDispatcherWithProducer(producer, "admission-notifications", logger.Discard())
	eventID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := d.Dispatch(ctx, promoted(eventID))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	batchCtx, batchCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer batchCancel()
	start = time.Now()
	err = d.DispatchBatch(batchCtx, []*AdmissionNotification{promoted(eventID), promoted(eventID)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	for range 3 {
		<-drained
	}
	require.NoError(t, d.Close())
}

func TestKafkaDispatcherSkipsSendWhenContextDone(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	d := NewKafkaDispatcherWithProducer(producer, "admission-notifications", logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Dispatch(ctx, promoted(uuid.New())), context.Canceled)
	require.NoError(t, d.Close())
}

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestRabbitMQDispatcherPublishesPersistent(t *testing.T) {
	ch := &fakeChannel{}
	d := newRabbitMQDispatcher(ch, "admission_notifications", logger.Discard())

	n := promoted(uuid.New())
	require.NoError(t, d.Dispatch(context.Background(), n))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "/admission_notifications", ch.keys[0])
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, n.ID.String(), msg.MessageId)

	require.NoError(t, d.Close())
	assert.True(t, ch.closed)
}

func TestDispatchAllCollectsErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	d := newRabbitMQDispatcher(ch, "q", logger.Discard())

	err := DispatchAll(context.Background(), d, []*AdmissionNotification{promoted(uuid.New()), promoted(uuid.New())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dispatch 2 of 2")
}

func TestNewDispatcherSelectsDriver(t *testing.T) {
	d, err := NewDispatcher(config.NotificationConfig{Driver: "log"}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &LogDispatcher{}, d)
	assert.NoError(t, d.Dispatch(context.Background(), promoted(uuid.New())))

	d, err = NewDispatcher(config.NotificationConfig{Driver: "none"}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, NoopDispatcher{}, d)

	_, err = NewDispatcher(config.NotificationConfig{Driver: "carrier-pigeon"}, logger.Discard())
	assert.Error(t, err)
}
