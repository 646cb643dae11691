package admission

import (
	"context"
	"testing"
	"time"

	"attendly/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditWaitlistsReportsWithoutRepairing(t *testing.T) {
	f := newFixture(t)
	healthy := f.createEvent(t, capacity(1), waitlist(0))
	broken := f.createEvent(t, capacity(1), waitlist(0))
	for _, event := range []uuid.UUID{healthy.ID, broken.ID} {
		f.register(t, event, "a")
		f.register(t, event, "b")
		f.register(t, event, "c")
	}
	f.corruptPosition(t, broken.ID, 1, intPtr(9))

	jp := NewJobProcessor(f.svc, &JobConfig{AuditInterval: time.Hour, BatchSize: 10}, logger.Discard())
	reports := jp.AuditWaitlists(context.Background())

	require.Len(t, reports, 1)
	assert.Equal(t, broken.ID, reports[0].EventID)
	assert.False(t, reports[0].Consistent)

	var positions []int
	for _, pos := range f.positions(t, broken.ID) {
		positions = append(positions, pos)
	}
	assert.ElementsMatch(t, []int{1, 9}, positions)
}

func TestJobProcessorStartStop(t *testing.T) {
	f := newFixture(t)
	jp := NewJobProcessor(f.svc, &JobConfig{AuditInterval: 5 * time.Millisecond, BatchSize: 10}, logger.Discard())

	assert.Equal(t, "idle", jp.GetJobStatus()["status"])

	jp.Start(context.Background())
	assert.Equal(t, "running", jp.GetJobStatus()["status"])
	time.Sleep(20 * time.Millisecond)

	jp.Stop()
	jp.Stop()
	assert.Equal(t, "stopped", jp.GetJobStatus()["status"])
}

func TestJobProcessorFallsBackToDefaultInterval(t *testing.T) {
	f := newFixture(t)
	for _, interval := range []time.Duration{0, -time.Second} {
		jp := NewJobProcessor(f.svc, &JobConfig{AuditInterval: interval, BatchSize: 0}, logger.Discard())
		assert.Equal(t, DefaultJobConfig().AuditInterval.String(), jp.GetJobStatus()["audit_interval"])
		assert.Equal(t, DefaultJobConfig().BatchSize, jp.GetJobStatus()["batch_size"])

		assert.NotPanics(t, func() { jp.Start(context.Background()) })
		jp.Stop()
	}
}

func TestStoppedBeforeStartReportsStopped(t *testing.T) {
	f := newFixture(t)
	jp := NewJobProcessor(f.svc, nil, logger.Discard())
	jp.Stop()
	assert.Equal(t, "stopped", jp.GetJobStatus()["status"])
}

func TestAuditWaitlistsRotatesThroughEvents(t *testing.T) {
	f := newFixture(t)
	var eventIDs []uuid.UUID
	for range 5 {
		event := f.createEvent(t, capacity(1), waitlist(0))
		f.register(t, event.ID, "a")
		f.register(t, event.ID, "b")
		f.corruptPosition(t, event.ID, 0, intPtr(7))
		eventIDs = append(eventIDs, event.ID)
	}

	jp := NewJobProcessor(f.svc, &JobConfig{AuditInterval: time.Hour, BatchSize: 2}, logger.Discard())

	seen := make(map[uuid.UUID]int)
	for range 3 {
		reports := jp.AuditWaitlists(context.Background())
		assert.Len(t, reports, 2)
		for _, r := range reports {
			seen[r.EventID]++
		}
	}

	// Six slots over five events: each audited once, one wrapped around.
	require.Len(t, seen, 5)
	for _, id := range eventIDs {
		assert.GreaterOrEqual(t, seen[id], 1, "event %s never audited", id)
	}
}
