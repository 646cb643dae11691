package admission

import (
	"context"
	"sync"
	"testing"
	"time"

	"attendly/internal/attendance"
	"attendly/internal/events"
	"attendly/internal/notifications"
	"attendly/pkg/cache"
	"attendly/pkg/lock"
	"attendly/pkg/logger"
	"attendly/pkg/metrics"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// stepClock advances one millisecond per reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []*notifications.AdmissionNotification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n *notifications.AdmissionNotification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

func (d *recordingDispatcher) Close() error { return nil }

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = nil
}

func (d *recordingDispatcher) types() []notifications.NotificationType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]notifications.NotificationType, 0, len(d.sent))
	for _, n := range d.sent {
		out = append(out, n.Type)
	}
	return out
}

type fixture struct {
	svc        Service
	events     *events.MemoryRepository
	store      *attendance.MemoryStore
	locker     *lock.Local
	dispatcher *recordingDispatcher
	metrics    *metrics.Admission
	clock      *stepClock
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	lockWait  time.Duration
	cache     bool
	beforeSet func(key string)
}

func withLockWait(d time.Duration) fixtureOption {
	return func(c *fixtureConfig) { c.lockWait = d }
}

func withCache() fixtureOption {
	return func(c *fixtureConfig) { c.cache = true }
}

// withCacheFillHook runs hook between loading a view and storing it.
func withCacheFillHook(hook func(key string)) fixtureOption {
	return func(c *fixtureConfig) {
		c.cache = true
		c.beforeSet = hook
	}
}

type hookedCache struct {
	cache.Service
	beforeSet func(key string)
}

func (h *hookedCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	h.beforeSet(key)
	return h.Service.Set(ctx, key, value, ttl)
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{lockWait: 2 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{
		events:     events.NewMemoryRepository(),
		locker:     lock.NewLocal(cfg.lockWait),
		dispatcher: &recordingDispatcher{},
		metrics:    metrics.New(),
		clock:      newStepClock(),
	}
	f.store = attendance.NewMemoryStore(f.events, cfg.lockWait)

	var cacheService cache.Service
	if cfg.cache {
		var stop func()
		cacheService, stop = cache.NewMemoryService(logger.Discard())
		t.Cleanup(stop)
		if cfg.beforeSet != nil {
			cacheService = &hookedCache{Service: cacheService, beforeSet: cfg.beforeSet}
		}
	}

	serviceConfig := DefaultServiceConfig()
	serviceConfig.Clock = f.clock.Now
	f.svc = NewService(f.store, f.events, f.locker, f.dispatcher, cacheService, f.metrics, logger.Discard(), serviceConfig)
	return f
}

type eventOption func(*events.Event)

func capacity(n int) eventOption {
	return func(e *events.Event) { e.Capacity = &n }
}

func waitlist(maxSize int) eventOption {
	return func(e *events.Event) {
		e.WaitlistEnabled = true
		if maxSize > 0 {
			e.WaitlistMaxSize = &maxSize
		}
	}
}

func autoPromote() eventOption {
	return func(e *events.Event) { e.WaitlistAutoPromote = true }
}

func (f *fixture) createEvent(t *testing.T, opts ...eventOption) *events.Event {
	t.Helper()
	event := &events.Event{Name: "Gophercon", StartsAt: time.Now().Add(24 * time.Hour), CreatedBy: uuid.New()}
	for _, opt := range opts {
		opt(event)
	}
	require.NoError(t, f.events.Create(context.Background(), event))
	return event
}

func (f *fixture) register(t *testing.T, eventID uuid.UUID, name string) *Decision {
	t.Helper()
	decision, err := f.svc.RegisterAttendee(context.Background(), eventID, Registrant{
		UserID: uuid.New(),
		Email:  name + "@example.com",
		Name:   name,
	})
	require.NoError(t, err)
	return decision
}

func (f *fixture) get(t *testing.T, id *uuid.UUID) *attendance.Attendance {
	t.Helper()
	require.NotNil(t, id)
	rec, err := f.store.GetByID(context.Background(), *id)
	require.NoError(t, err)
	return rec
}

// positions returns attendance id -> waitlist position for the event.
func (f *fixture) positions(t *testing.T, eventID uuid.UUID) map[uuid.UUID]int {
	t.Helper()
	waiting, err := f.store.ListByStatus(context.Background(), eventID, attendance.StatusWaitlisted)
	require.NoError(t, err)
	out := make(map[uuid.UUID]int, len(waiting))
	for _, rec := range waiting {
		out[rec.ID] = rec.Position()
	}
	return out
}

// requireDense fails unless the waitlist holds positions 1..N in arrival order.
func (f *fixture) requireDense(t *testing.T, eventID uuid.UUID) {
	t.Helper()
	waiting, err := f.store.ListByStatus(context.Background(), eventID, attendance.StatusWaitlisted)
	require.NoError(t, err)
	require.NoError(t, checkDense(waiting))
}

// corruptPosition overwrites the position of the waitlist entry at index.
func (f *fixture) corruptPosition(t *testing.T, eventID uuid.UUID, index int, position *int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.InEventTx(ctx, eventID, func(tx attendance.Tx) error {
		waiting, err := tx.ListByStatus(ctx, attendance.StatusWaitlisted)
		if err != nil {
			return err
		}
		rec := waiting[index]
		rec.WaitlistPosition = position
		return tx.Update(ctx, &rec)
	}))
}

func intPtr(v int) *int { return &v }
