package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"attendly/internal/events"
	"attendly/pkg/lock"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemoryStore keeps attendance in process. Each event is guarded by a keyed
// lock with a bounded wait, and a transaction works on a private copy of the
// event's records that is published only when the callback succeeds.
type MemoryStore struct {
	events EventSource
	locks  *lock.Local

	mu      sync.RWMutex
	records map[uuid.UUID]Attendance
	byEvent map[uuid.UUID][]uuid.UUID
}

func NewMemoryStore(events EventSource, lockWait time.Duration) *MemoryStore {
	return &MemoryStore{
		events:  events,
		locks:   lock.NewLocal(lockWait),
		records: make(map[uuid.UUID]Attendance),
		byEvent: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *MemoryStore) InEventTx(ctx context.Context, eventID uuid.UUID, fn func(tx Tx) error) error {
	unlock, err := s.locks.Acquire(ctx, eventID.String())
	if err != nil {
		return errors.Join(ErrLockTimeout, err)
	}
	defer unlock()

	event, err := s.events.GetByID(ctx, eventID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load event: %w", err)
	}

	tx := s.begin(event)
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrLockTimeout, err)
	}
	s.commit(tx)
	return nil
}

func (s *MemoryStore) begin(event *events.Event) *memoryTx {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byEvent[event.ID]
	tx := &memoryTx{
		event:   event,
		records: make(map[uuid.UUID]Attendance, len(ids)),
		order:   append([]uuid.UUID(nil), ids...),
	}
	for _, id := range ids {
		tx.records[id] = s.records[id].Clone()
	}
	return tx
}

func (s *MemoryStore) commit(tx *memoryTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range tx.records {
		s.records[id] = rec
	}
	s.byEvent[tx.event.ID] = tx.order
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec.Clone()
	return &out, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, eventID uuid.UUID, status Status) ([]Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Attendance
	for _, id := range s.byEvent[eventID] {
		if rec := s.records[id]; rec.Status == status {
			out = append(out, rec.Clone())
		}
	}
	SortFIFO(out)
	return out, nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context, eventID uuid.UUID, status Status) (int, error) {
	records, err := s.ListByStatus(ctx, eventID, status)
	return len(records), err
}

func (s *MemoryStore) EventIDsWithStatus(_ context.Context, status Status) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for eventID, recordIDs := range s.byEvent {
		for _, id := range recordIDs {
			if s.records[id].Status == status {
				ids = append(ids, eventID)
				break
			}
		}
	}
	return ids, nil
}

type memoryTx struct {
	event   *events.Event
	records map[uuid.UUID]Attendance
	order   []uuid.UUID
}

func (t *memoryTx) Event() *events.Event {
	return t.event
}

func (t *memoryTx) CountByStatus(ctx context.Context, status Status) (int, error) {
	records, err := t.ListByStatus(ctx, status)
	return len(records), err
}

func (t *memoryTx) ListByStatus(_ context.Context, status Status) ([]Attendance, error) {
	var out []Attendance
	for _, id := range t.order {
		if rec := t.records[id]; rec.Status == status {
			out = append(out, rec.Clone())
		}
	}
	SortFIFO(out)
	return out, nil
}

func (t *memoryTx) FindActiveByUser(_ context.Context, userID uuid.UUID) (*Attendance, error) {
	for _, id := range t.order {
		rec := t.records[id]
		if rec.UserID == userID && rec.IsActive() {
			out := rec.Clone()
			return &out, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) Get(_ context.Context, id uuid.UUID) (*Attendance, error) {
	rec, ok := t.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec.Clone()
	return &out, nil
}

func (t *memoryTx) Create(ctx context.Context, a *Attendance) error {
	if !a.Status.IsValid() {
		return fmt.Errorf("invalid attendance status %q", a.Status)
	}
	if a.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		a.ID = id
	}
	if _, exists := t.records[a.ID]; exists {
		return fmt.Errorf("%w: id %s", ErrDuplicate, a.ID)
	}
	if active, _ := t.FindActiveByUser(ctx, a.UserID); active != nil && a.IsActive() {
		return fmt.Errorf("%w: user %s", ErrDuplicate, a.UserID)
	}

	now := time.Now().UTC()
	a.EventID = t.event.ID
	a.CreatedAt = now
	a.UpdatedAt = now

	t.records[a.ID] = a.Clone()
	t.order = append(t.order, a.ID)
	return nil
}

func (t *memoryTx) Update(_ context.Context, a *Attendance) error {
	current, ok := t.records[a.ID]
	if !ok {
		return ErrNotFound
	}

	current.Status = a.Status
	current.WaitlistPosition = a.WaitlistPosition
	current.ConfirmedAt = a.ConfirmedAt
	current.RemovedAt = a.RemovedAt
	current.PromotedFromWaitlist = a.PromotedFromWaitlist
	current.UpdatedAt = time.Now().UTC()
	a.UpdatedAt = current.UpdatedAt

	t.records[a.ID] = current.Clone()
	return nil
}
