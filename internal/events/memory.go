package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemoryRepository keeps events in process. It backs the memory admission
// store and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[uuid.UUID]Event
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{events: make(map[uuid.UUID]Event)}
}

func (r *MemoryRepository) Create(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	r.events[event.ID] = cloneEvent(*event)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := cloneEvent(event)
	return &out, nil
}

func (r *MemoryRepository) Update(_ context.Context, id uuid.UUID, updates map[string]interface{}) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}

	for column, value := range updates {
		switch column {
		case "name":
			event.Name = value.(string)
		case "description":
			event.Description = value.(string)
		case "venue":
			event.Venue = value.(string)
		case "starts_at":
			event.StartsAt = value.(time.Time)
		case "capacity":
			event.Capacity, _ = value.(*int)
		case "waitlist_enabled":
			event.WaitlistEnabled = value.(bool)
		case "waitlist_max_size":
			event.WaitlistMaxSize, _ = value.(*int)
		case "waitlist_auto_promote":
			event.WaitlistAutoPromote = value.(bool)
		case "updated_by":
			updatedBy := value.(uuid.UUID)
			event.UpdatedBy = &updatedBy
		}
	}
	event.UpdatedAt = time.Now().UTC()
	r.events[id] = cloneEvent(event)

	out := cloneEvent(event)
	return &out, nil
}

func (r *MemoryRepository) GetAll(_ context.Context, query EventListQuery) ([]Event, int64, error) {
	r.mu.RLock()
	all := make([]Event, 0, len(r.events))
	for _, event := range r.events {
		all = append(all, cloneEvent(event))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].StartsAt.Before(all[j].StartsAt) })

	total := int64(len(all))
	start := (query.Page - 1) * query.Limit
	if start >= len(all) {
		return []Event{}, total, nil
	}
	end := start + query.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func cloneEvent(e Event) Event {
	if e.Capacity != nil {
		v := *e.Capacity
		e.Capacity = &v
	}
	if e.WaitlistMaxSize != nil {
		v := *e.WaitlistMaxSize
		e.WaitlistMaxSize = &v
	}
	if e.UpdatedBy != nil {
		v := *e.UpdatedBy
		e.UpdatedBy = &v
	}
	return e
}
