package attendance

import (
	"context"
	"errors"

	"attendly/internal/events"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("attendance not found")
	ErrEventNotFound = errors.New("event not found")
	// ErrLockTimeout means the event's row or key lock was not granted in time.
	ErrLockTimeout = errors.New("event lock wait timed out")
	// ErrDuplicate means a write collided with a uniqueness rule, such as a
	// second active registration for the same user.
	ErrDuplicate = errors.New("attendance conflicts with an existing record")
)

// Tx is one event's attendance set as seen from inside that event's
// admission boundary. Writes become visible to others only if the function
// passed to InEventTx returns nil.
type Tx interface {
	Event() *events.Event
	CountByStatus(ctx context.Context, status Status) (int, error)
	// ListByStatus returns records in arrival order.
	ListByStatus(ctx context.Context, status Status) ([]Attendance, error)
	// FindActiveByUser returns nil when the user holds no active record.
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*Attendance, error)
	Get(ctx context.Context, id uuid.UUID) (*Attendance, error)
	Create(ctx context.Context, a *Attendance) error
	Update(ctx context.Context, a *Attendance) error
}

// Store persists attendance records. InEventTx serializes callers per event.
type Store interface {
	InEventTx(ctx context.Context, eventID uuid.UUID, fn func(tx Tx) error) error
	GetByID(ctx context.Context, id uuid.UUID) (*Attendance, error)
	ListByStatus(ctx context.Context, eventID uuid.UUID, status Status) ([]Attendance, error)
	CountByStatus(ctx context.Context, eventID uuid.UUID, status Status) (int, error)
	EventIDsWithStatus(ctx context.Context, status Status) ([]uuid.UUID, error)
}

// EventSource loads the event configuration for the memory store.
type EventSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*events.Event, error)
}
