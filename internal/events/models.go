package events

import (
	"time"

	"github.com/google/uuid"
)

// Event carries the capacity and waitlist configuration consulted on every
// admission decision. A nil Capacity means unlimited; a nil WaitlistMaxSize
// means an unbounded waitlist.
type Event struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `json:"name" gorm:"not null;size:255"`
	Description string    `json:"description" gorm:"type:text"`
	Venue       string    `json:"venue" gorm:"size:255"`
	StartsAt    time.Time `json:"starts_at" gorm:"not null"`

	Capacity            *int `json:"capacity" gorm:"check:capacity > 0"`
	WaitlistEnabled     bool `json:"waitlist_enabled" gorm:"not null;default:false"`
	WaitlistMaxSize     *int `json:"waitlist_max_size" gorm:"check:waitlist_max_size > 0"`
	WaitlistAutoPromote bool `json:"waitlist_auto_promote" gorm:"not null;default:false"`

	CreatedBy uuid.UUID  `json:"created_by" gorm:"type:uuid;not null"`
	UpdatedBy *uuid.UUID `json:"updated_by" gorm:"type:uuid"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsUnlimited reports whether the event accepts any number of confirmed attendees.
func (e *Event) IsUnlimited() bool {
	return e.Capacity == nil
}

// WaitlistAccepts reports whether one more entry fits on a waitlist currently holding size entries.
func (e *Event) WaitlistAccepts(size int) bool {
	if !e.WaitlistEnabled {
		return false
	}
	return e.WaitlistMaxSize == nil || size < *e.WaitlistMaxSize
}

// CapacityIncreased reports whether after admits more confirmed attendees than before.
func CapacityIncreased(before, after *Event) bool {
	switch {
	case after.Capacity == nil:
		return before.Capacity != nil
	case before.Capacity == nil:
		return false
	default:
		return *after.Capacity > *before.Capacity
	}
}

type EventResponse struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	Venue               string    `json:"venue"`
	StartsAt            time.Time `json:"starts_at"`
	Capacity            *int      `json:"capacity"`
	WaitlistEnabled     bool      `json:"waitlist_enabled"`
	WaitlistMaxSize     *int      `json:"waitlist_max_size"`
	WaitlistAutoPromote bool      `json:"waitlist_auto_promote"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type UpdateEventResponse struct {
	Event    EventResponse `json:"event"`
	Promoted int           `json:"promoted"`
}

type PaginatedEvents struct {
	Events     []EventResponse `json:"events"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
}

// CreateEventRequest creates an event. A zero capacity or waitlist size means "not set".
type CreateEventRequest struct {
	Name                string    `json:"name" validate:"required,min=3,max=255"`
	Description         string    `json:"description" validate:"max=2000"`
	Venue               string    `json:"venue" validate:"max=255"`
	StartsAt            time.Time `json:"starts_at" validate:"required"`
	Capacity            int       `json:"capacity" validate:"min=0,max=1000000"`
	WaitlistEnabled     bool      `json:"waitlist_enabled"`
	WaitlistMaxSize     int       `json:"waitlist_max_size" validate:"min=0,max=1000000"`
	WaitlistAutoPromote bool      `json:"waitlist_auto_promote"`
}

// UpdateEventRequest patches an event. Omitted fields are left alone; a zero
// capacity or waitlist size clears the limit.
type UpdateEventRequest struct {
	Name                *string    `json:"name" validate:"omitempty,min=3,max=255"`
	Description         *string    `json:"description" validate:"omitempty,max=2000"`
	Venue               *string    `json:"venue" validate:"omitempty,max=255"`
	StartsAt            *time.Time `json:"starts_at"`
	Capacity            *int       `json:"capacity" validate:"omitempty,min=0,max=1000000"`
	WaitlistEnabled     *bool      `json:"waitlist_enabled"`
	WaitlistMaxSize     *int       `json:"waitlist_max_size" validate:"omitempty,min=0,max=1000000"`
	WaitlistAutoPromote *bool      `json:"waitlist_auto_promote"`
}

type EventListQuery struct {
	Page  int `form:"page" validate:"min=0"`
	Limit int `form:"limit" validate:"min=0,max=100"`
}

func (e *Event) ToResponse() EventResponse {
	return EventResponse{
		ID:                  e.ID.String(),
		Name:                e.Name,
		Description:         e.Description,
		Venue:               e.Venue,
		StartsAt:            e.StartsAt,
		Capacity:            e.Capacity,
		WaitlistEnabled:     e.WaitlistEnabled,
		WaitlistMaxSize:     e.WaitlistMaxSize,
		WaitlistAutoPromote: e.WaitlistAutoPromote,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

// positiveOrNil maps the "zero means unset" request convention onto the model.
func positiveOrNil(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
