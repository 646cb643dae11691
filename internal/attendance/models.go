package attendance

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status is the tagged state of an attendance record.
type Status string

const (
	StatusConfirmed  Status = "confirmed"
	StatusWaitlisted Status = "waitlisted"
	StatusRemoved    Status = "removed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusConfirmed, StatusWaitlisted, StatusRemoved:
		return true
	}
	return false
}

// CanTransitionTo checks if a status transition is allowed
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusWaitlisted:
		return next == StatusConfirmed || next == StatusRemoved
	case StatusConfirmed:
		return next == StatusRemoved
	default:
		return false
	}
}

// Attendance is one registrant's relationship to one event.
type Attendance struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	EventID uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index:idx_attendances_event_status,priority:1"`
	UserID  uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Email   string    `json:"email" gorm:"size:255"`
	Name    string    `json:"name" gorm:"size:255"`

	Status           Status `json:"status" gorm:"type:varchar(20);not null;index:idx_attendances_event_status,priority:2"`
	WaitlistPosition *int   `json:"waitlist_position,omitempty"`

	RegisteredAt         time.Time  `json:"registered_at" gorm:"not null"`
	ConfirmedAt          *time.Time `json:"confirmed_at,omitempty"`
	RemovedAt            *time.Time `json:"removed_at,omitempty"`
	PromotedFromWaitlist bool       `json:"promoted_from_waitlist" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Attendance) TableName() string {
	return "attendances"
}

// IsActive reports whether the record still counts toward the event.
func (a *Attendance) IsActive() bool {
	return a.Status != StatusRemoved
}

// Position returns the waitlist position, or 0 when the record has none.
func (a *Attendance) Position() int {
	if a.WaitlistPosition == nil {
		return 0
	}
	return *a.WaitlistPosition
}

// Clone returns a deep copy.
func (a Attendance) Clone() Attendance {
	if a.WaitlistPosition != nil {
		v := *a.WaitlistPosition
		a.WaitlistPosition = &v
	}
	if a.ConfirmedAt != nil {
		v := *a.ConfirmedAt
		a.ConfirmedAt = &v
	}
	if a.RemovedAt != nil {
		v := *a.RemovedAt
		a.RemovedAt = &v
	}
	return a
}

// ArrivedBefore orders records by registration time, breaking ties by id.
// Ids are UUIDv7, so the tie-break follows creation order.
func ArrivedBefore(a, b *Attendance) bool {
	if !a.RegisteredAt.Equal(b.RegisteredAt) {
		return a.RegisteredAt.Before(b.RegisteredAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

// SortFIFO sorts records in arrival order.
func SortFIFO(records []Attendance) {
	sort.SliceStable(records, func(i, j int) bool {
		return ArrivedBefore(&records[i], &records[j])
	})
}
