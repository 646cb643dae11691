package admission

import (
	"time"

	"attendly/internal/attendance"

	"github.com/google/uuid"
)

type AttendanceResponse struct {
	ID                   uuid.UUID         `json:"id"`
	EventID              uuid.UUID         `json:"event_id"`
	UserID               uuid.UUID         `json:"user_id"`
	Status               attendance.Status `json:"status"`
	WaitlistPosition     *int              `json:"waitlist_position,omitempty"`
	RegisteredAt         time.Time         `json:"registered_at"`
	ConfirmedAt          *time.Time        `json:"confirmed_at,omitempty"`
	RemovedAt            *time.Time        `json:"removed_at,omitempty"`
	PromotedFromWaitlist bool              `json:"promoted_from_waitlist"`
}

func toAttendanceResponse(a *attendance.Attendance) AttendanceResponse {
	return AttendanceResponse{
		ID:                   a.ID,
		EventID:              a.EventID,
		UserID:               a.UserID,
		Status:               a.Status,
		WaitlistPosition:     a.WaitlistPosition,
		RegisteredAt:         a.RegisteredAt,
		ConfirmedAt:          a.ConfirmedAt,
		RemovedAt:            a.RemovedAt,
		PromotedFromWaitlist: a.PromotedFromWaitlist,
	}
}

type WaitlistSnapshotResponse struct {
	EventID uuid.UUID       `json:"event_id"`
	Size    int             `json:"size"`
	Entries []SnapshotEntry `json:"entries"`
}
