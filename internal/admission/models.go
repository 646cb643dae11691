package admission

import (
	"time"

	"attendly/internal/attendance"

	"github.com/google/uuid"
)

// Registrant identifies who is registering.
type Registrant struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

type DecisionStatus string

const (
	DecisionConfirmed  DecisionStatus = "confirmed"
	DecisionWaitlisted DecisionStatus = "waitlisted"
	DecisionRejected   DecisionStatus = "rejected"
)

type RejectReason string

const (
	ReasonAtCapacity   RejectReason = "at_capacity"
	ReasonWaitlistFull RejectReason = "waitlist_full"
)

// Decision is the outcome of one registration attempt. A rejected decision
// creates no record.
type Decision struct {
	Status       DecisionStatus `json:"status"`
	Position     int            `json:"position,omitempty"`
	Reason       RejectReason   `json:"reason,omitempty"`
	AttendanceID *uuid.UUID     `json:"attendance_id,omitempty"`
}

type PromotionOutcome string

const (
	OutcomePromoted      PromotionOutcome = "promoted"
	OutcomeAtCapacity    PromotionOutcome = "at_capacity"
	OutcomeWaitlistEmpty PromotionOutcome = "waitlist_empty"
)

type PromotionResult struct {
	Outcome      PromotionOutcome `json:"outcome"`
	AttendanceID *uuid.UUID       `json:"promoted_attendance_id,omitempty"`
}

// Err returns ErrAtCapacity or ErrWaitlistEmpty when nothing was promoted.
func (r PromotionResult) Err() error {
	switch r.Outcome {
	case OutcomeAtCapacity:
		return ErrAtCapacity
	case OutcomeWaitlistEmpty:
		return ErrWaitlistEmpty
	default:
		return nil
	}
}

type RemovalResult struct {
	OK                   bool              `json:"ok"`
	AlreadyRemoved       bool              `json:"already_removed"`
	PreviousStatus       attendance.Status `json:"previous_status"`
	PromotedAttendanceID *uuid.UUID        `json:"promoted_attendance_id,omitempty"`
}

// Trigger names what caused a promotion.
type Trigger string

const (
	TriggerRemoval        Trigger = "removal"
	TriggerManual         Trigger = "manual"
	TriggerCapacityChange Trigger = "capacity_change"
)

type SnapshotEntry struct {
	AttendanceID uuid.UUID `json:"attendance_id"`
	Position     int       `json:"position"`
	RegisteredAt time.Time `json:"registered_at"`
}

type CapacitySummary struct {
	EventID             uuid.UUID `json:"event_id"`
	Capacity            *int      `json:"capacity"`
	Unlimited           bool      `json:"unlimited"`
	Confirmed           int       `json:"confirmed"`
	Remaining           *int      `json:"remaining"`
	Waitlisted          int       `json:"waitlisted"`
	WaitlistEnabled     bool      `json:"waitlist_enabled"`
	WaitlistMaxSize     *int      `json:"waitlist_max_size"`
	WaitlistAutoPromote bool      `json:"waitlist_auto_promote"`
}

// PositionChange records one waitlist renumbering. From is 0 when the
// record had no position.
type PositionChange struct {
	AttendanceID uuid.UUID `json:"attendance_id"`
	From         int       `json:"from"`
	To           int       `json:"to"`
}

type VerifyReport struct {
	EventID    uuid.UUID `json:"event_id"`
	Consistent bool      `json:"consistent"`
	Size       int       `json:"size"`
	Problem    string    `json:"problem,omitempty"`
}

type RepairResult struct {
	EventID uuid.UUID        `json:"event_id"`
	Size    int              `json:"size"`
	Changed []PositionChange `json:"changed"`
}
