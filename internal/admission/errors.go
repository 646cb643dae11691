package admission

import (
	"errors"

	"attendly/internal/attendance"
	"attendly/internal/events"
)

var (
	// ErrInconsistentState means a waitlist was found with a missing,
	// non-positive, duplicate or out-of-order position. Only RepairWaitlist
	// rewrites such a waitlist.
	ErrInconsistentState = errors.New("waitlist positions are inconsistent")
	// ErrBoundaryTimeout means the event's admission boundary was not
	// acquired in time. Safe to retry.
	ErrBoundaryTimeout   = errors.New("timed out waiting for event admission boundary")
	ErrAlreadyRegistered = errors.New("registrant already holds an active registration for this event")
	ErrInvalidRegistrant = errors.New("registrant user id is required")

	ErrEventNotFound      = events.ErrEventNotFound
	ErrAttendanceNotFound = attendance.ErrNotFound

	// Promotion outcomes as errors, see PromotionResult.Err.
	ErrAtCapacity    = errors.New("event is at capacity")
	ErrWaitlistEmpty = errors.New("waitlist is empty")

	errWaitlistFull = errors.New("waitlist is full")
)
