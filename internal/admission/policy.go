package admission

import (
	"attendly/internal/attendance"
	"attendly/internal/events"
)

// Policy decides when promotion runs without an admin asking for it.
type Policy struct{}

// PromoteOnRemoval is true when a confirmed seat was freed on an auto-promote event.
func (Policy) PromoteOnRemoval(removed attendance.Status, event *events.Event) bool {
	return removed == attendance.StatusConfirmed && event.WaitlistAutoPromote
}

// PromoteOnCapacityChange is true when an edit may have opened seats on an
// auto-promote event: capacity went up or auto-promote was just switched on.
func (Policy) PromoteOnCapacityChange(before, after *events.Event) bool {
	if !after.WaitlistAutoPromote {
		return false
	}
	return events.CapacityIncreased(before, after) || !before.WaitlistAutoPromote
}
