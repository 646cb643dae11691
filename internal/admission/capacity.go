package admission

import (
	"context"

	"attendly/internal/attendance"
)

// Accountant answers capacity questions from inside an event's boundary.
type Accountant struct{}

func (Accountant) ConfirmedCount(ctx context.Context, tx attendance.Tx) (int, error) {
	return tx.CountByStatus(ctx, attendance.StatusConfirmed)
}

// HasCapacity reports whether one more attendee can be confirmed.
func (a Accountant) HasCapacity(ctx context.Context, tx attendance.Tx) (bool, error) {
	event := tx.Event()
	if event.IsUnlimited() {
		return true, nil
	}
	confirmed, err := a.ConfirmedCount(ctx, tx)
	if err != nil {
		return false, err
	}
	return confirmed < *event.Capacity, nil
}
