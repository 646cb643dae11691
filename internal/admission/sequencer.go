package admission

import (
	"context"
	"fmt"

	"attendly/internal/attendance"
)

// Sequencer keeps an event's waitlist positions dense and in arrival order.
type Sequencer struct{}

// Verify returns the waitlist in arrival order after checking that entry i
// holds position i+1.
func (Sequencer) Verify(ctx context.Context, tx attendance.Tx) ([]attendance.Attendance, error) {
	waiting, err := tx.ListByStatus(ctx, attendance.StatusWaitlisted)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}
	if err := checkDense(waiting); err != nil {
		return nil, err
	}
	return waiting, nil
}

// Append returns the position a new entry would take at the tail.
func (s Sequencer) Append(ctx context.Context, tx attendance.Tx) (int, error) {
	waiting, err := s.Verify(ctx, tx)
	if err != nil {
		return 0, err
	}
	if !tx.Event().WaitlistAccepts(len(waiting)) {
		return 0, errWaitlistFull
	}
	return len(waiting) + 1, nil
}

// PopHead returns the entry at position 1 with its position cleared, or nil
// when nobody is waiting. The caller persists the returned record.
func (s Sequencer) PopHead(ctx context.Context, tx attendance.Tx) (*attendance.Attendance, error) {
	waiting, err := s.Verify(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(waiting) == 0 {
		return nil, nil
	}
	head := waiting[0]
	head.WaitlistPosition = nil
	return &head, nil
}

// Reindex renumbers the waitlist 1..N in arrival order, closing gaps left by
// removals. Missing, non-positive or duplicate positions abort without a write.
func (Sequencer) Reindex(ctx context.Context, tx attendance.Tx) ([]PositionChange, error) {
	waiting, err := tx.ListByStatus(ctx, attendance.StatusWaitlisted)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}

	seen := make(map[int]struct{}, len(waiting))
	for i := range waiting {
		rec := &waiting[i]
		if rec.WaitlistPosition == nil {
			return nil, fmt.Errorf("%w: attendance %s has no position", ErrInconsistentState, rec.ID)
		}
		pos := *rec.WaitlistPosition
		if pos <= 0 {
			return nil, fmt.Errorf("%w: attendance %s has position %d", ErrInconsistentState, rec.ID, pos)
		}
		if _, dup := seen[pos]; dup {
			return nil, fmt.Errorf("%w: position %d is held twice", ErrInconsistentState, pos)
		}
		seen[pos] = struct{}{}
	}

	return renumber(ctx, tx, waiting)
}

// Repair renumbers the waitlist 1..N in arrival order whatever its current
// positions are.
func (Sequencer) Repair(ctx context.Context, tx attendance.Tx) ([]PositionChange, int, error) {
	waiting, err := tx.ListByStatus(ctx, attendance.StatusWaitlisted)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list waitlist: %w", err)
	}
	changes, err := renumber(ctx, tx, waiting)
	return changes, len(waiting), err
}

// renumber writes position i+1 to every entry of an arrival-ordered list
// whose position differs.
func renumber(ctx context.Context, tx attendance.Tx, waiting []attendance.Attendance) ([]PositionChange, error) {
	var changes []PositionChange
	for i := range waiting {
		rec := &waiting[i]
		want := i + 1
		if rec.Position() == want {
			continue
		}
		changes = append(changes, PositionChange{AttendanceID: rec.ID, From: rec.Position(), To: want})
		rec.WaitlistPosition = &want
		if err := tx.Update(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to update position of %s: %w", rec.ID, err)
		}
	}
	return changes, nil
}

func checkDense(waiting []attendance.Attendance) error {
	for i := range waiting {
		rec := &waiting[i]
		if rec.WaitlistPosition == nil {
			return fmt.Errorf("%w: attendance %s has no position", ErrInconsistentState, rec.ID)
		}
		if *rec.WaitlistPosition != i+1 {
			return fmt.Errorf("%w: attendance %s holds position %d, expected %d",
				ErrInconsistentState, rec.ID, *rec.WaitlistPosition, i+1)
		}
	}
	return nil
}
