package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendly/internal/attendance"
	"attendly/internal/events"
	"attendly/internal/notifications"
	"attendly/internal/shared/constants"
	"attendly/pkg/cache"
	"attendly/pkg/lock"
	"attendly/pkg/logger"
	"attendly/pkg/metrics"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service decides admission for capacity-limited events and keeps their
// waitlists ordered. Every write to one event's attendance runs inside that
// event's admission boundary.
type Service interface {
	RegisterAttendee(ctx context.Context, eventID uuid.UUID, registrant Registrant) (*Decision, error)
	RemoveAttendee(ctx context.Context, attendanceID uuid.UUID) (*RemovalResult, error)
	PromoteNext(ctx context.Context, eventID uuid.UUID) (*PromotionResult, error)
	PromoteWhileCapacity(ctx context.Context, eventID uuid.UUID) (int, error)

	// HandleCapacityChange satisfies events.CapacityListener.
	HandleCapacityChange(ctx context.Context, before, after *events.Event) (int, error)

	GetAttendance(ctx context.Context, attendanceID uuid.UUID) (*attendance.Attendance, error)
	GetWaitlistSnapshot(ctx context.Context, eventID uuid.UUID) ([]SnapshotEntry, error)
	GetCapacitySummary(ctx context.Context, eventID uuid.UUID) (*CapacitySummary, error)

	// Operator tooling
	VerifyWaitlist(ctx context.Context, eventID uuid.UUID) (*VerifyReport, error)
	RepairWaitlist(ctx context.Context, eventID uuid.UUID) (*RepairResult, error)
	EventsWithWaitlist(ctx context.Context) ([]uuid.UUID, error)
}

// ServiceConfig contains configuration for the admission service
type ServiceConfig struct {
	NotificationTimeout time.Duration
	SnapshotCacheTTL    time.Duration
	SummaryCacheTTL     time.Duration
	// Clock stamps registeredAt, confirmedAt and removedAt.
	Clock func() time.Time
}

// DefaultServiceConfig returns default service configuration
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		NotificationTimeout: 5 * time.Second,
		SnapshotCacheTTL:    constants.TTL_WAITLIST_SNAPSHOT,
		SummaryCacheTTL:     constants.TTL_CAPACITY_SUMMARY,
		Clock:               func() time.Time { return time.Now().UTC() },
	}
}

type service struct {
	store      attendance.Store
	events     attendance.EventSource
	locker     lock.Locker
	dispatcher notifications.Dispatcher
	cache      cache.Service
	metrics    *metrics.Admission
	log        *logger.Logger
	config     *ServiceConfig

	accountant Accountant
	sequencer  Sequencer
	policy     Policy
}

// NewService wires the admission service. locker, dispatcher, cacheService
// and m may be nil.
func NewService(
	store attendance.Store,
	eventSource attendance.EventSource,
	locker lock.Locker,
	dispatcher notifications.Dispatcher,
	cacheService cache.Service,
	m *metrics.Admission,
	log *logger.Logger,
	config *ServiceConfig,
) Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	if config.Clock == nil {
		config.Clock = DefaultServiceConfig().Clock
	}
	if locker == nil {
		locker = lock.Noop{}
	}
	if dispatcher == nil {
		dispatcher = notifications.NoopDispatcher{}
	}
	if log == nil {
		log = logger.GetDefault()
	}

	return &service{
		store:      store,
		events:     eventSource,
		locker:     locker,
		dispatcher: dispatcher,
		cache:      cacheService,
		metrics:    m,
		log:        log,
		config:     config,
	}
}

// outbox collects notifications inside the boundary. They are sent only
// after the boundary commits.
type outbox struct {
	notifications []*notifications.AdmissionNotification
}

func (o *outbox) add(n *notifications.AdmissionNotification) {
	o.notifications = append(o.notifications, n)
}

func (o *outbox) addPositionChanges(eventID uuid.UUID, waiting []attendance.Attendance, changes []PositionChange) {
	byID := make(map[uuid.UUID]*attendance.Attendance, len(waiting))
	for i := range waiting {
		byID[waiting[i].ID] = &waiting[i]
	}
	for _, ch := range changes {
		rec, ok := byID[ch.AttendanceID]
		if !ok {
			continue
		}
		o.add(notifications.NewNotificationBuilder().
			WithType(notifications.NotificationTypeWaitlistPositionUpdate).
			WithRecipient(rec.UserID, rec.Email, rec.Name).
			WithAttendance(eventID, rec.ID, string(attendance.StatusWaitlisted)).
			WithPosition(ch.From, ch.To).
			Build())
	}
}

// withBoundary runs fn inside the event's admission boundary and, once the
// boundary has committed, drops cached views and sends the notifications.
func (s *service) withBoundary(ctx context.Context, eventID uuid.UUID, fn func(tx attendance.Tx, box *outbox) error) error {
	pending, err := s.inBoundary(ctx, eventID, fn)
	if err != nil {
		return err
	}
	s.afterCommit(ctx, eventID, pending)
	return nil
}

// inBoundary runs fn under the optional locker first, then inside the store
// transaction that serializes the event.
func (s *service) inBoundary(ctx context.Context, eventID uuid.UUID, fn func(tx attendance.Tx, box *outbox) error) ([]*notifications.AdmissionNotification, error) {
	start := time.Now()

	unlock, err := s.locker.Acquire(ctx, eventID.String())
	if err != nil {
		return nil, s.translateError(ctx, eventID, start, err)
	}
	defer unlock()

	var box outbox
	err = s.store.InEventTx(ctx, eventID, func(tx attendance.Tx) error {
		box = outbox{}
		return fn(tx, &box)
	})
	s.metrics.ObserveBoundary(time.Since(start))
	if err != nil {
		return nil, s.translateError(ctx, eventID, start, err)
	}
	return box.notifications, nil
}

func (s *service) translateError(ctx context.Context, eventID uuid.UUID, start time.Time, err error) error {
	switch {
	case errors.Is(err, attendance.ErrEventNotFound):
		return ErrEventNotFound
	case errors.Is(err, attendance.ErrLockTimeout),
		errors.Is(err, lock.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		s.metrics.BoundaryTimeout()
		s.log.LogBoundaryTimeout(ctx, eventID.String(), time.Since(start))
		return fmt.Errorf("%w: event %s", ErrBoundaryTimeout, eventID)
	case errors.Is(err, ErrInconsistentState):
		s.metrics.Inconsistent()
		s.log.LogWaitlistInconsistent(ctx, eventID.String(), err)
		return err
	}
	return err
}

// afterCommit drops cached views of the event and sends the collected
// notifications. Failures here are logged only.
func (s *service) afterCommit(ctx context.Context, eventID uuid.UUID, pending []*notifications.AdmissionNotification) {
	bg := context.WithoutCancel(ctx)
	s.invalidate(bg, eventID)

	if len(pending) == 0 {
		return
	}
	dispatchCtx, cancel := context.WithTimeout(bg, s.config.NotificationTimeout)
	defer cancel()
	if err := notifications.DispatchAll(dispatchCtx, s.dispatcher, pending); err != nil {
		s.log.ErrorWithContext(ctx, "Failed to dispatch admission notifications", err, map[string]interface{}{
			"event_id": eventID.String(),
			"count":    len(pending),
		})
	}
}

func (s *service) invalidate(ctx context.Context, eventID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, constants.BuildAdmissionCacheKeys(eventID.String())...); err != nil {
		s.log.WarnContext(ctx, "Failed to invalidate admission cache", "event_id", eventID.String(), "error", err.Error())
	}
}

// RegisterAttendee confirms, waitlists or rejects one registrant.
func (s *service) RegisterAttendee(ctx context.Context, eventID uuid.UUID, registrant Registrant) (*Decision, error) {
	if registrant.UserID == uuid.Nil {
		return nil, ErrInvalidRegistrant
	}

	var decision Decision
	err := s.withBoundary(ctx, eventID, func(tx attendance.Tx, box *outbox) error {
		decision = Decision{}

		existing, err := tx.FindActiveByUser(ctx, registrant.UserID)
		if err != nil {
			return fmt.Errorf("failed to check existing registration: %w", err)
		}
		if existing != nil {
			return ErrAlreadyRegistered
		}

		now := s.config.Clock()
		hasCapacity, err := s.accountant.HasCapacity(ctx, tx)
		if err != nil {
			return fmt.Errorf("failed to count confirmed attendees: %w", err)
		}
		if hasCapacity {
			rec := &attendance.Attendance{
				UserID:       registrant.UserID,
				Email:        registrant.Email,
				Name:         registrant.Name,
				Status:       attendance.StatusConfirmed,
				RegisteredAt: now,
				ConfirmedAt:  &now,
			}
			if err := s.create(ctx, tx, rec); err != nil {
				return err
			}
			decision = Decision{Status: DecisionConfirmed, AttendanceID: &rec.ID}
			box.add(notifications.NewNotificationBuilder().
				WithType(notifications.NotificationTypeAttendeeConfirmed).
				WithRecipient(rec.UserID, rec.Email, rec.Name).
				WithAttendance(eventID, rec.ID, string(rec.Status)).
				Build())
			return nil
		}

		if !tx.Event().WaitlistEnabled {
			decision = Decision{Status: DecisionRejected, Reason: ReasonAtCapacity}
			return nil
		}

		position, err := s.sequencer.Append(ctx, tx)
		if errors.Is(err, errWaitlistFull) {
			decision = Decision{Status: DecisionRejected, Reason: ReasonWaitlistFull}
			return nil
		}
		if err != nil {
			return err
		}

		rec := &attendance.Attendance{
			UserID:           registrant.UserID,
			Email:            registrant.Email,
			Name:             registrant.Name,
			Status:           attendance.StatusWaitlisted,
			WaitlistPosition: &position,
			RegisteredAt:     now,
		}
		if err := s.create(ctx, tx, rec); err != nil {
			return err
		}

		// A registeredAt behind the tail, from clock skew between writers,
		// moves the new entry forward.
		waiting, changes, err := s.reindex(ctx, tx)
		if err != nil {
			return err
		}
		for _, ch := range changes {
			if ch.AttendanceID == rec.ID {
				position = ch.To
			}
		}

		decision = Decision{Status: DecisionWaitlisted, Position: position, AttendanceID: &rec.ID}
		box.add(notifications.NewNotificationBuilder().
			WithType(notifications.NotificationTypeAttendeeWaitlisted).
			WithRecipient(rec.UserID, rec.Email, rec.Name).
			WithAttendance(eventID, rec.ID, string(rec.Status)).
			WithPosition(0, position).
			Build())
		box.addPositionChanges(eventID, waiting, withoutAttendance(changes, rec.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Decision(string(decision.Status))
	if decision.Status == DecisionRejected {
		s.log.LogRegistrationRejected(ctx, eventID.String(), registrant.UserID.String(), string(decision.Reason))
	} else {
		s.log.LogAttendeeRegistered(ctx, eventID.String(), decision.AttendanceID.String(), string(decision.Status), decision.Position)
	}
	return &decision, nil
}

func (s *service) create(ctx context.Context, tx attendance.Tx, rec *attendance.Attendance) error {
	err := tx.Create(ctx, rec)
	if errors.Is(err, attendance.ErrDuplicate) {
		return ErrAlreadyRegistered
	}
	if err != nil {
		return fmt.Errorf("failed to create attendance: %w", err)
	}
	return nil
}

// reindex closes waitlist gaps and returns the waitlist as it now stands.
func (s *service) reindex(ctx context.Context, tx attendance.Tx) ([]attendance.Attendance, []PositionChange, error) {
	changes, err := s.sequencer.Reindex(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	if len(changes) == 0 {
		return nil, nil, nil
	}
	waiting, err := tx.ListByStatus(ctx, attendance.StatusWaitlisted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list waitlist: %w", err)
	}
	return waiting, changes, nil
}

func withoutAttendance(changes []PositionChange, id uuid.UUID) []PositionChange {
	out := changes[:0:0]
	for _, ch := range changes {
		if ch.AttendanceID != id {
			out = append(out, ch)
		}
	}
	return out
}

// RemoveAttendee soft-removes a record. Removing a removed record reports
// success without writing.
func (s *service) RemoveAttendee(ctx context.Context, attendanceID uuid.UUID) (*RemovalResult, error) {
	current, err := s.store.GetByID(ctx, attendanceID)
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			return nil, ErrAttendanceNotFound
		}
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	if current.Status == attendance.StatusRemoved {
		return &RemovalResult{OK: true, AlreadyRemoved: true, PreviousStatus: attendance.StatusRemoved}, nil
	}

	var result RemovalResult
	err = s.withBoundary(ctx, current.EventID, func(tx attendance.Tx, box *outbox) error {
		result = RemovalResult{OK: true}

		rec, err := tx.Get(ctx, attendanceID)
		if err != nil {
			return err
		}
		result.PreviousStatus = rec.Status
		if rec.Status == attendance.StatusRemoved {
			result.AlreadyRemoved = true
			return nil
		}

		now := s.config.Clock()
		rec.Status = attendance.StatusRemoved
		rec.RemovedAt = &now
		rec.WaitlistPosition = nil
		if err := tx.Update(ctx, rec); err != nil {
			return fmt.Errorf("failed to remove attendance: %w", err)
		}
		box.add(notifications.NewNotificationBuilder().
			WithType(notifications.NotificationTypeAttendeeRemoved).
			WithRecipient(rec.UserID, rec.Email, rec.Name).
			WithAttendance(rec.EventID, rec.ID, string(rec.Status)).
			Build())

		switch result.PreviousStatus {
		case attendance.StatusConfirmed:
			if !s.policy.PromoteOnRemoval(result.PreviousStatus, tx.Event()) {
				return nil
			}
			promotion, err := s.promoteHead(ctx, tx, box, TriggerRemoval)
			if err != nil {
				return err
			}
			result.PromotedAttendanceID = promotion.AttendanceID
		case attendance.StatusWaitlisted:
			waiting, changes, err := s.reindex(ctx, tx)
			if err != nil {
				return err
			}
			box.addPositionChanges(rec.EventID, waiting, changes)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			return nil, ErrAttendanceNotFound
		}
		return nil, err
	}

	if !result.AlreadyRemoved {
		s.metrics.Removal(string(result.PreviousStatus))
		s.log.LogAttendeeRemoved(ctx, current.EventID.String(), attendanceID.String(), string(result.PreviousStatus))
	}
	if result.PromotedAttendanceID != nil {
		s.recordPromotion(ctx, current.EventID, *result.PromotedAttendanceID, TriggerRemoval)
	}
	return &result, nil
}

// promoteHead confirms the head of the waitlist when a seat is free. It runs
// inside the caller's boundary.
func (s *service) promoteHead(ctx context.Context, tx attendance.Tx, box *outbox, trigger Trigger) (PromotionResult, error) {
	hasCapacity, err := s.accountant.HasCapacity(ctx, tx)
	if err != nil {
		return PromotionResult{}, fmt.Errorf("failed to count confirmed attendees: %w", err)
	}
	if !hasCapacity {
		return PromotionResult{Outcome: OutcomeAtCapacity}, nil
	}

	head, err := s.sequencer.PopHead(ctx, tx)
	if err != nil {
		return PromotionResult{}, err
	}
	if head == nil {
		return PromotionResult{Outcome: OutcomeWaitlistEmpty}, nil
	}

	now := s.config.Clock()
	head.Status = attendance.StatusConfirmed
	head.ConfirmedAt = &now
	head.PromotedFromWaitlist = true
	if err := tx.Update(ctx, head); err != nil {
		return PromotionResult{}, fmt.Errorf("failed to promote attendance: %w", err)
	}

	waiting, changes, err := s.reindex(ctx, tx)
	if err != nil {
		return PromotionResult{}, err
	}

	box.add(notifications.NewNotificationBuilder().
		WithType(notifications.NotificationTypeAttendeePromoted).
		WithRecipient(head.UserID, head.Email, head.Name).
		WithAttendance(head.EventID, head.ID, string(head.Status)).
		WithPosition(1, 0).
		WithTrigger(string(trigger)).
		Build())
	box.addPositionChanges(head.EventID, waiting, changes)

	id := head.ID
	return PromotionResult{Outcome: OutcomePromoted, AttendanceID: &id}, nil
}

func (s *service) recordPromotion(ctx context.Context, eventID, attendanceID uuid.UUID, trigger Trigger) {
	s.metrics.Promotion(string(trigger))
	s.log.LogPromotion(ctx, eventID.String(), attendanceID.String(), string(trigger))
}

// PromoteNext attempts exactly one promotion, whatever the event's
// auto-promote setting.
func (s *service) PromoteNext(ctx context.Context, eventID uuid.UUID) (*PromotionResult, error) {
	return s.promoteOnce(ctx, eventID, TriggerManual)
}

func (s *service) promoteOnce(ctx context.Context, eventID uuid.UUID, trigger Trigger) (*PromotionResult, error) {
	var result PromotionResult
	err := s.withBoundary(ctx, eventID, func(tx attendance.Tx, box *outbox) error {
		var err error
		result, err = s.promoteHead(ctx, tx, box, trigger)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result.Outcome == OutcomePromoted {
		s.recordPromotion(ctx, eventID, *result.AttendanceID, trigger)
	}
	return &result, nil
}

// PromoteWhileCapacity promotes one entry per boundary until the event is
// full or nobody is waiting, and returns how many were promoted.
func (s *service) PromoteWhileCapacity(ctx context.Context, eventID uuid.UUID) (int, error) {
	return s.promoteLoop(ctx, eventID, TriggerCapacityChange)
}

func (s *service) promoteLoop(ctx context.Context, eventID uuid.UUID, trigger Trigger) (int, error) {
	promoted := 0
	for {
		if err := ctx.Err(); err != nil {
			return promoted, err
		}
		result, err := s.promoteOnce(ctx, eventID, trigger)
		if err != nil {
			return promoted, err
		}
		if result.Outcome != OutcomePromoted {
			return promoted, nil
		}
		promoted++
	}
}

func (s *service) HandleCapacityChange(ctx context.Context, before, after *events.Event) (int, error) {
	s.invalidate(ctx, after.ID)
	if !s.policy.PromoteOnCapacityChange(before, after) {
		return 0, nil
	}
	return s.promoteLoop(ctx, after.ID, TriggerCapacityChange)
}

func (s *service) GetAttendance(ctx context.Context, attendanceID uuid.UUID) (*attendance.Attendance, error) {
	rec, err := s.store.GetByID(ctx, attendanceID)
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			return nil, ErrAttendanceNotFound
		}
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	return rec, nil
}

func (s *service) getEvent(ctx context.Context, eventID uuid.UUID) (*events.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// readView fills dest from the cache, or on a miss from load run inside the
// event's boundary. The cache is filled before the boundary releases, so a
// mutation's invalidation can never land ahead of a stale fill.
func (s *service) readView(ctx context.Context, eventID uuid.UUID, key string, ttl time.Duration, load func(tx attendance.Tx) (interface{}, error), dest interface{}) error {
	if s.cache != nil {
		err := s.cache.Get(ctx, key, dest)
		if err == nil {
			return nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "Cache get error, falling back to store", "key", key, "error", err.Error())
		}
	}

	var data interface{}
	_, err := s.inBoundary(ctx, eventID, func(tx attendance.Tx, _ *outbox) error {
		var err error
		if data, err = load(tx); err != nil {
			return err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, data, ttl); err != nil {
				s.log.WarnContext(ctx, "Cache set error", "key", key, "error", err.Error())
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return assign(data, dest)
}

func assign(data, dest interface{}) error {
	switch d := dest.(type) {
	case *[]SnapshotEntry:
		*d = data.([]SnapshotEntry)
	case *CapacitySummary:
		*d = *data.(*CapacitySummary)
	default:
		return fmt.Errorf("unsupported cache destination %T", dest)
	}
	return nil
}

// GetWaitlistSnapshot lists the waitlist in position order.
func (s *service) GetWaitlistSnapshot(ctx context.Context, eventID uuid.UUID) ([]SnapshotEntry, error) {
	if _, err := s.getEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var snapshot []SnapshotEntry
	err := s.readView(ctx, eventID, constants.BuildWaitlistSnapshotKey(eventID.String()), s.config.SnapshotCacheTTL,
		func(tx attendance.Tx) (interface{}, error) {
			waiting, err := tx.ListByStatus(ctx, attendance.StatusWaitlisted)
			if err != nil {
				return nil, fmt.Errorf("failed to list waitlist: %w", err)
			}
			out := make([]SnapshotEntry, 0, len(waiting))
			for _, rec := range waiting {
				out = append(out, SnapshotEntry{
					AttendanceID: rec.ID,
					Position:     rec.Position(),
					RegisteredAt: rec.RegisteredAt,
				})
			}
			return out, nil
		}, &snapshot)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *service) GetCapacitySummary(ctx context.Context, eventID uuid.UUID) (*CapacitySummary, error) {
	if _, err := s.getEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var summary CapacitySummary
	err := s.readView(ctx, eventID, constants.BuildCapacitySummaryKey(eventID.String()), s.config.SummaryCacheTTL,
		func(tx attendance.Tx) (interface{}, error) {
			confirmed, err := s.accountant.ConfirmedCount(ctx, tx)
			if err != nil {
				return nil, err
			}
			waitlisted, err := tx.CountByStatus(ctx, attendance.StatusWaitlisted)
			if err != nil {
				return nil, fmt.Errorf("failed to count waitlisted attendees: %w", err)
			}

			event := tx.Event()
			out := &CapacitySummary{
				EventID:             event.ID,
				Capacity:            event.Capacity,
				Unlimited:           event.IsUnlimited(),
				Confirmed:           confirmed,
				Waitlisted:          waitlisted,
				WaitlistEnabled:     event.WaitlistEnabled,
				WaitlistMaxSize:     event.WaitlistMaxSize,
				WaitlistAutoPromote: event.WaitlistAutoPromote,
			}
			if !event.IsUnlimited() {
				remaining := max(*event.Capacity-confirmed, 0)
				out.Remaining = &remaining
			}
			return out, nil
		}, &summary)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// VerifyWaitlist checks the waitlist without writing. An inconsistent
// waitlist is reported, not returned as an error.
func (s *service) VerifyWaitlist(ctx context.Context, eventID uuid.UUID) (*VerifyReport, error) {
	report := &VerifyReport{EventID: eventID}
	_, err := s.inBoundary(ctx, eventID, func(tx attendance.Tx, _ *outbox) error {
		waiting, err := tx.ListByStatus(ctx, attendance.StatusWaitlisted)
		if err != nil {
			return fmt.Errorf("failed to list waitlist: %w", err)
		}
		report.Size = len(waiting)
		if err := checkDense(waiting); err != nil {
			report.Problem = err.Error()
			return nil
		}
		report.Consistent = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !report.Consistent {
		s.metrics.Inconsistent()
		s.log.LogWaitlistInconsistent(ctx, eventID.String(), errors.New(report.Problem))
	}
	return report, nil
}

// RepairWaitlist renumbers the waitlist in arrival order, including entries
// with missing or duplicate positions.
func (s *service) RepairWaitlist(ctx context.Context, eventID uuid.UUID) (*RepairResult, error) {
	result := &RepairResult{EventID: eventID}
	err := s.withBoundary(ctx, eventID, func(tx attendance.Tx, box *outbox) error {
		changes, size, err := s.sequencer.Repair(ctx, tx)
		if err != nil {
			return err
		}
		result.Size = size
		result.Changed = changes
		if len(changes) == 0 {
			return nil
		}
		waiting, err := tx.ListByStatus(ctx, attendance.StatusWaitlisted)
		if err != nil {
			return fmt.Errorf("failed to list waitlist: %w", err)
		}
		box.addPositionChanges(eventID, waiting, changes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Changed) > 0 {
		s.metrics.Repaired()
		s.log.InfoWithContext(ctx, "Waitlist Repaired", map[string]interface{}{
			"event_id": eventID.String(),
			"changed":  len(result.Changed),
			"size":     result.Size,
		})
	}
	return result, nil
}

func (s *service) EventsWithWaitlist(ctx context.Context) ([]uuid.UUID, error) {
	return s.store.EventIDsWithStatus(ctx, attendance.StatusWaitlisted)
}
