package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendly/internal/events"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgLockNotAvailable = "55P03"
	pgUniqueViolation  = "23505"
)

// updatableColumns are the only columns the admission engine mutates.
var updatableColumns = []string{
	"status",
	"waitlist_position",
	"confirmed_at",
	"removed_at",
	"promoted_from_waitlist",
	"updated_at",
}

// GormStore keeps attendance in PostgreSQL. The admission boundary is a
// transaction holding FOR UPDATE on the event row, so every writer of one
// event's attendance set queues behind the same row lock.
type GormStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewGormStore(db *gorm.DB, lockTimeout time.Duration) *GormStore {
	return &GormStore{db: db, lockTimeout: lockTimeout}
}

func (s *GormStore) InEventTx(ctx context.Context, eventID uuid.UUID, fn func(tx Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if s.lockTimeout > 0 {
			timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
			if err := db.Exec("SELECT set_config('lock_timeout', ?, true)", timeout).Error; err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}

		var event events.Event
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", eventID).
			First(&event).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock event: %w", err)
		}

		return fn(&gormTx{db: db, event: &event})
	})
	return translateError(err)
}

func (s *GormStore) GetByID(ctx context.Context, id uuid.UUID) (*Attendance, error) {
	var a Attendance
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GormStore) ListByStatus(ctx context.Context, eventID uuid.UUID, status Status) ([]Attendance, error) {
	var records []Attendance
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND status = ?", eventID, status).
		Order("registered_at ASC, id ASC").
		Find(&records).Error
	return records, err
}

func (s *GormStore) CountByStatus(ctx context.Context, eventID uuid.UUID, status Status) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Attendance{}).
		Where("event_id = ? AND status = ?", eventID, status).
		Count(&count).Error
	return int(count), err
}

func (s *GormStore) EventIDsWithStatus(ctx context.Context, status Status) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&Attendance{}).
		Where("status = ?", status).
		Distinct().
		Pluck("event_id", &ids).Error
	return ids, err
}

type gormTx struct {
	db    *gorm.DB
	event *events.Event
}

func (t *gormTx) Event() *events.Event {
	return t.event
}

func (t *gormTx) CountByStatus(ctx context.Context, status Status) (int, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&Attendance{}).
		Where("event_id = ? AND status = ?", t.event.ID, status).
		Count(&count).Error
	return int(count), err
}

func (t *gormTx) ListByStatus(ctx context.Context, status Status) ([]Attendance, error) {
	var records []Attendance
	err := t.db.WithContext(ctx).
		Where("event_id = ? AND status = ?", t.event.ID, status).
		Order("registered_at ASC, id ASC").
		Find(&records).Error
	return records, err
}

func (t *gormTx) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*Attendance, error) {
	var records []Attendance
	err := t.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ? AND status <> ?", t.event.ID, userID, StatusRemoved).
		Limit(1).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (t *gormTx) Get(ctx context.Context, id uuid.UUID) (*Attendance, error) {
	var a Attendance
	err := t.db.WithContext(ctx).
		Where("id = ? AND event_id = ?", id, t.event.ID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *gormTx) Create(ctx context.Context, a *Attendance) error {
	if a.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		a.ID = id
	}
	a.EventID = t.event.ID
	return t.db.WithContext(ctx).Create(a).Error
}

func (t *gormTx) Update(ctx context.Context, a *Attendance) error {
	result := t.db.WithContext(ctx).Model(a).
		Select(updatableColumns).
		Updates(a)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// translateError maps PostgreSQL failures onto store sentinels. Errors raised
// by the caller's function pass through untouched.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable:
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrLockTimeout, err)
	}
	return err
}
