package attendance_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"attendly/internal/attendance"
	"attendly/internal/events"
	"attendly/internal/shared/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openPostgres connects to ATTENDLY_TEST_DATABASE_DSN and skips otherwise.
func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("ATTENDLY_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("ATTENDLY_TEST_DATABASE_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedEvent(t *testing.T, db *gorm.DB) *events.Event {
	t.Helper()
	capacity := 1
	event := &events.Event{
		ID:        uuid.New(),
		Name:      "integration",
		StartsAt:  time.Now().Add(24 * time.Hour),
		Capacity:  &capacity,
		CreatedBy: uuid.New(),
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func TestGormStoreCommitsAndRollsBack(t *testing.T) {
	db := openPostgres(t)
	store := attendance.NewGormStore(db, time.Second)
	event := seedEvent(t, db)
	ctx := context.Background()

	now := time.Now().UTC()
	kept := &attendance.Attendance{UserID: uuid.New(), Status: attendance.StatusConfirmed, RegisteredAt: now, ConfirmedAt: &now}
	require.NoError(t, store.InEventTx(ctx, event.ID, func(tx attendance.Tx) error {
		return tx.Create(ctx, kept)
	}))

	failed := errors.New("abort")
	err := store.InEventTx(ctx, event.ID, func(tx attendance.Tx) error {
		if err := tx.Create(ctx, &attendance.Attendance{UserID: uuid.New(), Status: attendance.StatusConfirmed, RegisteredAt: now, ConfirmedAt: &now}); err != nil {
			return err
		}
		return failed
	})
	assert.ErrorIs(t, err, failed)

	count, err := store.CountByStatus(ctx, event.ID, attendance.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetByID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.EventID)
}

func TestGormStoreRejectsSecondActiveRecord(t *testing.T) {
	db := openPostgres(t)
	store := attendance.NewGormStore(db, time.Second)
	event := seedEvent(t, db)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, store.InEventTx(ctx, event.ID, func(tx attendance.Tx) error {
		return tx.Create(ctx, &attendance.Attendance{UserID: userID, Status: attendance.StatusConfirmed, RegisteredAt: now, ConfirmedAt: &now})
	}))
	err := store.InEventTx(ctx, event.ID, func(tx attendance.Tx) error {
		return tx.Create(ctx, &attendance.Attendance{UserID: userID, Status: attendance.StatusConfirmed, RegisteredAt: now, ConfirmedAt: &now})
	})
	assert.ErrorIs(t, err, attendance.ErrDuplicate)
}

func TestGormStoreTimesOutOnHeldEventLock(t *testing.T) {
	db := openPostgres(t)
	store := attendance.NewGormStore(db, 100*time.Millisecond)
	event := seedEvent(t, db)
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.InEventTx(ctx, event.ID, func(attendance.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := store.InEventTx(ctx, event.ID, func(attendance.Tx) error { return nil })
	close(release)
	assert.ErrorIs(t, err, attendance.ErrLockTimeout)
	require.NoError(t, <-done)

	err = store.InEventTx(ctx, uuid.New(), func(attendance.Tx) error { return nil })
	assert.ErrorIs(t, err, attendance.ErrEventNotFound)
}
