package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"attendly/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*MemoryStore, *events.Event) {
	t.Helper()
	repo := events.NewMemoryRepository()
	event := &events.Event{Name: "Go meetup", StartsAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(context.Background(), event))
	return NewMemoryStore(repo, 50*time.Millisecond), event
}

func confirmed(userID uuid.UUID, at time.Time) *Attendance {
	return &Attendance{UserID: userID, Status: StatusConfirmed, RegisteredAt: at, ConfirmedAt: &at}
}

func TestMemoryStoreCommitsOnSuccess(t *testing.T) {
	store, event := newStore(t)
	ctx := context.Background()

	var created Attendance
	err := store.InEventTx(ctx, event.ID, func(tx Tx) error {
		a := confirmed(uuid.New(), time.Now())
		if err := tx.Create(ctx, a); err != nil {
			return err
		}
		created = *a
		return nil
	})
	require.NoError(t, err)

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.EventID)
	assert.Equal(t, StatusConfirmed, got.Status)

	n, err := store.CountByStatus(ctx, event.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStoreDiscardsOnError(t *testing.T) {
	store, event := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.InEventTx(ctx, event.ID, func(tx Tx) error {
		require.NoError(t, tx.Create(ctx, confirmed(uuid.New(), time.Now())))
		n, err := tx.CountByStatus(ctx, StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "writes are visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := store.CountByStatus(ctx, event.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStoreUnknownEvent(t *testing.T) {
	store, _ := newStore(t)
	err := store.InEventTx(context.Background(), uuid.New(), func(Tx) error { return nil })
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestMemoryStoreLockTimeout(t *testing.T) {
	store, event := newStore(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.InEventTx(ctx, event.ID, func(Tx) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := store.InEventTx(ctx, event.ID, func(Tx) error { return nil })
	assert.ErrorIs(t, err, ErrLockTimeout)

	close(release)
	require.NoError(t, <-done)
}

func TestMemoryStoreRejectsSecondActiveRecordForUser(t *testing.T) {
	store, event := newStore(t)
	ctx := context.Background()
	userID := uuid.New()

	err := store.InEventTx(ctx, event.ID, func(tx Tx) error {
		require.NoError(t, tx.Create(ctx, confirmed(userID, time.Now())))
		return tx.Create(ctx, confirmed(userID, time.Now()))
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryStoreListsInArrivalOrder(t *testing.T) {
	store, event := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	err := store.InEventTx(ctx, event.ID, func(tx Tx) error {
		// Inserted out of arrival order, with a timestamp collision.
		for _, offset := range []time.Duration{2, 0, 1, 1} {
			pos := len(ids) + 1
			a := &Attendance{
				UserID:           uuid.New(),
				Status:           StatusWaitlisted,
				WaitlistPosition: &pos,
				RegisteredAt:     base.Add(offset * time.Second),
			}
			if err := tx.Create(ctx, a); err != nil {
				return err
			}
			ids = append(ids, a.ID)
		}
		return nil
	})
	require.NoError(t, err)

	list, err := store.ListByStatus(ctx, event.ID, StatusWaitlisted)
	require.NoError(t, err)
	require.Len(t, list, 4)

	got := []uuid.UUID{list[0].ID, list[1].ID, list[2].ID, list[3].ID}
	assert.Equal(t, []uuid.UUID{ids[1], ids[2], ids[3], ids[0]}, got)
}

func TestMemoryStoreUpdateOnlyTouchesAdmissionColumns(t *testing.T) {
	store, event := newStore(t)
	ctx := context.Background()
	userID := uuid.New()

	var id uuid.UUID
	require.NoError(t, store.InEventTx(ctx, event.ID, func(tx Tx) error {
		a := confirmed(userID, time.Now())
		a.Email = "a@example.com"
		err := tx.Create(ctx, a)
		id = a.ID
		return err
	}))

	require.NoError(t, store.InEventTx(ctx, event.ID, func(tx Tx) error {
		a, err := tx.Get(ctx, id)
		require.NoError(t, err)
		a.Status = StatusRemoved
		a.Email = "changed@example.com"
		return tx.Update(ctx, a)
	}))

	got, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRemoved, got.Status)
	assert.Equal(t, "a@example.com", got.Email)

	ids, err := store.EventIDsWithStatus(ctx, StatusRemoved)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{event.ID}, ids)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusWaitlisted.CanTransitionTo(StatusConfirmed))
	assert.True(t, StatusWaitlisted.CanTransitionTo(StatusRemoved))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusRemoved))
	assert.False(t, StatusConfirmed.CanTransitionTo(StatusWaitlisted))
	assert.False(t, StatusRemoved.CanTransitionTo(StatusConfirmed))
	assert.False(t, Status("pending").IsValid())
}
