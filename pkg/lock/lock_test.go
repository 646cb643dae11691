package lock

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"attendly/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal(time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Acquire(context.Background(), "event-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.Len())
}

func TestLocalTimesOut(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)

	unlock, err := l.Acquire(context.Background(), "event-1")
	require.NoError(t, err)
	defer unlock()

	_, err = l.Acquire(context.Background(), "event-1")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalKeysAreIndependent(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)

	unlockA, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalUnlockIsIdempotent(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)

	unlock, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	unlock()
	unlock()

	again, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	again()
	assert.Equal(t, 0, l.Len())
}

func newRedisLock(t *testing.T, wait time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	l, mr, _ := newLoggedRedisLock(t, wait)
	return l, mr
}

func newLoggedRedisLock(t *testing.T, wait time.Duration) (*Redis, *miniredis.Miniredis, *bytes.Buffer) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	var logs bytes.Buffer
	cfg := DefaultRedisConfig()
	cfg.Wait = wait
	cfg.RetryInterval = 5 * time.Millisecond
	cfg.Log = logger.NewWithWriter("warn", &logs)
	return NewRedis(client, cfg), mr, &logs
}

func TestRedisAcquireAndRelease(t *testing.T) {
	l, mr := newRedisLock(t, 50*time.Millisecond)

	unlock, err := l.Acquire(context.Background(), "event-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("attendly:lock:event-1"))

	_, err = l.Acquire(context.Background(), "event-1")
	assert.ErrorIs(t, err, ErrTimeout)

	unlock()
	assert.False(t, mr.Exists("attendly:lock:event-1"))

	unlock, err = l.Acquire(context.Background(), "event-1")
	require.NoError(t, err)
	unlock()
}

func TestRedisReleaseKeepsForeignToken(t *testing.T) {
	l, mr, logs := newLoggedRedisLock(t, 50*time.Millisecond)

	unlock, err := l.Acquire(context.Background(), "event-1")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	require.NoError(t, mr.Set("attendly:lock:event-1", "someone-else"))
	unlock()

	got, err := mr.Get("attendly:lock:event-1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
	assert.Contains(t, logs.String(), "Lock expired before release")
}

func TestRedisReleaseLogsFailure(t *testing.T) {
	l, mr, logs := newLoggedRedisLock(t, 50*time.Millisecond)

	unlock, err := l.Acquire(context.Background(), "event-1")
	require.NoError(t, err)
	assert.Empty(t, logs.String())

	mr.Close()
	unlock()
	assert.Contains(t, logs.String(), "Failed to release lock")
	assert.Contains(t, logs.String(), "attendly:lock:event-1")
}

func TestRedisWaitsForRelease(t *testing.T) {
	l, _ := newRedisLock(t, time.Second)

	unlock, err := l.Acquire(context.Background(), "event-1")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		unlock()
	}()

	second, err := l.Acquire(context.Background(), "event-1")
	require.NoError(t, err)
	second()
}
