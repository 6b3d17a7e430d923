package lockmgr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/db/engines/memdb"
	"github.com/roberthgnz/lsdb/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() ILockManager {
	return NewLockManager(lstore.NewLocalStore(func() db.KVDB { return memdb.NewMemDB(nil) }))
}

func TestAcquireRelease(t *testing.T) {
	lm := newManager()

	ok, owner1, err := lm.AcquireLock("res", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, owner1)

	ok, owner2, err := lm.AcquireLock("res", 0)
	require.NoError(t, err)
	require.False(t, ok, "lock must not be acquired twice")
	require.Nil(t, owner2)

	released, err := lm.ReleaseLock("res", []byte("someone-else"))
	require.NoError(t, err)
	require.False(t, released, "only the owner may release")

	released, err = lm.ReleaseLock("res", owner1)
	require.NoError(t, err)
	require.True(t, released)

	released, err = lm.ReleaseLock("res", owner1)
	require.NoError(t, err)
	require.True(t, released, "releasing a missing lock reports true")

	ok, _, err = lm.AcquireLock("res", 0)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAcquireWaits(t *testing.T) {
	lm := newManager()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			owner, err := Acquire(context.Background(), lm, "critical", time.Minute, time.Millisecond)
			if !assert.NoError(t, err) {
				return
			}

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)

			ok, err := lm.ReleaseLock("critical", owner)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxSeen.Load(), "at most one holder at a time")
}

func TestAcquireHonoursContext(t *testing.T) {
	lm := newManager()
	_, _, err := lm.AcquireLock("busy", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = Acquire(ctx, lm, "busy", time.Minute, time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLeaseEndFreesAbandonedLock(t *testing.T) {
	lm := newManager()

	// the holder never releases
	ok, abandoned, err := lm.AcquireLock("db", 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = lm.AcquireLock("db", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "the lease is still running")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	owner, err := Acquire(ctx, lm, "db", time.Minute, 5*time.Millisecond)
	require.NoError(t, err)
	require.NotEqual(t, abandoned, owner)

	released, err := lm.ReleaseLock("db", abandoned)
	require.NoError(t, err)
	assert.False(t, released, "the previous holder lost the lock with its lease")

	released, err = lm.ReleaseLock("db", owner)
	require.NoError(t, err)
	assert.True(t, released)
}
