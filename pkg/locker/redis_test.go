package locker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type redisEntry struct {
	value     string
	expiresAt time.Time
}

// fakeRedis covers the commands RedisLocker sends: SET NX PX and the
// compare-and-delete release script. Expiry follows a manual clock.
type fakeRedis struct {
	redis.Cmdable

	mu      sync.Mutex
	now     time.Time
	entries map[string]redisEntry
	evals   int
	setErr  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		now:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		entries: map[string]redisEntry{},
	}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if e, ok := f.entries[key]; ok && f.now.Before(e.expiresAt) {
		return redis.NewBoolResult(false, nil)
	}
	f.entries[key] = redisEntry{value: value.(string), expiresAt: f.now.Add(expiration)}
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	e, ok := f.entries[keys[0]]
	if ok && f.now.Before(e.expiresAt) && e.value == args[0].(string) {
		delete(f.entries, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeRedis) held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[redisKeyPrefix+key]
	return ok && f.now.Before(e.expiresAt)
}

func (f *fakeRedis) Evals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evals
}

func TestRedisLocker_HeldKeyTimesOutUntilReleased(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLocker(rdb, 45*time.Second, 30*time.Millisecond)
	key := "slot:Lab 3|2026-03-01"

	release, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, rdb.held(key))

	_, err = l.Lock(context.Background(), key)
	assert.ErrorIs(t, err, ErrTimeout)

	require.NoError(t, release(context.Background()))
	assert.False(t, rdb.held(key))

	again, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, again(context.Background()))
}

func TestRedisLocker_KeysAreIndependent(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLocker(rdb, 45*time.Second, 30*time.Millisecond)

	releaseA, err := l.Lock(context.Background(), "slot:Lab 3|2026-03-01")
	require.NoError(t, err)
	releaseB, err := l.Lock(context.Background(), "slot:Lab 3|2026-03-02")
	require.NoError(t, err)

	require.NoError(t, releaseA(context.Background()))
	require.NoError(t, releaseB(context.Background()))
}

func TestRedisLocker_ConcurrentReleaseRunsOnce(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLocker(rdb, 45*time.Second, 30*time.Millisecond)

	release, err := l.Lock(context.Background(), "slot:Lab 3|2026-03-01")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, release(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rdb.Evals())
}

func TestRedisLocker_StaleReleaseKeepsNewHolder(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLocker(rdb, 45*time.Second, 30*time.Millisecond)
	key := "slot:Lab 3|2026-03-01"

	stale, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	rdb.advance(46 * time.Second)
	current, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	require.NoError(t, stale(context.Background()))
	assert.True(t, rdb.held(key), "an expired holder must not delete its successor's lock")

	require.NoError(t, current(context.Background()))
	assert.False(t, rdb.held(key))
}

func TestRedisLocker_CallerCancellation(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLocker(rdb, 45*time.Second, time.Second)
	key := "slot:Lab 3|2026-03-01"

	_, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisLocker_StoreErrorSurfaces(t *testing.T) {
	rdb := newFakeRedis()
	rdb.setErr = errors.New("connection refused")
	l := NewRedisLocker(rdb, 45*time.Second, time.Second)

	_, err := l.Lock(context.Background(), "slot:Lab 3|2026-03-01")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "failed to acquire lock")
}
