package runlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient 在内存中模拟 SETNX 和释放脚本
type fakeClient struct {
	values  map[string]string
	ttl     map[string]time.Duration
	failErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeClient) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.failErr != nil {
		return redis.NewBoolResult(false, f.failErr)
	}
	if _, exists := f.values[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttl[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeClient) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	if f.values[keys[0]] != args[0] {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(f.values, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

func TestAcquireIsExclusive(t *testing.T) {
	client := newFakeClient()
	locker := NewLocker(client, "or_scheduler:run", time.Minute)

	lock, err := locker.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, lock.Token())
	assert.Equal(t, time.Minute, client.ttl["or_scheduler:run"])

	_, err = locker.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLocked)

	released, err := lock.Release(context.Background())
	require.NoError(t, err)
	assert.True(t, released)

	_, err = locker.Acquire(context.Background())
	assert.NoError(t, err)
}

func TestReleaseDoesNotDeleteForeignLock(t *testing.T) {
	client := newFakeClient()
	locker := NewLocker(client, "or_scheduler:run", time.Minute)

	lock, err := locker.Acquire(context.Background())
	require.NoError(t, err)

	// 模拟锁过期后被其他实例获取
	client.values["or_scheduler:run"] = "other"

	released, err := lock.Release(context.Background())
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, "other", client.values["or_scheduler:run"])
}

func TestAcquirePropagatesRedisErrors(t *testing.T) {
	client := newFakeClient()
	client.failErr = errors.New("connection refused")

	_, err := NewLocker(client, "k", time.Minute).Acquire(context.Background())
	assert.ErrorIs(t, err, client.failErr)
	assert.NotErrorIs(t, err, ErrLocked)
}
