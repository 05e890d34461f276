package runlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("已有排班任务正在运行")

// 只有持有者才能释放锁，避免误删其他实例在锁过期后重新获取的锁
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Client 是 Locker 用到的 redis 命令，*redis.Client 满足这个接口
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Locker 保证同一时间只有一个排班任务写入结果
type Locker struct {
	client     Client
	key        string
	expiration time.Duration
}

func NewLocker(client Client, key string, expiration time.Duration) *Locker {
	return &Locker{
		client:     client,
		key:        key,
		expiration: expiration,
	}
}

type Lock struct {
	locker *Locker
	token  string
}

// Acquire 尝试获取锁，锁已被占用时返回 ErrLocked
func (l *Locker) Acquire(ctx context.Context) (*Lock, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.expiration).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}

	return &Lock{locker: l, token: token}, nil
}

// Release 释放锁，返回值表示锁是否仍由自己持有
func (lock *Lock) Release(ctx context.Context) (bool, error) {
	n, err := lock.locker.client.Eval(ctx, releaseScript, []string{lock.locker.key}, lock.token).Int64()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (lock *Lock) Token() string {
	return lock.token
}
