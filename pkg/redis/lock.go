package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaReleaseLock 仅当锁值与持有者令牌一致时才删除。
// 读取与删除在服务端一步完成，避免「锁过期被他人抢占后误删」的竞态。
const luaReleaseLock = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

// lockSeq 为同进程内的每次加锁分配本地序号，与 UUID 共同组成持有者令牌。
var lockSeq int64

// Lock 是一次性使用的 Redis 分布式锁：每个临界区创建一个实例。
// 身份由令牌决定而非线程/进程，同一进程的两次加锁也互相区分。
type Lock struct {
	rdb   *rd.Client
	key   string
	token string
	ttl   time.Duration
}

// NewLock 创建锁实例。name 是资源名，TTL 作为持有者崩溃后的兜底释放。
func NewLock(rdb *rd.Client, name string, ttl time.Duration) *Lock {
	return &Lock{
		rdb:   rdb,
		key:   LockKey(name),
		token: fmt.Sprintf("%s-%d", uuid.NewString(), atomic.AddInt64(&lockSeq, 1)),
		ttl:   ttl,
	}
}

// TryAcquire 尝试获取锁，单次 SET NX EX，不在内部重试。
// 返回 false 表示锁被他人持有，由调用方决定重试策略。
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	return l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

// Release 释放锁。释放一把已不属于自己的锁是安全的 no-op。
func (l *Lock) Release(ctx context.Context) error {
	return l.rdb.Eval(ctx, luaReleaseLock, []string{l.key}, l.token).Err()
}
