package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	rd "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	rediskey "voucher_seckill/pkg/redis"
)

// redisData 是逻辑过期策略的缓存载体：过期时间内嵌在 value 里，
// key 本身不设物理 TTL，过期后旧值仍可读。
type redisData struct {
	ExpireTime time.Time       `json:"expire_time"`
	Data       json.RawMessage `json:"data"`
}

// Client 封装通用缓存读写：
// - 旁路穿透保护（空值短 TTL 占位）
// - 逻辑过期 + 分布式锁串行重建（返回旧值，重建异步）
// 重建任务跑在 Client 自有的有界 worker 池里，
// 随 NewClient 创建、Close 排空，不依赖隐式全局线程池。
type Client struct {
	rdb *rd.Client
	log zerolog.Logger

	nullTTL time.Duration // 空值占位 TTL
	lockTTL time.Duration // 重建锁 TTL（持有者崩溃的兜底）

	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

// NewClient 创建缓存客户端并启动 workers 个重建协程。
func NewClient(rdb *rd.Client, workers int, log zerolog.Logger) *Client {
	if workers <= 0 {
		workers = 4
	}
	c := &Client{
		rdb:     rdb,
		log:     log,
		nullTTL: 2 * time.Minute,
		lockTTL: 10 * time.Second,
		tasks:   make(chan func(), workers*4),
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for task := range c.tasks {
				task()
			}
		}()
	}
	return c
}

// Close 停止接收重建任务并等待在途任务完成。进程退出前调用一次。
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.tasks)
		c.wg.Wait()
	})
}

// Set 写入带物理 TTL 的缓存值。
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// SetWithLogicalExpire 写入逻辑过期缓存值，key 不设物理 TTL。
func (c *Client) SetWithLogicalExpire(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	b, err := json.Marshal(redisData{
		ExpireTime: time.Now().Add(ttl),
		Data:       data,
	})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, 0).Err()
}

// Delete 主动淘汰缓存，供写路径（更新数据库后）调用。
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// submit 将重建任务投入有界池，池满则放弃（旧值仍在，下次过期读会重试）。
func (c *Client) submit(task func()) bool {
	select {
	case c.tasks <- task:
		return true
	default:
		return false
	}
}

// QueryWithPassThrough 旁路读缓存，带穿透保护。
// 未命中时调用 loader；loader 查无数据则写入短 TTL 的空占位，
// 占位期内的重复查询不再打到数据源。
// 返回 found=false 表示数据源确实不存在该数据。
func QueryWithPassThrough[T any, ID any](
	ctx context.Context, c *Client, keyPrefix string, id ID, ttl time.Duration,
	loader func(ctx context.Context, id ID) (T, bool, error),
) (T, bool, error) {
	var zero T
	key := fmt.Sprintf("%s%v", keyPrefix, id)

	s, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		// 命中空占位：缓存过「不存在」，与「缓存缺失」区分开。
		if s == "" {
			return zero, false, nil
		}
		var v T
		if uerr := json.Unmarshal([]byte(s), &v); uerr == nil {
			return v, true, nil
		}
		// 脏缓存按未命中处理，走 loader 重建。
		c.log.Warn().Str("key", key).Msg("cache entry undecodable, reloading")
	} else if !errors.Is(err, rd.Nil) {
		// 缓存读失败只降级延迟，不影响正确性。
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, falling back to source")
	}

	v, found, err := loader(ctx, id)
	if err != nil {
		return zero, false, err
	}
	if !found {
		if serr := c.rdb.Set(ctx, key, "", c.nullTTL).Err(); serr != nil {
			c.log.Warn().Err(serr).Str("key", key).Msg("cache null sentinel write failed")
		}
		return zero, false, nil
	}
	if serr := c.Set(ctx, key, v, ttl); serr != nil {
		c.log.Warn().Err(serr).Str("key", key).Msg("cache write failed")
	}
	return v, true, nil
}

// QueryWithLogicalExpire 逻辑过期读缓存，防击穿。
// 命中且未过期直接返回；已过期则抢重建锁，抢到的把重建交给 worker 池
// （重建完成后在 defer 中释放锁），当前调用方与没抢到锁的都立刻拿旧值走人。
// 冷 key（缓存完全不存在）同步回源，不能对存在的数据返回空。
func QueryWithLogicalExpire[T any, ID any](
	ctx context.Context, c *Client, keyPrefix string, id ID, ttl time.Duration,
	loader func(ctx context.Context, id ID) (T, bool, error),
) (T, bool, error) {
	key := fmt.Sprintf("%s%v", keyPrefix, id)

	s, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, rd.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, falling back to source")
		}
		// 冷未命中：没有旧值可退让，同步回源。
		return loader(ctx, id)
	}

	var rdData redisData
	if uerr := json.Unmarshal([]byte(s), &rdData); uerr != nil {
		c.log.Warn().Err(uerr).Str("key", key).Msg("cache entry undecodable, falling back to source")
		return loader(ctx, id)
	}
	var v T
	if uerr := json.Unmarshal(rdData.Data, &v); uerr != nil {
		c.log.Warn().Err(uerr).Str("key", key).Msg("cache payload undecodable, falling back to source")
		return loader(ctx, id)
	}

	if time.Now().Before(rdData.ExpireTime) {
		return v, true, nil
	}

	// 已过期：同一 key 的重建由分布式锁限定至多一个在途。
	lock := rediskey.NewLock(c.rdb, key, c.lockTTL)
	acquired, lerr := lock.TryAcquire(ctx)
	if lerr != nil {
		c.log.Warn().Err(lerr).Str("key", key).Msg("rebuild lock acquire failed")
		return v, true, nil
	}
	if acquired {
		submitted := c.submit(func() {
			rctx, cancel := context.WithTimeout(context.Background(), c.lockTTL)
			defer cancel()
			defer func() {
				if rerr := lock.Release(rctx); rerr != nil {
					c.log.Warn().Err(rerr).Str("key", key).Msg("rebuild lock release failed")
				}
			}()
			rebuild(rctx, c, key, id, ttl, loader)
		})
		if !submitted {
			// 池满：放弃本轮重建并立刻还锁，避免压住后续过期读。
			if rerr := lock.Release(ctx); rerr != nil {
				c.log.Warn().Err(rerr).Str("key", key).Msg("rebuild lock release failed")
			}
		}
	}

	// 旧值直接返回，重建不阻塞读请求。
	return v, true, nil
}

// rebuild 回源并覆盖缓存。失败只记录日志，旧值保留等待下次触发。
func rebuild[T any, ID any](
	ctx context.Context, c *Client, key string, id ID, ttl time.Duration,
	loader func(ctx context.Context, id ID) (T, bool, error),
) {
	v, found, err := loader(ctx, id)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("cache rebuild failed")
		return
	}
	if !found {
		// 数据源已删除：写空占位防穿透。
		if serr := c.rdb.Set(ctx, key, "", c.nullTTL).Err(); serr != nil {
			c.log.Error().Err(serr).Str("key", key).Msg("cache rebuild null write failed")
		}
		return
	}
	if serr := c.SetWithLogicalExpire(ctx, key, v, ttl); serr != nil {
		c.log.Error().Err(serr).Str("key", key).Msg("cache rebuild write failed")
	}
}
