package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

const (
	// beginTimestamp 是 ID 时间戳的起始纪元（2025-01-01 00:00:00 UTC）。
	beginTimestamp int64 = 1735689600
	// countBits 为序列号占用的低位位数。
	countBits = 32
)

// IDWorker 基于 Redis 自增生成全局唯一、时间趋势递增的 64 位 ID。
// 高 31 位为秒级时间戳，低 32 位为当日序列号；
// 计数器存放在 Redis，进程重启不影响唯一性。
type IDWorker struct {
	rdb *rd.Client
}

func NewIDWorker(rdb *rd.Client) *IDWorker {
	return &IDWorker{rdb: rdb}
}

// NextID 生成下一个 ID。prefix 用于区分业务（如 "order"），
// 每个 (prefix, 日期) 桶独立计数，首次自增自然返回 1，无需初始化。
func (w *IDWorker) NextID(ctx context.Context, prefix string) (int64, error) {
	now := time.Now()
	timestamp := now.Unix() - beginTimestamp

	date := now.Format("2006-01-02")
	count, err := w.rdb.Incr(ctx, IDCounterKey(prefix, date)).Result()
	if err != nil {
		return 0, err
	}

	return timestamp<<countBits | count, nil
}
