package redis

import (
	"context"
	"fmt"
	"strconv"

	rd "github.com/redis/go-redis/v9"
)

// AdmitResult 是秒杀准入的业务结果，属于正常返回值而非错误。
type AdmitResult int

const (
	AdmitOK AdmitResult = iota
	AdmitOutOfStock
	AdmitDuplicate
)

func (r AdmitResult) String() string {
	switch r {
	case AdmitOK:
		return "ok"
	case AdmitOutOfStock:
		return "out_of_stock"
	case AdmitDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// luaAdmit：秒杀准入的原子三步（判重 → 验库存 → 扣减并投递）。
// 任何「检查」与「扣减」之间的窗口都会在并发下导致超卖或重复下单，
// 因此全部逻辑必须在 Redis 内一次执行。
// KEYS[1]=库存key，KEYS[2]=已下单用户集合key，KEYS[3]=订单事件流
// ARGV[1]=userId，ARGV[2]=voucherId，ARGV[3]=orderId
// 返回：0 成功，1 库存不足，2 重复下单
const luaAdmit = `
local stockKey = KEYS[1]
local orderKey = KEYS[2]
local streamKey = KEYS[3]
local userId = ARGV[1]
local voucherId = ARGV[2]
local orderId = ARGV[3]

if redis.call('SISMEMBER', orderKey, userId) == 1 then
  return 2
end

if tonumber(redis.call('GET', stockKey) or '0') <= 0 then
  return 1
end

redis.call('DECRBY', stockKey, 1)
redis.call('SADD', orderKey, userId)
redis.call('XADD', streamKey, '*', 'order_id', orderId, 'user_id', userId, 'voucher_id', voucherId)
return 0
`

// Admit 执行一次秒杀准入。orderId 需预先生成，
// 成功时订单事件已随脚本原子写入 OrderStream，等待异步落库。
func Admit(ctx context.Context, rdb *rd.Client, voucherID, userID, orderID int64) (AdmitResult, error) {
	keys := []string{StockKey(voucherID), OrderUsersKey(voucherID), OrderStream}
	res, err := rdb.Eval(ctx, luaAdmit, keys,
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(voucherID, 10),
		strconv.FormatInt(orderID, 10),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("admit eval: %w", err)
	}

	switch res {
	case 0:
		return AdmitOK, nil
	case 1:
		return AdmitOutOfStock, nil
	case 2:
		return AdmitDuplicate, nil
	default:
		return 0, fmt.Errorf("admit: unexpected script result %d", res)
	}
}

// PreloadStock 将库存预热到 Redis，秒杀期间以该计数器为准入依据。
func PreloadStock(ctx context.Context, rdb *rd.Client, voucherID int64, stock int64) error {
	return rdb.Set(ctx, StockKey(voucherID), stock, 0).Err()
}
