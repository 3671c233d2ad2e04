package redis

import "fmt"

// StockKey 统一约定优惠券库存键名。
func StockKey(voucherID int64) string {
	return fmt.Sprintf("seckill:stock:%d", voucherID)
}

// OrderUsersKey 记录某优惠券下已下单的用户集合（一人一单判重）。
func OrderUsersKey(voucherID int64) string {
	return fmt.Sprintf("seckill:order:%d", voucherID)
}

// IDCounterKey 全局 ID 生成器的日序列计数器键名。
func IDCounterKey(prefix, date string) string {
	return fmt.Sprintf("icr:%s:%s", prefix, date)
}

// LockKey 分布式锁键名。
func LockKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

// 缓存键前缀，与通用缓存层的「前缀 + ID」约定配套。
// 旁路缓存与逻辑过期缓存的值格式不同，必须使用各自的前缀。
const (
	CacheShopPrefix     = "cache:shop:"
	CacheHotShopPrefix  = "cache:shop:hot:"
	CacheShopTypePrefix = "cache:shop-type:"
)

// OrderStream 承接秒杀脚本投递的订单事件流。
const OrderStream = "stream.orders"
