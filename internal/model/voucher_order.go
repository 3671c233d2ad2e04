package model

import "time"

// VoucherOrderStatus 订单状态。本服务只负责创建，不处理后续流转。
type VoucherOrderStatus int

const (
	VoucherOrderUnpaid VoucherOrderStatus = iota + 1 // 待支付
	VoucherOrderPaid                                 // 已支付
	VoucherOrderCanceled                             // 已取消
)

// VoucherOrder 秒杀订单。ID 来自全局 ID 生成器，由消费者在事务内创建。
// (user_id, voucher_id) 唯一索引兜底「一人一单」，消息重投不会产生第二行。
type VoucherOrder struct {
	ID        int64     `gorm:"primarykey;autoIncrement:false" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID    int64              `gorm:"not null;uniqueIndex:idx_user_voucher" json:"user_id"`
	VoucherID int64              `gorm:"not null;uniqueIndex:idx_user_voucher" json:"voucher_id"`
	Status    VoucherOrderStatus `gorm:"not null;default:1" json:"status"`
}

func (VoucherOrder) TableName() string { return "voucher_orders" }
