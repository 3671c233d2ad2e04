package model

import "time"

// Voucher 秒杀优惠券：库存 + 秒杀时间窗。
// Stock 表示持久层库存，只允许消费者的条件更新扣减；
// 秒杀实时准入走 Redis 计数器，由预热接口保持一致。
type Voucher struct {
	ID        int64     `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title     string    `gorm:"size:128;not null" json:"title"`
	Stock     int64     `gorm:"not null;default:0" json:"stock"`
	PayValue  int64     `gorm:"not null" json:"pay_value"` // 单位：分
	BeginTime time.Time `gorm:"not null" json:"begin_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`
}

func (Voucher) TableName() string { return "vouchers" }
