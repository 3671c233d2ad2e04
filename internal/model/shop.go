package model

import "time"

// Shop 店铺详情，读多写少，读路径全部经过缓存层。
type Shop struct {
	ID        int64     `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name    string `gorm:"size:128;not null" json:"name"`
	TypeID  int64  `gorm:"not null;index" json:"type_id"`
	Address string `gorm:"size:255" json:"address"`
	AvgPrice int64 `gorm:"not null;default:0" json:"avg_price"` // 单位：分
	Score    int   `gorm:"not null;default:0" json:"score"`     // 评分 x10
}

func (Shop) TableName() string { return "shops" }
