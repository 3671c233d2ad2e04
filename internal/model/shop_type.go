package model

import "time"

// ShopType 店铺分类，数量少、几乎不变，整表缓存为单个 key。
type ShopType struct {
	ID        int64     `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `gorm:"size:64;not null" json:"name"`
	Icon string `gorm:"size:255" json:"icon"`
	Sort int    `gorm:"not null;default:0" json:"sort"`
}

func (ShopType) TableName() string { return "shop_types" }
