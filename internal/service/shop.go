package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"voucher_seckill/internal/cache"
	"voucher_seckill/internal/model"
	rediskey "voucher_seckill/pkg/redis"
)

const (
	shopCacheTTL     = 30 * time.Minute
	hotShopCacheTTL  = 30 * time.Second
	shopTypeCacheTTL = 24 * time.Hour
)

// ShopService 店铺读写。读路径全部经过通用缓存层：
// 普通详情走旁路穿透保护，热点详情走逻辑过期，分类列表整表缓存。
type ShopService struct {
	db    *gorm.DB
	cache *cache.Client
}

func NewShopService(db *gorm.DB, c *cache.Client) *ShopService {
	return &ShopService{db: db, cache: c}
}

func (s *ShopService) loadShop(ctx context.Context, id int64) (model.Shop, bool, error) {
	var shop model.Shop
	err := s.db.WithContext(ctx).First(&shop, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Shop{}, false, nil
		}
		return model.Shop{}, false, err
	}
	return shop, true, nil
}

// GetShopByID 普通店铺详情，旁路缓存 + 空值占位防穿透。
func (s *ShopService) GetShopByID(ctx context.Context, id int64) (model.Shop, bool, error) {
	return cache.QueryWithPassThrough(ctx, s.cache, rediskey.CacheShopPrefix, id, shopCacheTTL, s.loadShop)
}

// GetHotShopByID 热点店铺详情，逻辑过期 + 异步重建防击穿。
// 需要先 WarmupShop 预热，冷 key 会直接回源。
func (s *ShopService) GetHotShopByID(ctx context.Context, id int64) (model.Shop, bool, error) {
	return cache.QueryWithLogicalExpire(ctx, s.cache, rediskey.CacheHotShopPrefix, id, hotShopCacheTTL, s.loadShop)
}

// WarmupShop 将店铺以逻辑过期形式预写入缓存，供热点读路径使用。
func (s *ShopService) WarmupShop(ctx context.Context, id int64, ttl time.Duration) error {
	shop, found, err := s.loadShop(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return gorm.ErrRecordNotFound
	}
	return s.cache.SetWithLogicalExpire(ctx, rediskey.CacheHotShopPrefix+shopIDKey(id), shop, ttl)
}

// UpdateShop 先更新数据库再淘汰缓存（cache-aside 写路径）。
func (s *ShopService) UpdateShop(ctx context.Context, shop *model.Shop) error {
	if err := s.db.WithContext(ctx).Save(shop).Error; err != nil {
		return err
	}
	return s.cache.Delete(ctx, rediskey.CacheShopPrefix+shopIDKey(shop.ID))
}

// ListShopTypes 分类列表，整表缓存为单 key。
func (s *ShopService) ListShopTypes(ctx context.Context) ([]model.ShopType, bool, error) {
	return cache.QueryWithPassThrough(ctx, s.cache, rediskey.CacheShopTypePrefix, "all", shopTypeCacheTTL,
		func(ctx context.Context, _ string) ([]model.ShopType, bool, error) {
			var types []model.ShopType
			if err := s.db.WithContext(ctx).Order("sort asc").Find(&types).Error; err != nil {
				return nil, false, err
			}
			if len(types) == 0 {
				return nil, false, nil
			}
			return types, true, nil
		})
}

func shopIDKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
