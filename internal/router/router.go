package router

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"voucher_seckill/internal/config"
	"voucher_seckill/internal/middleware"
	"voucher_seckill/internal/model"
	"voucher_seckill/internal/service"
	rediskey "voucher_seckill/pkg/redis"
)

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, rdb *rd.Client, vouchers *service.VoucherOrderService, shops *service.ShopService, cfg config.AppConfig) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	// Vouchers
	r.POST("/api/vouchers", createVoucher(vouchers))
	r.POST("/api/vouchers/preload/:voucher_id", preloadStock(vouchers, cfg.AdminToken))
	r.GET("/api/vouchers/stock/:voucher_id", getStock(rdb))
	r.POST("/api/seckill", middleware.RedisRateLimit(rdb, cfg.SeckillRateLimit, cfg.SeckillRateWindow), seckill(vouchers))
	r.GET("/api/orders/:order_id", getOrder(vouchers))

	// Shops（读路径全部走缓存层）
	r.GET("/api/shops/:id", getShop(shops))
	r.GET("/api/shops/hot/:id", getHotShop(shops))
	r.PUT("/api/shops/:id", updateShop(shops))
	r.POST("/api/shops/warmup/:id", warmupShop(shops, cfg.AdminToken))
	r.GET("/api/shop-types", listShopTypes(shops))
}

// createVoucher 创建秒杀券（含时间窗校验）。
func createVoucher(vouchers *service.VoucherOrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Title     string `json:"title" binding:"required"`
			Stock     int64  `json:"stock" binding:"required,min=1"`
			PayValue  int64  `json:"pay_value" binding:"required,min=1"`
			BeginTime string `json:"begin_time" binding:"required"`
			EndTime   string `json:"end_time" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		begin, err := time.Parse(time.RFC3339, req.BeginTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "begin_time 格式错误，请用 RFC3339"})
			return
		}
		end, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "end_time 格式错误，请用 RFC3339"})
			return
		}
		if !end.After(begin) {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "end_time 必须晚于 begin_time"})
			return
		}
		v := &model.Voucher{
			Title:     req.Title,
			Stock:     req.Stock,
			PayValue:  req.PayValue,
			BeginTime: begin,
			EndTime:   end,
		}
		if err := vouchers.CreateVoucher(c.Request.Context(), v); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": v})
	}
}

// preloadStock 将 DB 库存预热到 Redis，供高并发准入。
// 该接口要求简单管理员 token，避免被任意调用重置库存。
func preloadStock(vouchers *service.VoucherOrderService, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "admin token 无效"})
			return
		}
		id, err := strconv.ParseInt(c.Param("voucher_id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "券ID无效"})
			return
		}
		if err := vouchers.PreloadStock(c.Request.Context(), id); err != nil {
			if errors.Is(err, service.ErrVoucherNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "券不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "预热成功"})
	}
}

// getStock 查询 Redis 中的实时库存。
func getStock(rdb *rd.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("voucher_id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "券ID无效"})
			return
		}
		val, err := rdb.Get(c.Request.Context(), rediskey.StockKey(id)).Int64()
		if err != nil {
			if errors.Is(err, rd.Nil) {
				c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"stock": int64(0)}})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"stock": val}})
	}
}

// seckill 秒杀下单入口。
// 时间窗校验 + 全局 ID 生成在前，Redis 内一步原子完成
// 判重、验库存、扣减与事件入流；落库由消费者异步完成，
// 因此这里直接返回订单号与 pending 状态。
func seckill(vouchers *service.VoucherOrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			VoucherID int64 `json:"voucher_id" binding:"required,min=1"`
			UserID    int64 `json:"user_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		orderID, result, err := vouchers.Seckill(c.Request.Context(), req.VoucherID, req.UserID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrVoucherNotFound):
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "券不存在"})
			case errors.Is(err, service.ErrSeckillNotStarted):
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "秒杀还未开始"})
			case errors.Is(err, service.ErrSeckillEnded):
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "秒杀已经结束"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			}
			return
		}

		switch result {
		case rediskey.AdmitOutOfStock:
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "库存不足"})
		case rediskey.AdmitDuplicate:
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "不能重复下单"})
		default:
			c.JSON(http.StatusOK, gin.H{
				"code": 0,
				"data": gin.H{
					"order_id": orderID,
					"status":   "pending",
				},
			})
		}
	}
}

// getOrder 查询订单异步落库状态。
func getOrder(vouchers *service.VoucherOrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "订单ID无效"})
			return
		}
		order, found, err := vouchers.GetOrder(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if !found {
			// 准入成功但尚未落库时也会走到这里，前端按 pending 轮询。
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"status": "pending"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"status": "created", "order": order}})
	}
}

// getShop 店铺详情（旁路缓存 + 穿透保护）。
func getShop(shops *service.ShopService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "店铺ID无效"})
			return
		}
		shop, found, err := shops.GetShopByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "店铺不存在"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": shop})
	}
}

// getHotShop 热点店铺详情（逻辑过期 + 异步重建）。
func getHotShop(shops *service.ShopService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "店铺ID无效"})
			return
		}
		shop, found, err := shops.GetHotShopByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "店铺不存在"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": shop})
	}
}

// updateShop 更新店铺并淘汰缓存。
func updateShop(shops *service.ShopService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "店铺ID无效"})
			return
		}
		var shop model.Shop
		if err := c.ShouldBindJSON(&shop); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		shop.ID = id
		if err := shops.UpdateShop(c.Request.Context(), &shop); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": shop})
	}
}

// warmupShop 热点店铺缓存预热（逻辑过期写入）。
func warmupShop(shops *service.ShopService, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "admin token 无效"})
			return
		}
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "店铺ID无效"})
			return
		}
		if err := shops.WarmupShop(c.Request.Context(), id, 30*time.Second); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "店铺不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "预热成功"})
	}
}

// listShopTypes 店铺分类列表（整表缓存）。
func listShopTypes(shops *service.ShopService) gin.HandlerFunc {
	return func(c *gin.Context) {
		types, found, err := shops.ListShopTypes(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": []model.ShopType{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": types})
	}
}
