package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"voucher_seckill/internal/model"
	rediskey "voucher_seckill/pkg/redis"
)

// 秒杀的业务性拒绝，属于预期结果，由 handler 映射为 4xx。
var (
	ErrVoucherNotFound   = errors.New("voucher not found")
	ErrSeckillNotStarted = errors.New("seckill not started")
	ErrSeckillEnded      = errors.New("seckill ended")
)

// VoucherOrderService 编排秒杀下单：
// 时间窗校验在原子准入之外完成，准入本身是 Redis 内的单步原子操作，
// 成功即代表事件已进入订单流，落库由消费者异步完成。
type VoucherOrderService struct {
	db       *gorm.DB
	rdb      *rd.Client
	idWorker *rediskey.IDWorker
	log      zerolog.Logger
}

func NewVoucherOrderService(db *gorm.DB, rdb *rd.Client, idWorker *rediskey.IDWorker, log zerolog.Logger) *VoucherOrderService {
	return &VoucherOrderService{db: db, rdb: rdb, idWorker: idWorker, log: log}
}

// Seckill 执行一次秒杀。返回的 AdmitResult 表达业务结果，
// error 只用于券不存在、时间窗外以及基础设施故障。
func (s *VoucherOrderService) Seckill(ctx context.Context, voucherID, userID int64) (int64, rediskey.AdmitResult, error) {
	var voucher model.Voucher
	if err := s.db.WithContext(ctx).First(&voucher, voucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, ErrVoucherNotFound
		}
		return 0, 0, fmt.Errorf("load voucher: %w", err)
	}

	now := time.Now()
	if now.Before(voucher.BeginTime) {
		return 0, 0, ErrSeckillNotStarted
	}
	if now.After(voucher.EndTime) {
		return 0, 0, ErrSeckillEnded
	}

	orderID, err := s.idWorker.NextID(ctx, "order")
	if err != nil {
		return 0, 0, fmt.Errorf("next order id: %w", err)
	}

	result, err := rediskey.Admit(ctx, s.rdb, voucherID, userID, orderID)
	if err != nil {
		return 0, 0, err
	}
	if result == rediskey.AdmitOK {
		s.log.Info().Int64("order_id", orderID).Int64("user_id", userID).
			Int64("voucher_id", voucherID).Msg("seckill admitted")
	}
	return orderID, result, nil
}

// GetOrder 查询异步落库是否完成。found=false 表示订单尚未（或不会）落库。
func (s *VoucherOrderService) GetOrder(ctx context.Context, orderID int64) (model.VoucherOrder, bool, error) {
	var order model.VoucherOrder
	err := s.db.WithContext(ctx).First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.VoucherOrder{}, false, nil
		}
		return model.VoucherOrder{}, false, err
	}
	return order, true, nil
}

// CreateVoucher 新建秒杀券。
func (s *VoucherOrderService) CreateVoucher(ctx context.Context, v *model.Voucher) error {
	return s.db.WithContext(ctx).Create(v).Error
}

// PreloadStock 将券的持久层库存预热到 Redis，并清空已下单用户集合。
// 秒杀开始前由管理端调用一次。
func (s *VoucherOrderService) PreloadStock(ctx context.Context, voucherID int64) error {
	var voucher model.Voucher
	if err := s.db.WithContext(ctx).First(&voucher, voucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVoucherNotFound
		}
		return err
	}
	if err := s.rdb.Del(ctx, rediskey.OrderUsersKey(voucherID)).Err(); err != nil {
		return err
	}
	return rediskey.PreloadStock(ctx, s.rdb, voucherID, voucher.Stock)
}
