package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"voucher_seckill/internal/model"
	rediskey "voucher_seckill/pkg/redis"
)

func newVoucherService(t *testing.T) (*VoucherOrderService, *gorm.DB, *rd.Client) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.Voucher{}, &model.VoucherOrder{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	svc := NewVoucherOrderService(db, rdb, rediskey.NewIDWorker(rdb), zerolog.Nop())
	return svc, db, rdb
}

func seedVoucher(t *testing.T, db *gorm.DB, id, stock int64, begin, end time.Time) {
	t.Helper()
	if err := db.Create(&model.Voucher{
		ID:        id,
		Title:     "test voucher",
		Stock:     stock,
		PayValue:  1000,
		BeginTime: begin,
		EndTime:   end,
	}).Error; err != nil {
		t.Fatalf("seed voucher: %v", err)
	}
}

func TestSeckill_AdmitsThenRejectsDuplicate(t *testing.T) {
	svc, db, _ := newVoucherService(t)
	ctx := context.Background()
	seedVoucher(t, db, 7, 5, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	if err := svc.PreloadStock(ctx, 7); err != nil {
		t.Fatalf("preload: %v", err)
	}

	orderID, res, err := svc.Seckill(ctx, 7, 100)
	if err != nil {
		t.Fatalf("seckill: %v", err)
	}
	if res != rediskey.AdmitOK {
		t.Fatalf("expected AdmitOK, got %v", res)
	}
	if orderID <= 0 {
		t.Fatalf("expected positive order id, got %d", orderID)
	}

	_, res, err = svc.Seckill(ctx, 7, 100)
	if err != nil {
		t.Fatalf("second seckill: %v", err)
	}
	if res != rediskey.AdmitDuplicate {
		t.Fatalf("expected AdmitDuplicate, got %v", res)
	}
}

func TestSeckill_TimeWindowEnforced(t *testing.T) {
	svc, db, _ := newVoucherService(t)
	ctx := context.Background()
	seedVoucher(t, db, 1, 5, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	seedVoucher(t, db, 2, 5, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))

	if _, _, err := svc.Seckill(ctx, 1, 100); !errors.Is(err, ErrSeckillNotStarted) {
		t.Fatalf("expected ErrSeckillNotStarted, got %v", err)
	}
	if _, _, err := svc.Seckill(ctx, 2, 100); !errors.Is(err, ErrSeckillEnded) {
		t.Fatalf("expected ErrSeckillEnded, got %v", err)
	}
}

func TestSeckill_UnknownVoucher(t *testing.T) {
	svc, _, _ := newVoucherService(t)
	if _, _, err := svc.Seckill(context.Background(), 999, 100); !errors.Is(err, ErrVoucherNotFound) {
		t.Fatalf("expected ErrVoucherNotFound, got %v", err)
	}
}

func TestPreloadStock_ResetsOrderedUsers(t *testing.T) {
	svc, db, rdb := newVoucherService(t)
	ctx := context.Background()
	seedVoucher(t, db, 7, 5, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	// 先留下一个旧的已下单用户，再预热，集合应被清空。
	if err := rdb.SAdd(ctx, rediskey.OrderUsersKey(7), "100").Err(); err != nil {
		t.Fatalf("sadd: %v", err)
	}
	if err := svc.PreloadStock(ctx, 7); err != nil {
		t.Fatalf("preload: %v", err)
	}

	n, err := rdb.SCard(ctx, rediskey.OrderUsersKey(7)).Result()
	if err != nil {
		t.Fatalf("scard: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected ordered-users reset, got %d members", n)
	}
	stock, _ := rdb.Get(ctx, rediskey.StockKey(7)).Int64()
	if stock != 5 {
		t.Fatalf("expected preloaded stock 5, got %d", stock)
	}
}
