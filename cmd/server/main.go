package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"voucher_seckill/internal/cache"
	"voucher_seckill/internal/config"
	"voucher_seckill/internal/model"
	"voucher_seckill/internal/queue"
	"voucher_seckill/internal/router"
	"voucher_seckill/internal/service"
	rediskey "voucher_seckill/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// 1. 连接 SQLite，自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(&model.Voucher{}, &model.VoucherOrder{}, &model.Shop{}, &model.ShopType{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// 2. Redis
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()

	// 3. Kafka 生产者 + Stream->Kafka Relay + 消费者
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	relay := queue.NewRelay(rdb, producer, rediskey.OrderStream,
		cfg.OrderEventGroup, cfg.OrderEventConsumer, logger.With().Str("component", "relay").Logger())
	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID,
		db, logger.With().Str("component", "consumer").Logger())
	defer consumer.Close()

	// 4. 缓存客户端（自有重建池，随进程关闭排空）
	cacheClient := cache.NewClient(rdb, cfg.CacheWorkers, logger.With().Str("component", "cache").Logger())
	defer cacheClient.Close()

	idWorker := rediskey.NewIDWorker(rdb)
	voucherSvc := service.NewVoucherOrderService(db, rdb, idWorker, logger.With().Str("component", "seckill").Logger())
	shopSvc := service.NewShopService(db, cacheClient)

	r := gin.Default()
	router.Setup(r, rdb, voucherSvc, shopSvc, cfg)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		relay.Run(gctx)
		return nil
	})
	g.Go(func() error {
		consumer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("server started")
	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
}
