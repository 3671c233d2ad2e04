package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（准入脚本原子入流，Relay 异步转 Kafka）
	OrderEventGroup    string
	OrderEventConsumer string

	// 秒杀接口限流与缓存重建池大小
	SeckillRateLimit  int
	SeckillRateWindow time.Duration
	CacheWorkers      int

	// 预热/管理接口的简单管理员令牌
	AdminToken string
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "voucher_seckill.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "voucher-orders"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "voucher-order-consumer"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "order-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "order-relay-1"),
		SeckillRateLimit:   200,
		SeckillRateWindow:  time.Second,
		CacheWorkers:       10,
		AdminToken:         getEnv("ADMIN_TOKEN", "dev-admin-token"),
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("SECKILL_RATE_LIMIT", cfg.SeckillRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SECKILL_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("SECKILL_RATE_LIMIT must be > 0")
	}
	cfg.SeckillRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("SECKILL_RATE_WINDOW_SEC", int(cfg.SeckillRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SECKILL_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("SECKILL_RATE_WINDOW_SEC must be > 0")
	}
	cfg.SeckillRateWindow = time.Duration(rateWindowSec) * time.Second

	workers, err := getEnvInt("CACHE_WORKERS", cfg.CacheWorkers)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CACHE_WORKERS: %w", err)
	}
	if workers <= 0 {
		return AppConfig{}, fmt.Errorf("CACHE_WORKERS must be > 0")
	}
	cfg.CacheWorkers = workers

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.OrderEventGroup == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
	}
	if cfg.OrderEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_CONSUMER must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
