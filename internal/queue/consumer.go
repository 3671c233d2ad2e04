package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"voucher_seckill/internal/model"
)

// Consumer 消费订单创建事件并落库。
// Kafka 提供 at-least-once 投递，落库逻辑按 (user_id, voucher_id) 幂等，
// 重复消息不会产生第二个订单，也不会重复扣持久层库存。
type Consumer struct {
	r   *kafka.Reader
	db  *gorm.DB
	log zerolog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB, log zerolog.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
			// 关闭自动提交，处理成功后才提交位点，失败的消息由 broker 重投。
			CommitInterval: 0,
		}),
		db:  db,
		log: log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run 持续拉取消息直到 ctx 取消。单条消息的处理失败只记录日志，
// 不提交位点（等待重投），不中断消费循环。
func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error().Err(err).Msg("consumer fetch")
			time.Sleep(time.Second)
			continue
		}

		var msg OrderMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			// 脏消息：记录并提交位点跳过，避免无限重投。
			c.log.Error().Err(err).Msg("consumer unmarshal, skipping message")
			c.commit(ctx, m)
			continue
		}
		if err := msg.Validate(); err != nil {
			c.log.Error().Err(err).Int64("order_id", msg.OrderID).Msg("consumer invalid message, skipping")
			c.commit(ctx, m)
			continue
		}

		if err := c.createVoucherOrder(msg); err != nil {
			// 落库失败：不提交位点，broker 会重投，幂等逻辑吸收重复。
			c.log.Error().Err(err).Int64("order_id", msg.OrderID).Msg("consumer create order")
			time.Sleep(time.Second)
			continue
		}

		c.commit(ctx, m)
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.r.CommitMessages(ctx, m); err != nil {
		c.log.Error().Err(err).Msg("consumer commit")
	}
}

// createVoucherOrder 在一个事务内完成订单落库：
// (a) 该用户已有订单 → 幂等跳过（吸收重投）；
// (b) 条件扣减持久层库存（stock > 0），零行生效 → 跳过；
// (c) 插入订单行。三步同事务，不存在部分生效。
func (c *Consumer) createVoucherOrder(msg OrderMessage) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.VoucherOrder{}).
			Where("user_id = ? AND voucher_id = ?", msg.UserID, msg.VoucherID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		res := tx.Model(&model.Voucher{}).
			Where("id = ? AND stock > 0", msg.VoucherID).
			UpdateColumn("stock", gorm.Expr("stock - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 持久层库存已尽，跳过，库存不落负。
			c.log.Warn().Int64("voucher_id", msg.VoucherID).Int64("order_id", msg.OrderID).
				Msg("durable stock exhausted, dropping order")
			return nil
		}

		return tx.Create(&model.VoucherOrder{
			ID:        msg.OrderID,
			UserID:    msg.UserID,
			VoucherID: msg.VoucherID,
			Status:    model.VoucherOrderUnpaid,
		}).Error
	})
}
