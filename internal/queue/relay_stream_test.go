package queue

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs []OrderMessage
}

func (p *capturePublisher) Publish(_ context.Context, msg OrderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func TestRelay_ForwardsStreamEventsAndAcks(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const stream = "stream.orders"
	for i := 0; i < 3; i++ {
		if err := rdb.XAdd(ctx, &rd.XAddArgs{
			Stream: stream,
			Values: map[string]interface{}{
				"order_id":   strconv.Itoa(900001 + i),
				"user_id":    strconv.Itoa(100 + i),
				"voucher_id": "7",
			},
		}).Err(); err != nil {
			t.Fatalf("xadd: %v", err)
		}
	}
	// 混入一条脏消息，应被 ACK 丢弃且不影响后续转发。
	if err := rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"garbage": "1"},
	}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}

	pub := &capturePublisher{}
	relay := NewRelay(rdb, pub, stream, "relay-group", "relay-1", zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		relay.Run(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for pub.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 forwarded messages, got %d", pub.count())
		}
		time.Sleep(10 * time.Millisecond)
	}

	// 发布成功后消息应已从 Stream 中 ACK+删除。
	for {
		n, err := rdb.XLen(ctx, stream).Result()
		if err != nil {
			t.Fatalf("xlen: %v", err)
		}
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected empty stream after acks, got %d entries", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("relay did not stop on context cancel")
	}

	for i, msg := range pub.msgs {
		if msg.VoucherID != 7 || msg.OrderID != int64(900001+i) {
			t.Fatalf("unexpected message %+v", msg)
		}
	}
}
