package redis

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestIDWorker_NextIDUnique(t *testing.T) {
	_, rdb := newTestRedis(t)
	w := NewIDWorker(rdb)
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			id, err := w.NextID(ctx, "order")
			if err != nil {
				t.Errorf("next id: %v", err)
				return
			}
			ids[idx] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, id := range ids {
		if id == 0 {
			t.Fatal("got zero id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}

func TestIDWorker_TimestampBits(t *testing.T) {
	_, rdb := newTestRedis(t)
	w := NewIDWorker(rdb)

	before := time.Now().Unix() - beginTimestamp
	id, err := w.NextID(context.Background(), "order")
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	after := time.Now().Unix() - beginTimestamp

	ts := id >> countBits
	if ts < before || ts > after {
		t.Fatalf("timestamp bits %d outside [%d, %d]", ts, before, after)
	}
	if seq := id & (1<<countBits - 1); seq != 1 {
		t.Fatalf("expected first sequence 1, got %d", seq)
	}
}

func TestIDWorker_SeparatePrefixesCountIndependently(t *testing.T) {
	_, rdb := newTestRedis(t)
	w := NewIDWorker(rdb)
	ctx := context.Background()

	if _, err := w.NextID(ctx, "order"); err != nil {
		t.Fatalf("next id: %v", err)
	}
	id, err := w.NextID(ctx, "refund")
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if seq := id & (1<<countBits - 1); seq != 1 {
		t.Fatalf("expected fresh prefix to start at 1, got %d", seq)
	}
}
