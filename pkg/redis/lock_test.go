package redis

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLock_SingleWinner(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	wins := make([]bool, n)
	locks := make([]*Lock, n)
	for i := 0; i < n; i++ {
		locks[i] = NewLock(rdb, "res", 10*time.Second)
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ok, err := locks[idx].TryAcquire(ctx)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			wins[idx] = ok
		}(i)
	}
	wg.Wait()

	winCount := 0
	winner := -1
	for i, w := range wins {
		if w {
			winCount++
			winner = i
		}
	}
	if winCount != 1 {
		t.Fatalf("expected exactly one winner, got %d", winCount)
	}

	// 释放后其他调用方可以获取。
	if err := locks[winner].Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	other := NewLock(rdb, "res", 10*time.Second)
	ok, err := other.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("expected acquire after release, ok=%v err=%v", ok, err)
	}
}

func TestLock_NonOwnerReleaseIsNoop(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	owner := NewLock(rdb, "res", 10*time.Second)
	if ok, err := owner.TryAcquire(ctx); err != nil || !ok {
		t.Fatalf("owner acquire: ok=%v err=%v", ok, err)
	}

	intruder := NewLock(rdb, "res", 10*time.Second)
	if err := intruder.Release(ctx); err != nil {
		t.Fatalf("non-owner release should not error: %v", err)
	}

	// 真正的持有者仍然持有锁。
	third := NewLock(rdb, "res", 10*time.Second)
	ok, err := third.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok {
		t.Fatal("lock should still be held by owner")
	}
}

func TestLock_TTLExpiryFreesLock(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	first := NewLock(rdb, "res", time.Second)
	if ok, _ := first.TryAcquire(ctx); !ok {
		t.Fatal("first acquire failed")
	}

	mr.FastForward(2 * time.Second)

	second := NewLock(rdb, "res", time.Second)
	ok, err := second.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("expected acquire after TTL expiry")
	}

	// 第一把锁早已过期，它的 Release 不得影响新持有者。
	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	third := NewLock(rdb, "res", time.Second)
	if ok, _ := third.TryAcquire(ctx); ok {
		t.Fatal("lock should still be held by second owner")
	}
}

func TestLock_TokensDifferPerAcquisition(t *testing.T) {
	_, rdb := newTestRedis(t)
	a := NewLock(rdb, "res", time.Second)
	b := NewLock(rdb, "res", time.Second)
	if a.token == b.token {
		t.Fatal("expected distinct owner tokens per acquisition")
	}
}
