package gitlab

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenBucketBurstThenRefill(t *testing.T) {
	b := newTokenBucket(10, 2, time.Second)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	b.last = now

	for i := 0; i < 2; i++ {
		if ok, _ := b.take(); !ok {
			t.Fatalf("take %d within burst failed", i)
		}
	}
	ok, wait := b.take()
	if ok {
		t.Fatalf("take succeeded with empty bucket")
	}
	if wait <= 0 || wait > 110*time.Millisecond {
		t.Fatalf("wait = %v, want about 100ms at 10 rps", wait)
	}

	now = now.Add(100 * time.Millisecond)
	if ok, _ := b.take(); !ok {
		t.Fatalf("take after refill failed")
	}
}

func TestTokenBucketCapsAtBurst(t *testing.T) {
	b := newTokenBucket(10, 2, time.Second)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	b.last = now

	// A long idle period does not accumulate beyond burst.
	now = now.Add(time.Hour)
	for i := 0; i < 2; i++ {
		if ok, _ := b.take(); !ok {
			t.Fatalf("take %d failed", i)
		}
	}
	if ok, _ := b.take(); ok {
		t.Fatalf("bucket held more than burst tokens")
	}
}

func TestWaitTimesOut(t *testing.T) {
	b := newTokenBucket(0.001, 1, 20*time.Millisecond)
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait should use the burst token: %v", err)
	}
	start := time.Now()
	err := b.Wait(context.Background())
	if !errors.Is(err, ErrRateLimitTimeout) {
		t.Fatalf("Wait: got %v, want ErrRateLimitTimeout", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("Wait blocked past its timeout budget")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	b := newTokenBucket(0.001, 1, time.Hour)
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Wait(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Wait after cancel: got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait did not return after cancel")
	}
}
