package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	// High rate for testing
	limiter := New(1000, 10)

	// Should allow up to burst
	for i := 0; i < 10; i++ {
		if !limiter.Allow("proj-1") {
			t.Errorf("Allow() should return true for launch %d (within burst)", i)
		}
	}
}

func TestLimiter_BlocksOverLimit(t *testing.T) {
	limiter := New(0.1, 2)

	if !limiter.Allow("proj-1") {
		t.Error("First launch should be allowed")
	}
	if !limiter.Allow("proj-1") {
		t.Error("Second launch should be allowed (burst)")
	}
	if limiter.Allow("proj-1") {
		t.Error("Third launch should be blocked (over limit)")
	}
}

func TestLimiter_Check(t *testing.T) {
	limiter := New(0.1, 1)

	if err := limiter.Check("proj-1"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	err := limiter.Check("proj-1")
	if !errors.Is(err, ErrLimited) {
		t.Errorf("Check() error = %v, want ErrLimited", err)
	}
}

func TestLimiter_PerKeyIsolation(t *testing.T) {
	limiter := New(0.1, 2)

	limiter.Allow("proj-1")
	limiter.Allow("proj-1")

	if !limiter.Allow("proj-2") {
		t.Error("proj-2's first launch should be allowed")
	}
	if !limiter.Allow("proj-2") {
		t.Error("proj-2's second launch should be allowed")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := New(0, 0)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("proj-1") {
			t.Fatalf("launch %d should be allowed with limiting disabled", i)
		}
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := New(0.001, 1)
	limiter.Allow("proj-1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, "proj-1"); err == nil {
		t.Error("Wait() should fail when the budget cannot refill before the deadline")
	}
}

func TestLimiter_Reset(t *testing.T) {
	limiter := New(0.1, 1)

	limiter.Allow("proj-1")
	limiter.Allow("proj-2")
	if limiter.Len() != 2 {
		t.Errorf("Len() = %d, want 2", limiter.Len())
	}

	limiter.Reset()

	if limiter.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", limiter.Len())
	}
	if !limiter.Allow("proj-1") {
		t.Error("After reset, first launch should be allowed")
	}
}

func TestLimiter_getLimiter_DoubleCheck(t *testing.T) {
	limiter := New(10, 5)

	var wg sync.WaitGroup
	results := make(chan any, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- limiter.getLimiter("same-key")
		}()
	}

	wg.Wait()
	close(results)

	first := limiter.getLimiter("same-key")
	for l := range results {
		if l != first {
			t.Error("concurrent getLimiter calls should share one limiter")
		}
	}
}
