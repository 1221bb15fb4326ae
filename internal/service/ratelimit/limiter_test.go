package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiterBurstPerKey(t *testing.T) {
	l := New(0.001, 2)
	if !l.Allow("okx") || !l.Allow("okx") {
		t.Fatalf("burst of 2 should be allowed")
	}
	if l.Allow("okx") {
		t.Fatalf("third request should be limited")
	}
	if !l.Allow("bybit") {
		t.Fatalf("keys must not share a bucket")
	}
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	l.Allow("bingx")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "bingx"); err == nil {
		t.Fatalf("Wait should fail when the next token is beyond the deadline")
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("binance") {
			t.Fatalf("request %d limited with rps 0", i)
		}
	}
}
