package client

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNewRateLimiter_ZeroAndNegative(t *testing.T) {
	tests := []struct {
		name string
		rps  float64
	}{
		{"zero limit", 0},
		{"negative limit", -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewRateLimiter(tt.rps, 1)
			if l != nil {
				t.Fatalf("NewRateLimiter(%v) should return nil", tt.rps)
			}
			if err := l.Wait(context.Background()); err != nil {
				t.Errorf("nil limiter Wait returned %v", err)
			}
		})
	}
}

func TestRateLimiter_Paces(t *testing.T) {
	l := NewRateLimiter(20, 1)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	// The first token is immediate, the next two wait ~50ms each.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected pacing, finished in %v", elapsed)
	}
}

func TestRateLimiter_BurstIsImmediate(t *testing.T) {
	l := NewRateLimiter(1, 5)
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("requests within the burst should not wait")
	}
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	l := NewRateLimiter(0.1, 1)
	_ = l.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("expected Wait to fail once the context expires")
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	l := NewRateLimiter(1000, 10)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
}
