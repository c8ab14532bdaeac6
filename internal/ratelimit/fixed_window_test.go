package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestFixedWindowLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(mr.Addr(), "", 3, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	for i := 0; i < 3; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatalf("request over the limit should be denied")
	}
	// Other keys have their own window.
	if !limiter.Allow("5.6.7.8") {
		t.Fatalf("different key should be allowed")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(mr.Addr(), "", 3, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	mr.Close()
	if limiter.Allow("1.2.3.4") {
		t.Fatalf("redis failure should deny")
	}
}

func TestFixedWindowLimiterNilAllows(t *testing.T) {
	var limiter *FixedWindowLimiter
	if !limiter.Allow("1.2.3.4") {
		t.Fatalf("nil limiter means rate limiting is disabled")
	}
}

func TestFixedWindowLimiterValidation(t *testing.T) {
	if _, err := NewRedisFixedWindowLimiter("", "", 3, time.Minute); err == nil {
		t.Fatalf("expected error for missing addr")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", 0, time.Minute); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", 3, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
}
