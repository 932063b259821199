package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubRedis struct {
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newStubRedis() *stubRedis {
	return &stubRedis{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (s *stubRedis) Ping(ctx context.Context) error { return nil }
func (s *stubRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (s *stubRedis) Get(ctx context.Context, key string) (string, error) { return "", nil }

func (s *stubRedis) Incr(ctx context.Context, key string) (int64, error) {
	if s.incrErr != nil {
		return 0, s.incrErr
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *stubRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	s.expires[key] = expiration
	return nil
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) error { return nil }
func (s *stubRedis) Close() error                                  { return nil }

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	stub := newStubRedis()
	rl := NewRateLimiter(stub)
	ctx := context.Background()
	key := UserSubmitKey("u1")

	for i := 0; i < 3; i++ {
		allowed, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("request %d refused under the limit", i+1)
		}
	}
	allowed, err := rl.Allow(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Error("request over the limit was allowed")
	}
}

func TestRateLimiterSetsWindowOnFirstHit(t *testing.T) {
	stub := newStubRedis()
	rl := NewRateLimiter(stub)
	key := UserSubmitKey("u1")

	if _, err := rl.Allow(context.Background(), key, 5, time.Minute); err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if got := stub.expires[key]; got != time.Minute {
		t.Errorf("expiry = %v, want 1m set on the first hit", got)
	}

	stub.expires[key] = 0
	if _, err := rl.Allow(context.Background(), key, 5, time.Minute); err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if got := stub.expires[key]; got != 0 {
		t.Error("expiry reset on a later hit, want it set only once per window")
	}
}

func TestRateLimiterPropagatesRedisError(t *testing.T) {
	stub := newStubRedis()
	stub.incrErr = errors.New("connection refused")
	rl := NewRateLimiter(stub)

	if _, err := rl.Allow(context.Background(), UserSubmitKey("u1"), 5, time.Minute); err == nil {
		t.Error("err = nil, want the transport error surfaced")
	}
}

func TestUserSubmitKey(t *testing.T) {
	if got := UserSubmitKey("abc"); got != "rate_limit:abc:submit" {
		t.Errorf("key = %q", got)
	}
}
