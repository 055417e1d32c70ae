package lease

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLocalExclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	first, err := l.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := l.TryAcquire(ctx); !errors.Is(err, ErrHeld) {
		t.Fatalf("second acquire err = %v, want ErrHeld", err)
	}

	first.Release(ctx)
	first.Release(ctx)

	second, err := l.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	// A stale handle must not free someone else's lease.
	first.Release(ctx)
	if _, err := l.TryAcquire(ctx); !errors.Is(err, ErrHeld) {
		t.Fatalf("stale release freed the lease: %v", err)
	}
	second.Release(ctx)
}

func TestRedisExclusive(t *testing.T) {
	addr := os.Getenv("AIDAILY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AIDAILY_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := Dial(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	key := "aidaily:test:" + uuid.NewString()
	a := NewRedis(client, key, time.Minute)
	b := NewRedis(client, key, time.Minute)

	la, err := a.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := b.TryAcquire(ctx); !errors.Is(err, ErrHeld) {
		t.Fatalf("err = %v, want ErrHeld", err)
	}
	if err := la.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	lb, err := b.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	lb.Release(ctx)
}

func TestKeepAliveRenewsUntilStopped(t *testing.T) {
	var calls atomic.Int32
	k := keepAlive(5*time.Millisecond, func() (bool, error) {
		calls.Add(1)
		return true, nil
	})

	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("lease was not renewed")
		}
		time.Sleep(time.Millisecond)
	}
	k.stop()
	k.stop()

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != after {
		t.Fatal("renewal continued after stop")
	}
	if k.lost.Load() {
		t.Fatal("lease should not be marked lost")
	}
}

func TestKeepAliveMarksLost(t *testing.T) {
	var calls atomic.Int32
	k := keepAlive(5*time.Millisecond, func() (bool, error) {
		if calls.Add(1) == 1 {
			return false, errors.New("i/o timeout")
		}
		return false, nil
	})

	select {
	case <-k.done:
	case <-time.After(5 * time.Second):
		t.Fatal("keeper did not stop after losing the lease")
	}
	if !k.lost.Load() {
		t.Fatal("lease should be marked lost")
	}
	if calls.Load() != 2 {
		t.Fatalf("renew calls = %d, want 2 (error retried once)", calls.Load())
	}
	k.stop()
}

func TestRedisLeaseOutlivesTTL(t *testing.T) {
	addr := os.Getenv("AIDAILY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AIDAILY_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := Dial(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	key := "aidaily:test:" + uuid.NewString()
	ttl := 300 * time.Millisecond
	a := NewRedis(client, key, ttl)
	b := NewRedis(client, key, ttl)

	la, err := a.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	time.Sleep(4 * ttl)
	if _, err := b.TryAcquire(ctx); !errors.Is(err, ErrHeld) {
		t.Fatalf("lease expired while held: err = %v, want ErrHeld", err)
	}
	if err := la.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	lb, err := b.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	lb.Release(ctx)
}

func TestRedisReleaseReportsLostLease(t *testing.T) {
	addr := os.Getenv("AIDAILY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AIDAILY_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := Dial(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	key := "aidaily:test:" + uuid.NewString()
	la, err := NewRedis(client, key, time.Minute).TryAcquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := client.Set(ctx, key, "someone-else", time.Minute).Err(); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := la.Release(ctx); !errors.Is(err, ErrLost) {
		t.Fatalf("release err = %v, want ErrLost", err)
	}
	if v, _ := client.Get(ctx, key).Result(); v != "someone-else" {
		t.Fatalf("release deleted another holder's key: %q", v)
	}
	client.Del(ctx, key)
}
