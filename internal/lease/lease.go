// Package lease provides mutual exclusion for pipeline runs.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrHeld is returned when another holder owns the lease.
	ErrHeld = errors.New("lease is held")
	// ErrLost is returned by Release when the lease expired or was taken
	// over before the holder released it.
	ErrLost = errors.New("lease was lost before release")
)

// Lease is an acquired lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out a single lease at a time.
type Locker interface {
	TryAcquire(ctx context.Context) (Lease, error)
}

// Local is an in-process Locker.
type Local struct {
	held atomic.Bool
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryAcquire(context.Context) (Lease, error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, ErrHeld
	}
	return &localLease{l: l}, nil
}

type localLease struct {
	l        *Local
	released atomic.Bool
}

func (ll *localLease) Release(context.Context) error {
	if ll.released.CompareAndSwap(false, true) {
		ll.l.held.Store(false)
	}
	return nil
}

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key only if it still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Locker shared by every process using the same key. A held
// lease is renewed every TTL/3 until released, so the TTL only bounds how
// long a crashed holder can block others.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed locker.
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = "aidaily:pipeline"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) TryAcquire(ctx context.Context) (Lease, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", r.key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	rl := &redisLease{r: r, token: token}
	renewCtx := context.WithoutCancel(ctx)
	interval := max(r.ttl/3, time.Millisecond)
	rl.keeper = keepAlive(interval, func() (bool, error) {
		callCtx, cancel := context.WithTimeout(renewCtx, interval)
		defer cancel()
		n, err := renewScript.Run(callCtx, r.client, []string{r.key}, token, r.ttl.Milliseconds()).Int64()
		return n == 1, err
	})
	return rl, nil
}

type redisLease struct {
	r      *Redis
	token  string
	keeper *keeper
}

func (rl *redisLease) Release(ctx context.Context) error {
	rl.keeper.stop()
	n, err := releaseScript.Run(ctx, rl.r.client, []string{rl.r.key}, rl.token).Int64()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", rl.r.key, err)
	}
	if n == 0 || rl.keeper.lost.Load() {
		return fmt.Errorf("release lease %s: %w", rl.r.key, ErrLost)
	}
	return nil
}

// keeper calls renew on every tick until stopped or until renew reports
// the lease is no longer ours. Renewal errors are retried on the next tick.
type keeper struct {
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	lost     atomic.Bool
}

func keepAlive(interval time.Duration, renew func() (bool, error)) *keeper {
	k := &keeper{quit: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(k.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-k.quit:
				return
			case <-ticker.C:
				ok, err := renew()
				if err != nil {
					continue
				}
				if !ok {
					k.lost.Store(true)
					return
				}
			}
		}
	}()
	return k
}

func (k *keeper) stop() {
	k.stopOnce.Do(func() { close(k.quit) })
	<-k.done
}
