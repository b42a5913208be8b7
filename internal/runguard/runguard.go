package runguard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/recovery/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrNotAcquired = errors.New("run_guard_not_acquired")

// Lease is a held guard; Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Guard serializes runs that must not overlap, such as two ingestion passes
// over the same feed.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type redisGuard struct {
	client *redislock.Client
}

func NewRedis(client *redis.Client) Guard {
	return &redisGuard{client: redislock.New(client)}
}

func (g *redisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	lock, err := g.client.Obtain(ctx, "lock:"+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotAcquired
	}
	if err != nil {
		return nil, err
	}
	return &redisLease{lock: lock}, nil
}

type redisLease struct {
	mu   sync.Mutex
	lock *redislock.Lock
}

func (l *redisLease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lock == nil {
		return nil
	}
	err := l.lock.Release(ctx)
	l.lock = nil
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

// Local guards within a single process. Expired leases are reclaimed on the
// next Acquire.
type Local struct {
	mu    sync.Mutex
	held  map[string]*localLease
	nowFn func() time.Time
}

func NewLocal() *Local {
	return &Local{held: make(map[string]*localLease), nowFn: time.Now}
}

func (g *Local) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("lock key is empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFn()
	if current, ok := g.held[key]; ok {
		if ttl <= 0 || current.expiresAt.IsZero() || now.Before(current.expiresAt) {
			return nil, ErrNotAcquired
		}
	}

	lease := &localLease{guard: g, key: key}
	if ttl > 0 {
		lease.expiresAt = now.Add(ttl)
	}
	g.held[key] = lease
	return lease, nil
}

type localLease struct {
	guard     *Local
	key       string
	expiresAt time.Time
}

func (l *localLease) Release(context.Context) error {
	l.guard.mu.Lock()
	defer l.guard.mu.Unlock()
	if l.guard.held[l.key] == l {
		delete(l.guard.held, l.key)
	}
	return nil
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// New returns a redis-backed guard when REDIS_ADDR is set and an in-process
// guard otherwise.
func New(p Params) Guard {
	addr := strings.TrimSpace(p.Config.Redis.Addr)
	if addr == "" {
		p.Log.Info("run guard using in-process locks")
		return NewLocal()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(p.Config.Redis.Password),
		DB:       p.Config.Redis.DB,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	p.Log.Info("run guard using redis", zap.String("addr", addr))
	return NewRedis(client)
}

var Module = fx.Module("runguard",
	fx.Provide(New),
)
