// Package lock provides distributed per-token locks on Redis so that two
// daemons never run a cycle for the same token at the same time.
package lock

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another holder")

// keyPrefix namespaces all lock keys.
const keyPrefix = "liquidify:lock:"

// unlockLua deletes a lock key only if its value matches the caller's token,
// so one holder never releases another holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// refreshLua extends a lock's TTL only while the caller still owns it.
const refreshLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// Config holds Redis connection parameters.
type Config struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
	Logger     *log.Logger
}

// Manager implements SETNX locks with a TTL, renewed while held, and a Lua
// conditional unlock.
type Manager struct {
	rdb       *redis.Client
	unlockSc  *redis.Script
	refreshSc *redis.Script
	logger    *log.Logger
}

// New connects to Redis, pings it, and returns a lock manager.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		rdb:       rdb,
		unlockSc:  redis.NewScript(unlockLua),
		refreshSc: redis.NewScript(refreshLua),
		logger:    logger,
	}, nil
}

// Acquire obtains the lock for key with the given TTL. While held, the TTL is
// renewed every ttl/3, so a holder that outlives ttl keeps the lock until it
// calls the returned unlock function, which is safe to call more than once.
// Returns ErrLockHeld if the lock is already held.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := keyPrefix + key

	ok, err := m.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go m.keepAlive(lk, token, ttl, stop, stopped)

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			close(stop)
			<-stopped

			// Background context: the caller's context may already be cancelled.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.unlockSc.Run(unlockCtx, m.rdb, []string{lk}, token).Err()
		})
	}
	return unlock, nil
}

// keepAlive renews the lock until stop is closed or ownership is lost.
// A failed renewal is retried on the next tick; the key still has the
// remainder of its TTL.
func (m *Manager) keepAlive(lk, token string, ttl time.Duration, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		renewed, err := m.refreshSc.Run(ctx, m.rdb, []string{lk}, token, ttl.Milliseconds()).Int()
		cancel()

		switch {
		case err != nil:
			m.logger.Printf("[lock] refresh %s failed: %v", lk, err)
		case renewed == 0:
			m.logger.Printf("[lock] %s lost before release, no longer refreshing", lk)
			return
		}
	}
}

// Close closes the Redis connection.
func (m *Manager) Close() error {
	return m.rdb.Close()
}
