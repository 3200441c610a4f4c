package lock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a connected manager.
func setupRedis(t *testing.T) (*Manager, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	m, err := New(ctx, Config{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)

	cleanup := func() {
		_ = m.Close()
		_ = container.Terminate(ctx)
	}
	return m, cleanup
}

func TestManager_AcquireRelease(t *testing.T) {
	m, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()

	unlock, err := m.Acquire(ctx, "cycle:MintA", time.Minute)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "cycle:MintA", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	// Different key is independent
	unlockB, err := m.Acquire(ctx, "cycle:MintB", time.Minute)
	require.NoError(t, err)
	unlockB()

	unlock()
	unlock() // idempotent

	unlock2, err := m.Acquire(ctx, "cycle:MintA", time.Minute)
	require.NoError(t, err)
	unlock2()
}

func TestManager_RefreshOutlivesTTL(t *testing.T) {
	m, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()

	unlock, err := m.Acquire(ctx, "cycle:MintA", 300*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(time.Second)

	_, err = m.Acquire(ctx, "cycle:MintA", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld, "a held lock must be renewed past its TTL")

	ttl, err := m.rdb.PTTL(ctx, keyPrefix+"cycle:MintA").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 300*time.Millisecond)

	unlock()

	// Released locks are no longer renewed
	next, err := m.Acquire(ctx, "cycle:MintA", time.Minute)
	require.NoError(t, err)
	next()
}

func TestManager_LostLock(t *testing.T) {
	m, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()

	stale, err := m.Acquire(ctx, "cycle:MintA", 300*time.Millisecond)
	require.NoError(t, err)

	// Ownership lost, e.g. Redis failover or a manual delete
	require.NoError(t, m.rdb.Del(ctx, keyPrefix+"cycle:MintA").Err())

	fresh, err := m.Acquire(ctx, "cycle:MintA", time.Minute)
	require.NoError(t, err)

	// The stale holder's refresher must not touch the new holder's TTL
	time.Sleep(400 * time.Millisecond)
	ttl, err := m.rdb.PTTL(ctx, keyPrefix+"cycle:MintA").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 30*time.Second)

	// A stale holder must not release the new holder's lock
	stale()
	_, err = m.Acquire(ctx, "cycle:MintA", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	fresh()
}
