package redislock_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailydev/internal/dispatch"
	"dailydev/internal/platform/logger"
	"dailydev/internal/platform/redislock"
)

var _ dispatch.Locker = (*redislock.Locker)(nil)

func TestLocker(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := redislock.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	l := redislock.New(client, logger.Discard())
	key := "dailydev:test:" + uuid.NewString()

	release, ok, err := l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be rejected")

	release()
	release2, ok, err := l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// чужой release не снимает новую блокировку
	release()
	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	release2()
}

func TestOpen_BadURL(t *testing.T) {
	_, err := redislock.Open(context.Background(), "not a url")
	assert.Error(t, err)
}
