package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"sessionguard/internal/session/domain"
)

func setupSessionTestRedis(t *testing.T) *RedisRepository {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping test: TEST_REDIS_ADDR is not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Skipping test: cannot ping redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client, "sessionguard-test:"+uuid.NewString()+":")
}

func TestRedisRepository_Contract(t *testing.T) {
	testRepositoryContract(t, setupSessionTestRedis(t))
}

func TestRedisRepository_TokenKeyExpires(t *testing.T) {
	repo := setupSessionTestRedis(t)
	ctx := context.Background()

	tok := uuid.NewString()
	exp := time.Now().UTC().Add(200 * time.Millisecond)
	_, err := repo.Upsert(ctx, &domain.Session{Token: tok, UserID: uuid.NewString(), ExpirationDate: exp})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := repo.GetByToken(ctx, tok)
		return err == nil && got == nil
	}, 3*time.Second, 50*time.Millisecond)

	n, err := repo.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestRedisRepository_Ping(t *testing.T) {
	repo := setupSessionTestRedis(t)
	require.NoError(t, repo.Ping(context.Background()))
}

func TestRedisRepository_IndexKeysExpireWithNewestSession(t *testing.T) {
	repo := setupSessionTestRedis(t)
	ctx := context.Background()
	uid, dev := uuid.NewString(), uuid.NewString()
	now := time.Now().UTC()

	_, err := repo.Upsert(ctx, &domain.Session{Token: uuid.NewString(), UserID: uid, DeviceID: dev, ExpirationDate: now.Add(time.Hour)})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &domain.Session{Token: uuid.NewString(), UserID: uid, ExpirationDate: now.Add(10 * time.Minute)})
	require.NoError(t, err)

	for _, key := range []string{repo.userKey(uid), repo.deviceKey(dev)} {
		ttl, err := repo.client.PTTL(ctx, key).Result()
		require.NoError(t, err)
		require.Greater(t, ttl, 50*time.Minute, "key %s", key)
		require.LessOrEqual(t, ttl, time.Hour, "key %s", key)
	}

	// A later session pushes the index expiry out.
	_, err = repo.Upsert(ctx, &domain.Session{Token: uuid.NewString(), UserID: uid, DeviceID: dev, ExpirationDate: now.Add(2 * time.Hour)})
	require.NoError(t, err)
	ttl, err := repo.client.PTTL(ctx, repo.userKey(uid)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 110*time.Minute)
}
