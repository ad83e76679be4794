package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"sessionguard/internal/db"
	"sessionguard/internal/db/migrate"
	"sessionguard/internal/lockout"
	"sessionguard/internal/platform/storage"
	"sessionguard/internal/user/domain"
)

func setupUserTestDB(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping test: TEST_DATABASE_URL is not set")
	}
	if err := migrate.Run(dsn, "up"); err != nil {
		t.Skipf("Skipping test: cannot migrate test database: %v", err)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		t.Skipf("Skipping test: cannot connect to test database: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewPostgresRepository(conn)
}

func TestPostgresRepository_CreateAndGet(t *testing.T) {
	repo := setupUserTestDB(t)
	ctx := context.Background()

	id := uuid.New().String()
	u := &domain.User{ID: id, Username: "pg-" + id, Enabled: true}
	require.NoError(t, repo.Create(ctx, u))
	require.Equal(t, int64(1), u.Version)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Enabled)
	require.Equal(t, 0, got.Security.InvalidLoginAttempts)

	byName, err := repo.GetByUsername(ctx, "PG-"+id)
	require.NoError(t, err)
	require.NotNil(t, byName)
	require.Equal(t, id, byName.ID)

	require.ErrorIs(t, repo.Create(ctx, &domain.User{ID: uuid.New().String(), Username: u.Username}), ErrAlreadyExists)
}

func TestPostgresRepository_GetMissing(t *testing.T) {
	repo := setupUserTestDB(t)
	got, err := repo.GetByID(context.Background(), uuid.New().String())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestPostgresRepository_UpdateSecurity(t *testing.T) {
	repo := setupUserTestDB(t)
	ctx := context.Background()

	id := uuid.New().String()
	require.NoError(t, repo.Create(ctx, &domain.User{ID: id, Username: "pg-" + id, Enabled: true}))

	until := time.Now().UTC().Add(time.Minute).Truncate(time.Microsecond)
	state := lockout.SecurityState{Locked: true, LockedUntil: &until, NumberOfTimesLocked: 1}
	v, err := repo.UpdateSecurity(ctx, id, 1, state, true)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.True(t, lockout.Equal(got.Security, state))

	_, err = repo.UpdateSecurity(ctx, id, 1, lockout.SecurityState{}, false)
	require.ErrorIs(t, err, storage.ErrConflict)

	v, err = repo.UpdateSecurity(ctx, id, 2, lockout.SecurityState{NumberOfTimesLocked: 2}, false)
	require.NoError(t, err)
	require.Equal(t, int64(3), v)
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.False(t, got.Enabled)
}
