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
	"sessionguard/internal/session/domain"
)

func setupSessionTestDB(t *testing.T) *PostgresRepository {
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

func TestPostgresRepository_Contract(t *testing.T) {
	testRepositoryContract(t, setupSessionTestDB(t))
}

func TestPostgresRepository_DeleteExpired(t *testing.T) {
	repo := setupSessionTestDB(t)
	ctx := context.Background()

	userID := uuid.NewString()
	past := time.Now().UTC().Add(-time.Hour)
	_, err := repo.Upsert(ctx, &domain.Session{Token: uuid.NewString(), UserID: userID, ExpirationDate: past})
	require.NoError(t, err)

	n, err := repo.DeleteExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)

	count, err := repo.DeleteByUser(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
