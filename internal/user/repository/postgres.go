package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"sessionguard/internal/lockout"
	"sessionguard/internal/platform/storage"
	"sessionguard/internal/user/domain"
)

const uniqueViolation = "23505"

const userColumns = `id, username, enabled, invalid_login_attempts, locked, locked_until, number_of_times_locked, version, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Unavailable("users.get", err)
	}
	return u, nil
}

// GetByUsername returns the user with the given username, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Unavailable("users.get_by_username", err)
	}
	return u, nil
}

// Create persists the user with version 1. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, enabled, invalid_login_attempts, locked, locked_until, number_of_times_locked, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)`,
		u.ID,
		strings.ToLower(u.Username),
		u.Enabled,
		u.Security.InvalidLoginAttempts,
		u.Security.Locked,
		timeToNullTime(u.Security.LockedUntil),
		u.Security.NumberOfTimesLocked,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return storage.Unavailable("users.create", err)
	}
	u.Version = 1
	return nil
}

// UpdateSecurity writes the lockout columns in one statement guarded by the row version.
func (r *PostgresRepository) UpdateSecurity(ctx context.Context, id string, expectedVersion int64, state lockout.SecurityState, enabled bool) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET invalid_login_attempts = $3,
		    locked = $4,
		    locked_until = $5,
		    number_of_times_locked = $6,
		    enabled = $7,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING version`,
		id,
		expectedVersion,
		state.InvalidLoginAttempts,
		state.Locked,
		timeToNullTime(state.LockedUntil),
		state.NumberOfTimesLocked,
		enabled,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrConflict
		}
		return 0, storage.Unavailable("users.update_security", err)
	}
	return version, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u           domain.User
		lockedUntil sql.NullTime
	)
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Enabled,
		&u.Security.InvalidLoginAttempts,
		&u.Security.Locked,
		&lockedUntil,
		&u.Security.NumberOfTimesLocked,
		&u.Version,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Security.LockedUntil = nullTimeToPtr(lockedUntil)
	return &u, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}
