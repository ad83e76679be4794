package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sessionguard/internal/platform/storage"
	"sessionguard/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByToken returns the session for token, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, device_id, expiration_date
		FROM sessions
		WHERE token = $1`, token)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Unavailable("sessions.get", err)
	}
	return s, nil
}

// Upsert inserts or refreshes the (user_id, device_id) slot in one statement.
func (r *PostgresRepository) Upsert(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (token, user_id, device_id, expiration_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, device_id) DO UPDATE
		SET token = EXCLUDED.token,
		    expiration_date = EXCLUDED.expiration_date
		RETURNING token, user_id, device_id, expiration_date`,
		s.Token, s.UserID, s.DeviceID, s.ExpirationDate)
	stored, err := scanSession(row)
	if err != nil {
		return nil, storage.Unavailable("sessions.upsert", err)
	}
	return stored, nil
}

// DeleteByToken deletes the session for token and returns it, or nil if there was none.
func (r *PostgresRepository) DeleteByToken(ctx context.Context, token string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		DELETE FROM sessions
		WHERE token = $1
		RETURNING token, user_id, device_id, expiration_date`, token)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Unavailable("sessions.delete", err)
	}
	return s, nil
}

// DeleteByUser deletes all sessions for userID.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	return r.exec(ctx, "sessions.delete_by_user", `DELETE FROM sessions WHERE user_id = $1`, userID)
}

// DeleteByDevice deletes all sessions bound to deviceID.
func (r *PostgresRepository) DeleteByDevice(ctx context.Context, deviceID string) (int, error) {
	return r.exec(ctx, "sessions.delete_by_device", `DELETE FROM sessions WHERE device_id = $1`, deviceID)
}

// DeleteExpired deletes sessions whose expiration_date is at or before cutoff.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	return r.exec(ctx, "sessions.delete_expired", `DELETE FROM sessions WHERE expiration_date <= $1`, cutoff)
}

func (r *PostgresRepository) exec(ctx context.Context, op, query string, args ...any) (int, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storage.Unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storage.Unavailable(op, err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	if err := row.Scan(&s.Token, &s.UserID, &s.DeviceID, &s.ExpirationDate); err != nil {
		return nil, err
	}
	s.ExpirationDate = s.ExpirationDate.UTC()
	return &s, nil
}
