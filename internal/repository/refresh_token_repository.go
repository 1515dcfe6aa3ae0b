package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/student-records-api/internal/models"
)

const uniqueViolationCode = "23505"

// ErrTokenCollision reports a refresh token value collision on insert. With
// 256-bit values this indicates broken entropy, so it is surfaced as a fatal
// storage error rather than retried.
var ErrTokenCollision = errors.New("refresh token value collision")

// RefreshTokenRepository manages the single durable refresh credential kept
// per user.
type RefreshTokenRepository struct {
	db      *sqlx.DB
	metrics QueryObserver
}

// NewRefreshTokenRepository constructs a RefreshTokenRepository. A nil
// observer disables query timing.
func NewRefreshTokenRepository(db *sqlx.DB, metrics QueryObserver) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, metrics: metrics}
}

// Rotate atomically replaces every refresh token owned by the user with a
// freshly generated one. The delete and insert share one transaction, so the
// store never holds two live rows for a user once the call returns.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, userID string, ttl time.Duration) (*models.RefreshToken, error) {
	defer observe(r.metrics, "refresh_rotate", time.Now())

	value, err := generateTokenValue()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	token := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rotate: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("delete previous refresh tokens: %w", err)
	}

	const insert = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at) VALUES (:id, :user_id, :token, :expires_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, token); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return nil, fmt.Errorf("insert refresh token: %w", ErrTokenCollision)
		}
		return nil, fmt.Errorf("insert refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rotate: %w", err)
	}
	return token, nil
}

// FindByValue returns the refresh token row for the opaque value.
func (r *RefreshTokenRepository) FindByValue(ctx context.Context, value string) (*models.RefreshToken, error) {
	defer observe(r.metrics, "refresh_find_by_value", time.Now())

	const query = `SELECT id, user_id, token, expires_at, created_at FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var token models.RefreshToken
	if err := r.db.GetContext(ctx, &token, query, value); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &token, nil
}

// CheckLive reports whether the record is still usable. Expired records are
// deleted on the spot; DeleteExpired sweeps the rest in the background.
func (r *RefreshTokenRepository) CheckLive(ctx context.Context, token *models.RefreshToken) (bool, error) {
	if time.Now().UTC().Before(token.ExpiresAt) {
		return true, nil
	}
	if err := r.DeleteByValue(ctx, token.Token); err != nil {
		return false, err
	}
	return false, nil
}

// DeleteByValue removes the row if present; absence is not an error.
func (r *RefreshTokenRepository) DeleteByValue(ctx context.Context, value string) error {
	defer observe(r.metrics, "refresh_delete_by_value", time.Now())

	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, value); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteExpired sweeps rows whose expiry has passed and reports how many
// were removed. Rows already reaped lazily by CheckLive are simply absent.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	defer observe(r.metrics, "refresh_delete_expired", time.Now())

	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return affected, nil
}

// DeleteForUser removes every refresh token the user owns.
func (r *RefreshTokenRepository) DeleteForUser(ctx context.Context, userID string) error {
	defer observe(r.metrics, "refresh_delete_for_user", time.Now())

	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete refresh tokens for user: %w", err)
	}
	return nil
}

// generateTokenValue returns 32 bytes of CSPRNG output, base64url encoded.
func generateTokenValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
