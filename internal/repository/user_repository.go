package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/student-records-api/internal/models"
)

// ErrUsernameTaken reports a duplicate username on account creation.
var ErrUsernameTaken = errors.New("username already taken")

// UserRepository provides database access to the user directory.
type UserRepository struct {
	db      *sqlx.DB
	metrics QueryObserver
}

// NewUserRepository creates a new instance of UserRepository. A nil observer
// disables query timing.
func NewUserRepository(db *sqlx.DB, metrics QueryObserver) *UserRepository {
	return &UserRepository{db: db, metrics: metrics}
}

// FindByUsername returns a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	defer observe(r.metrics, "user_find_by_username", time.Now())

	const query = `SELECT id, username, password_hash, roles, created_at FROM users WHERE username = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	defer observe(r.metrics, "user_find_by_id", time.Now())

	const query = `SELECT id, username, password_hash, roles, created_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ExistsByUsername reports whether the username is already registered.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	defer observe(r.metrics, "user_exists_by_username", time.Now())

	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, username); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// Create inserts a new user account.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	defer observe(r.metrics, "user_create", time.Now())

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO users (id, username, password_hash, roles, created_at) VALUES (:id, :username, :password_hash, :roles, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// List returns a page of users ordered by creation time, plus the total count.
func (r *UserRepository) List(ctx context.Context, page, size int) ([]models.User, int, error) {
	defer observe(r.metrics, "user_list", time.Now())

	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := page * size

	query := fmt.Sprintf(`SELECT id, username, password_hash, roles, created_at FROM users ORDER BY created_at ASC LIMIT %d OFFSET %d`, size, offset)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}
