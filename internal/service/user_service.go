package service

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-records-api/internal/models"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
)

// userLister is the slice of the user repository the admin views need.
type userLister interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context, page, size int) ([]models.User, int, error)
}

// SeedAdmin describes the bootstrap administrator account.
type SeedAdmin struct {
	Username string
	Password string
}

// UserService exposes the admin-facing user directory operations and the
// startup seed.
type UserService struct {
	users  userLister
	logger *zap.Logger
}

// NewUserService wires the user service.
func NewUserService(users userLister, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, logger: logger}
}

// EnsureDefaultAdmin creates the bootstrap admin on first start. Subsequent
// starts find the account and do nothing, so the call is safe to repeat.
func (s *UserService) EnsureDefaultAdmin(ctx context.Context, seed SeedAdmin) error {
	if seed.Username == "" || seed.Password == "" {
		return nil
	}

	exists, err := s.users.ExistsByUsername(ctx, seed.Username)
	if err != nil {
		return fmt.Errorf("check seed admin: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	admin := &models.User{
		Username:     seed.Username,
		PasswordHash: string(hash),
		Roles:        pq.StringArray{models.RoleAdmin, models.RoleUser},
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create seed admin: %w", err)
	}

	s.logger.Info("seed admin created", zap.String("username", seed.Username))
	return nil
}

// ListAll returns every registered user as an admin summary.
func (s *UserService) ListAll(ctx context.Context) ([]models.UserSummary, error) {
	users, _, err := s.users.List(ctx, 0, 100)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list users")
	}
	return summarise(users), nil
}

// ListPage returns one page of users in the standard paging envelope.
func (s *UserService) ListPage(ctx context.Context, page, size int) (*models.PageResponse, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	users, total, err := s.users.List(ctx, page, size)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list users")
	}
	resp := models.NewPageResponse(summarise(users), page, size, total)
	return &resp, nil
}

func summarise(users []models.User) []models.UserSummary {
	summaries := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, models.UserSummary{
			ID:       u.ID,
			Username: u.Username,
			Roles:    u.Roles,
		})
	}
	return summaries
}
