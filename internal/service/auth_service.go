package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/repository"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
)

// errUsernameTaken mirrors the signup contract: a taken username is a client
// mistake, not a conflict on an existing resource.
var errUsernameTaken = appErrors.New("USERNAME_TAKEN", http.StatusBadRequest, "username is already taken")

// userDirectory is the slice of the user repository the auth flow needs.
type userDirectory interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

// refreshTokenStore manages the single durable refresh credential per user.
type refreshTokenStore interface {
	Rotate(ctx context.Context, userID string, ttl time.Duration) (*models.RefreshToken, error)
	FindByValue(ctx context.Context, value string) (*models.RefreshToken, error)
	CheckLive(ctx context.Context, token *models.RefreshToken) (bool, error)
	DeleteByValue(ctx context.Context, value string) error
}

// revocationList records access tokens that must stop working before expiry.
type revocationList interface {
	Revoke(ctx context.Context, key string, ttl time.Duration) error
}

// Session is the result of a successful login or refresh: a signed access
// token plus the rotated refresh credential.
type Session struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    *models.RefreshToken
}

// AuthConfig carries the tunables of the session lifecycle.
type AuthConfig struct {
	RefreshTTL time.Duration
}

// AuthService drives the credential lifecycle: login, refresh rotation,
// logout revocation, and account signup.
type AuthService struct {
	users         userDirectory
	refreshTokens refreshTokenStore
	revocations   revocationList
	tokens        *TokenService
	validate      *validator.Validate
	logger        *zap.Logger
	refreshTTL    time.Duration
}

// NewAuthService wires the auth service with its collaborators.
func NewAuthService(
	users userDirectory,
	refreshTokens refreshTokenStore,
	revocations revocationList,
	tokens *TokenService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AuthConfig,
) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		users:         users,
		refreshTokens: refreshTokens,
		revocations:   revocations,
		tokens:        tokens,
		validate:      validate,
		logger:        logger,
		refreshTTL:    refreshTTL,
	}
}

// Login verifies the credentials and opens a fresh session. A wrong username
// and a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, req models.AuthRequest) (*Session, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "username and password are required")
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "look up account")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session opened", zap.String("username", user.Username))
	return session, nil
}

// Refresh exchanges a live refresh credential for a new session. The old
// credential stops working the moment rotation commits. Every failure mode
// collapses to the same rejection.
func (s *AuthService) Refresh(ctx context.Context, refreshValue string) (*Session, error) {
	if refreshValue == "" {
		return nil, appErrors.ErrRefreshRejected
	}

	record, err := s.refreshTokens.FindByValue(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRefreshRejected
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "look up refresh token")
	}

	live, err := s.refreshTokens.CheckLive(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check refresh token")
	}
	if !live {
		return nil, appErrors.ErrRefreshRejected
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Owner vanished since the token was issued.
			return nil, appErrors.ErrRefreshRejected
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "look up account")
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session refreshed", zap.String("username", user.Username))
	return session, nil
}

// Logout revokes the presented access token for its remaining lifetime and
// discards the refresh credential if one was presented. Repeating a logout is
// harmless.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshValue string) error {
	remaining := s.tokens.RemainingLifetime(accessToken)
	key := s.tokens.RevocationKey(accessToken)
	if err := s.revocations.Revoke(ctx, key, remaining); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "revoke access token")
	}

	if refreshValue != "" {
		if err := s.refreshTokens.DeleteByValue(ctx, refreshValue); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "discard refresh token")
		}
	}

	s.logger.Info("session closed", zap.Duration("revoked_for", remaining))
	return nil
}

// Signup registers a new account. Requested roles are normalised to the known
// set; an empty request defaults to a plain user.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup request")
	}

	exists, err := s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check username")
	}
	if exists {
		return nil, errUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "hash password")
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Roles:        pq.StringArray(normaliseRoles(req.Roles)),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, errUsernameTaken
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create account")
	}

	s.logger.Info("account registered", zap.String("username", user.Username), zap.Strings("roles", user.Roles))
	return user, nil
}

func (s *AuthService) openSession(ctx context.Context, user *models.User) (*Session, error) {
	access, expiresAt, err := s.tokens.Issue(user.Username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "issue access token")
	}

	refresh, err := s.refreshTokens.Rotate(ctx, user.ID, s.refreshTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rotate refresh token")
	}

	return &Session{
		AccessToken:     access,
		AccessExpiresAt: expiresAt,
		RefreshToken:    refresh,
	}, nil
}

func normaliseRoles(requested []string) []string {
	if len(requested) == 0 {
		return []string{models.RoleUser}
	}
	var roles []string
	for _, r := range requested {
		switch strings.ToUpper(strings.TrimSpace(r)) {
		case models.RoleAdmin:
			roles = appendUnique(roles, models.RoleAdmin)
		case models.RoleUser:
			roles = appendUnique(roles, models.RoleUser)
		}
	}
	if len(roles) == 0 {
		return []string{models.RoleUser}
	}
	return roles
}

func appendUnique(roles []string, role string) []string {
	for _, r := range roles {
		if r == role {
			return roles
		}
	}
	return append(roles, role)
}
