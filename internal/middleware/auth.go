package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/service"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
	"github.com/noah-isme/student-records-api/pkg/response"
)

// ContextIdentityKey is the gin context key storing the resolved caller.
const ContextIdentityKey = "currentIdentity"

// revocationCheckTimeout bounds the per-request denylist lookup. A slow cache
// must not stall every request; the request proceeds anonymously instead.
const revocationCheckTimeout = 500 * time.Millisecond

// RevocationChecker answers whether a denylist key is present.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, key string) (bool, error)
}

// UserFinder resolves a username to an account.
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Authenticate resolves the caller from the Authorization header. It never
// blocks a request: any failure, from a malformed header to an unreachable
// revocation cache, leaves the request anonymous and lets the route decide.
// A token on the revocation list is treated exactly like an invalid one.
func Authenticate(
	tokens *service.TokenService,
	revocations RevocationChecker,
	users UserFinder,
	metrics *service.MetricsService,
	logger *zap.Logger,
) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		raw, ok := BearerToken(c)
		if !ok {
			c.Next()
			return
		}

		checkCtx, cancel := context.WithTimeout(c.Request.Context(), revocationCheckTimeout)
		revoked, err := revocations.IsRevoked(checkCtx, tokens.RevocationKey(raw))
		cancel()
		if err != nil {
			// Fail closed: an unanswerable check rejects the credential.
			metrics.RecordRevocationCheck(service.RevocationOutcomeError)
			logger.Warn("revocation check failed, treating token as invalid", zap.Error(err))
			c.Next()
			return
		}
		if revoked {
			metrics.RecordRevocationCheck(service.RevocationOutcomeRevoked)
			c.Next()
			return
		}
		metrics.RecordRevocationCheck(service.RevocationOutcomeClear)

		claims, err := tokens.Verify(raw)
		if err != nil {
			c.Next()
			return
		}

		user, err := users.FindByUsername(c.Request.Context(), claims.Subject)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextIdentityKey, &models.Identity{User: user, Claims: claims})
		c.Next()
	}
}

// RequireAuth blocks anonymous requests.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IdentityFrom(c) == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRoles blocks callers lacking every listed role.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, role := range roles {
			if identity.HasRole(role) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// IdentityFrom returns the resolved caller, or nil for anonymous requests.
func IdentityFrom(c *gin.Context) *models.Identity {
	value, exists := c.Get(ContextIdentityKey)
	if !exists {
		return nil
	}
	identity, ok := value.(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}

// BearerToken extracts the bearer credential from the Authorization header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
