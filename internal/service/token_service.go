package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/student-records-api/internal/models"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
)

// revocationKeyPrefix namespaces denylist entries in the shared cache.
const revocationKeyPrefix = "revoked:access:"

// minSecretBytes mirrors the startup gate in pkg/config; the service refuses
// to construct with a weaker key so tests cannot sidestep the check.
const minSecretBytes = 32

// TokenConfig configures the access token issuer.
type TokenConfig struct {
	Secret    string
	AccessTTL time.Duration
}

// TokenService signs and verifies self-contained access tokens. A single
// static HS256 key signs everything for the process lifetime; there is no
// key rotation or multi-key verification.
type TokenService struct {
	secret    []byte
	accessTTL time.Duration
	parser    *jwt.Parser
}

// NewTokenService validates the key material and builds the issuer.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretBytes)
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive")
	}
	return &TokenService{
		secret:    []byte(cfg.Secret),
		accessTTL: cfg.AccessTTL,
		parser:    jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// Issue mints a signed access token for the subject using the default TTL.
func (s *TokenService) Issue(subject string) (string, time.Time, error) {
	return s.IssueWithTTL(subject, s.accessTTL)
}

// IssueWithTTL mints a signed access token with an explicit lifetime. Each
// token carries a fresh random jti used as its revocation identifier.
func (s *TokenService) IssueWithTTL(subject string, ttl time.Duration) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(ttl)

	claims := &models.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature integrity and expiry. Every failure mode collapses
// to ErrInvalidToken so callers cannot distinguish why a token was rejected.
func (s *TokenService) Verify(tokenString string) (*models.AccessClaims, error) {
	token, err := s.parser.ParseWithClaims(tokenString, &models.AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, appErrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*models.AccessClaims)
	if !ok || !token.Valid {
		return nil, appErrors.ErrInvalidToken
	}

	return claims, nil
}

// ExtractID returns the jti of a structurally valid token without verifying
// its signature. Empty when the token cannot be parsed at all.
func (s *TokenService) ExtractID(tokenString string) string {
	claims := s.parseUnverified(tokenString)
	if claims == nil {
		return ""
	}
	return claims.ID
}

// ExtractExpiry returns the embedded expiry without signature verification.
func (s *TokenService) ExtractExpiry(tokenString string) (time.Time, bool) {
	claims := s.parseUnverified(tokenString)
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// RemainingLifetime reports how long the token would stay valid, floored at
// zero. Unparseable tokens report zero.
func (s *TokenService) RemainingLifetime(tokenString string) time.Duration {
	exp, ok := s.ExtractExpiry(tokenString)
	if !ok {
		return 0
	}
	remaining := time.Until(exp)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RevocationKey derives the denylist key for a raw token string: the jti when
// available, otherwise a deterministic fingerprint of the raw string. The
// fallback is defense-in-depth, not a security boundary; a collision only
// treats an unrelated token as revoked.
func (s *TokenService) RevocationKey(tokenString string) string {
	if id := s.ExtractID(tokenString); id != "" {
		return revocationKeyPrefix + id
	}
	return revocationKeyPrefix + fingerprint(tokenString)
}

func (s *TokenService) parseUnverified(tokenString string) *models.AccessClaims {
	claims := &models.AccessClaims{}
	if _, _, err := s.parser.ParseUnverified(tokenString, claims); err != nil {
		return nil
	}
	return claims
}

func fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}
