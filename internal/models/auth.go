package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// AuthRequest holds credentials for authenticating a user.
type AuthRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse returns the issued access token.
type AuthResponse struct {
	JWT string `json:"jwt"`
}

// SignupRequest registers a new account.
type SignupRequest struct {
	Username string   `json:"username" validate:"required,min=3"`
	Password string   `json:"password" validate:"required,min=6"`
	Roles    []string `json:"roles"`
}

// MessageResponse carries a human-readable status message.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccessClaims is the JWT payload for access tokens. The registered ID claim
// (jti) doubles as the revocation-list key component.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// Identity is the resolved caller placed on the request context by the
// authentication middleware. A request without one is anonymous.
type Identity struct {
	User   *User
	Claims *AccessClaims
}

// HasRole reports whether the identity carries the given role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	return i.User.HasRole(role)
}
