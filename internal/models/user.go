package models

import (
	"time"

	"github.com/lib/pq"
)

// Role names used for authorization decisions.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// User represents an application account stored in the users table.
type User struct {
	ID           string         `db:"id" json:"id"`
	Username     string         `db:"username" json:"username"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Roles        pq.StringArray `db:"roles" json:"roles"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// UserSummary is the admin-facing projection of a user.
type UserSummary struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// PageResponse is the paging envelope used by listing endpoints.
type PageResponse struct {
	Content       interface{} `json:"content"`
	Page          int         `json:"page"`
	Size          int         `json:"size"`
	TotalElements int         `json:"totalElements"`
	TotalPages    int         `json:"totalPages"`
}

// NewPageResponse assembles a page envelope from a slice and counts.
func NewPageResponse(content interface{}, page, size, total int) PageResponse {
	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}
	return PageResponse{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
	}
}
