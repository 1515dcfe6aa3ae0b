package models

import "time"

// Student is a student record owned by the user who created it.
type Student struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Age       int       `db:"age" json:"age"`
	OwnerID   string    `db:"user_id" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins a student with its owning user's username.
type StudentDetail struct {
	Student
	OwnerUsername string `db:"owner_username" json:"owner_username"`
}

// StudentView is the API projection; the owner is visible to admins only.
type StudentView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Age           int    `json:"age"`
	OwnerUsername string `json:"owner_username,omitempty"`
}

// StudentRequest is the payload for creating or updating a student record.
type StudentRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Age   int    `json:"age" validate:"required,gte=1,lte=150"`
}

// StudentFilter captures search criteria for listing students.
type StudentFilter struct {
	Name          string
	MinAge        *int
	MaxAge        *int
	OwnerUsername string
	Page          int
	PageSize      int
}
