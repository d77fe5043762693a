package models

import "time"

// UserRole represents the portal roles used by the capability table.
type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RolePrincipal   UserRole = "principal"
	RolePAPrincipal UserRole = "pa_principal"
	RoleDeanIQAC    UserRole = "dean_iqac"
	RoleHOD         UserRole = "hod"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}
