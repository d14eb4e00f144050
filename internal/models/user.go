package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleAdministrator UserRole = "Administrator"
	RoleManager       UserRole = "Manager"
	RoleProjectAdmin  UserRole = "Project Admin"
	RolePlanner       UserRole = "Planner"
	RoleSpreader      UserRole = "Spreader"
	RoleCutter        UserRole = "Cutter"
	RoleSubcontractor UserRole = "Subcontractor"
)

// SuperRoles bypass any allowed-roles list.
var SuperRoles = []UserRole{RoleAdministrator, RoleManager, RoleProjectAdmin}

// IsSuperRole reports whether role bypasses role-scoped checks.
func IsSuperRole(role UserRole) bool {
	for _, r := range SuperRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Valid reports whether role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdministrator, RoleManager, RoleProjectAdmin, RolePlanner,
		RoleSpreader, RoleCutter, RoleSubcontractor:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"` // Never expose in JSON
	Role         UserRole  `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserRequest is used for user creation requests
type UserRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Role     UserRole `json:"role"`
	IsActive bool     `json:"is_active"`
}

// SessionUser is the user shape returned by login
type SessionUser struct {
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}
