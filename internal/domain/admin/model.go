package admin

import (
	"time"

	"github.com/google/uuid"

	"github.com/lasercare/clinic/internal/platform/auth"
)

// System role names seeded at startup.
const (
	RoleAdmin      = "admin"
	RoleDoctor     = "medecin"
	RoleSecretary  = "secretaire"
	minPasswordLen = 8
)

// Role groups a set of permission codes. System roles are seeded and cannot
// be renamed, re-permissioned or deleted.
type Role struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Permissions []string  `db:"permissions" json:"permissions"`
	IsSystem    bool      `db:"is_system" json:"is_system"`
	UserCount   int       `db:"-" json:"user_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// User is a staff account. Inactive users cannot log in but stay referenced
// by historical sessions.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Nom          string    `db:"nom" json:"nom"`
	Prenom       string    `db:"prenom" json:"prenom"`
	RoleID       uuid.UUID `db:"role_id" json:"role_id"`
	RoleName     string    `db:"role_name" json:"role_name"`
	Permissions  []string  `db:"permissions" json:"permissions"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FullName is "prenom nom".
func (u *User) FullName() string {
	cu := auth.CurrentUser{Nom: u.Nom, Prenom: u.Prenom}
	return cu.FullName()
}

// ToCurrentUser projects the user onto the principal carried by requests.
func (u *User) ToCurrentUser() *auth.CurrentUser {
	return &auth.CurrentUser{
		ID:          u.ID,
		Username:    u.Username,
		Nom:         u.Nom,
		Prenom:      u.Prenom,
		RoleName:    u.RoleName,
		Permissions: u.Permissions,
		IsActive:    u.IsActive,
	}
}

type CreateUserRequest struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	Nom      string    `json:"nom"`
	Prenom   string    `json:"prenom"`
	RoleID   uuid.UUID `json:"role_id"`
	IsActive *bool     `json:"is_active"`
}

// UpdateUserRequest is partial; nil fields are left unchanged.
type UpdateUserRequest struct {
	Nom      *string    `json:"nom"`
	Prenom   *string    `json:"prenom"`
	RoleID   *uuid.UUID `json:"role_id"`
	IsActive *bool      `json:"is_active"`
	Password *string    `json:"password"`
}

type RoleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresIn   int               `json:"expires_in"`
	User        *auth.CurrentUser `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
