package admin

import (
	"context"

	"github.com/google/uuid"
)

// RoleRepository defines the persistence interface for roles.
type RoleRepository interface {
	Create(ctx context.Context, r *Role) error
	GetByID(ctx context.Context, id uuid.UUID) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Role, error)
	CountUsers(ctx context.Context, roleID uuid.UUID) (int, error)
}

// UserRepository defines the persistence interface for staff accounts.
// Reads join the role so Permissions and RoleName are populated.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	ListActive(ctx context.Context) ([]*User, error)
}
