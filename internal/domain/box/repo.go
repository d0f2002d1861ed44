package box

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, b *Box) error
	GetByID(ctx context.Context, id uuid.UUID) (*Box, error)
	Update(ctx context.Context, b *Box) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, includeInactive bool) ([]*Box, error)
}

type AssignmentRepository interface {
	// ForUser returns nil, nil when the user holds no box.
	ForUser(ctx context.Context, userID uuid.UUID) (*Assignment, error)
	// ForBox returns nil, nil when the box is free.
	ForBox(ctx context.Context, boxID uuid.UUID) (*Assignment, error)
	Create(ctx context.Context, a *Assignment) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (bool, error)
	List(ctx context.Context) ([]*Assignment, error)
}
