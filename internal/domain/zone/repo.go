package zone

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, z *Definition) error
	GetByID(ctx context.Context, id uuid.UUID) (*Definition, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*Definition, error)
	Update(ctx context.Context, z *Definition) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, includeInactive bool) ([]*Definition, error)
}
