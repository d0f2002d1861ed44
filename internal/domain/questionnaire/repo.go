package questionnaire

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, q *Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*Question, error)
	Update(ctx context.Context, q *Question) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool) ([]*Question, error)
	MaxOrdre(ctx context.Context) (int, error)
	SetOrdre(ctx context.Context, id uuid.UUID, ordre int) error
}
