package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByCard(ctx context.Context, code string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error)
	// ListByPhoneSuffix returns patients whose phone digits end with suffix.
	ListByPhoneSuffix(ctx context.Context, suffix string) ([]*Patient, error)
	// ListByName returns patients whose normalized nom equals nom.
	ListByName(ctx context.Context, nom string) ([]*Patient, error)
}

type ZoneRepository interface {
	Create(ctx context.Context, z *Zone) error
	GetByID(ctx context.Context, id uuid.UUID) (*Zone, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Zone, error)
	Update(ctx context.Context, z *Zone) error
	Delete(ctx context.Context, id uuid.UUID) error
	// IncrementUsed adds one consumed session; the quota check constraint
	// rejects it once seances_total is reached.
	IncrementUsed(ctx context.Context, id uuid.UUID) error
}
