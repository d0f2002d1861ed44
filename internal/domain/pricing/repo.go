package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PackRepository interface {
	Create(ctx context.Context, p *Pack) error
	GetByID(ctx context.Context, id uuid.UUID) (*Pack, error)
	Update(ctx context.Context, p *Pack) error
	List(ctx context.Context, includeInactive bool) ([]*Pack, error)
}

type SubscriptionRepository interface {
	Create(ctx context.Context, s *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Subscription, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type PaiementRepository interface {
	Create(ctx context.Context, p *Paiement) error
	GetByID(ctx context.Context, id uuid.UUID) (*Paiement, error)
	List(ctx context.Context, f PaiementFilter, limit, offset int) ([]*Paiement, int, error)
	// Totals returns sums grouped by type and by mode over [from, to].
	Totals(ctx context.Context, from, to time.Time) (*PaymentStats, error)
}

type PromotionRepository interface {
	Create(ctx context.Context, p *Promotion) error
	GetByID(ctx context.Context, id uuid.UUID) (*Promotion, error)
	Update(ctx context.Context, p *Promotion) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, includeInactive bool) ([]*Promotion, error)
}
