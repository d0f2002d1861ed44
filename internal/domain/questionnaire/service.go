package questionnaire

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
)

type Service struct {
	repo Repository
	tx   db.TxRunner
}

func NewService(repo Repository, tx db.TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

func validate(q *Question) error {
	if strings.TrimSpace(q.Texte) == "" {
		return apperr.Validation("texte is required")
	}
	if !validTypes[q.TypeReponse] {
		return apperr.Validationf("unknown type_reponse %q", q.TypeReponse)
	}
	if q.hasOptions() && len(q.Options) == 0 {
		return apperr.Validation("choice questions need options")
	}
	if !q.hasOptions() {
		q.Options = []string{}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Question, error) {
	q := &Question{
		Texte:       strings.TrimSpace(req.Texte),
		TypeReponse: req.TypeReponse,
		Options:     req.Options,
		IsRequired:  req.IsRequired,
		IsActive:    true,
	}
	if err := validate(q); err != nil {
		return nil, err
	}
	if req.Ordre != nil {
		q.Ordre = *req.Ordre
	} else {
		last, err := s.repo.MaxOrdre(ctx)
		if err != nil {
			return nil, err
		}
		q.Ordre = last + 1
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Question, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Question, error) {
	return s.repo.List(ctx, activeOnly)
}

// Active returns the questions currently asked, in display order.
func (s *Service) Active(ctx context.Context) ([]*Question, error) {
	return s.repo.List(ctx, true)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Question, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Texte != nil {
		q.Texte = strings.TrimSpace(*req.Texte)
	}
	if req.TypeReponse != nil {
		q.TypeReponse = *req.TypeReponse
	}
	if req.Options != nil {
		q.Options = req.Options
	}
	if req.Ordre != nil {
		q.Ordre = *req.Ordre
	}
	if req.IsRequired != nil {
		q.IsRequired = *req.IsRequired
	}
	if req.IsActive != nil {
		q.IsActive = *req.IsActive
	}
	if err := validate(q); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Reorder assigns ordre = position+1 to each id, all or nothing.
func (s *Service) Reorder(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return apperr.Validation("ids is required")
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return apperr.Validationf("duplicate id %s", id)
		}
		seen[id] = true
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i, id := range ids {
			if err := s.repo.SetOrdre(ctx, id, i+1); err != nil {
				return err
			}
		}
		return nil
	})
}
