package zone

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validate(z *Definition) error {
	if z.Code == "" {
		return apperr.Validation("code is required")
	}
	if z.Nom == "" {
		return apperr.Validation("nom is required")
	}
	if z.Prix != nil && *z.Prix < 0 {
		return apperr.Validation("prix must be positive")
	}
	if z.DureeMinutes != nil && *z.DureeMinutes <= 0 {
		return apperr.Validation("duree_minutes must be positive")
	}
	if z.Categorie != nil && !Categories[*z.Categorie] {
		return apperr.Validationf("unknown categorie %q", *z.Categorie)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Definition, error) {
	z := &Definition{
		Code:         strings.ToLower(strings.TrimSpace(req.Code)),
		Nom:          strings.TrimSpace(req.Nom),
		Description:  req.Description,
		Ordre:        req.Ordre,
		Prix:         req.Prix,
		DureeMinutes: req.DureeMinutes,
		Categorie:    req.Categorie,
		IsHomme:      req.IsHomme,
		IsActive:     true,
	}
	if err := validate(z); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, z); err != nil {
		return nil, err
	}
	return z, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Definition, error) {
	return s.repo.GetByID(ctx, id)
}

// GetMany returns the definitions found among ids; unknown ids are absent.
func (s *Service) GetMany(ctx context.Context, ids []uuid.UUID) ([]*Definition, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.repo.GetMany(ctx, ids)
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]*Definition, error) {
	return s.repo.List(ctx, includeInactive)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Definition, error) {
	z, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Code != nil {
		z.Code = strings.ToLower(strings.TrimSpace(*req.Code))
	}
	if req.Nom != nil {
		z.Nom = strings.TrimSpace(*req.Nom)
	}
	if req.Description != nil {
		z.Description = req.Description
	}
	if req.Ordre != nil {
		z.Ordre = *req.Ordre
	}
	if req.Prix != nil {
		z.Prix = req.Prix
	}
	if req.DureeMinutes != nil {
		z.DureeMinutes = req.DureeMinutes
	}
	if req.Categorie != nil {
		z.Categorie = req.Categorie
	}
	if req.IsHomme != nil {
		z.IsHomme = *req.IsHomme
	}
	if req.IsActive != nil {
		z.IsActive = *req.IsActive
	}
	if err := validate(z); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, z); err != nil {
		return nil, err
	}
	return z, nil
}

// Delete deactivates the zone; definitions are never hard-deleted.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}
