package session

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Session) error
	// GetByID returns the session with zone and practitioner names, without photos.
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error)
	// Last returns the most recent session on a patient zone.
	Last(ctx context.Context, patientID, patientZoneID uuid.UUID) (*Session, error)
	ZoneActivity(ctx context.Context, patientID uuid.UUID) ([]*ZoneActivity, error)
}

type PhotoRepository interface {
	Add(ctx context.Context, p *Photo) error
	Get(ctx context.Context, id uuid.UUID) (*Photo, error)
	// ListBySessions returns photos of every given session, oldest first.
	ListBySessions(ctx context.Context, sessionIDs []uuid.UUID) ([]*Photo, error)
}

type SideEffectRepository interface {
	Create(ctx context.Context, se *SideEffect) error
	AddPhoto(ctx context.Context, p *Photo) error
	GetPhoto(ctx context.Context, id uuid.UUID) (*Photo, error)
	// ListByPatient returns side effects newest first, with their photos.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*SideEffect, error)
}
