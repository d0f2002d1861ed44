package preconsultation

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, pc *PreConsultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*PreConsultation, error)
	// GetForUpdate reads and row-locks a pre-consultation until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*PreConsultation, error)
	Update(ctx context.Context, pc *PreConsultation) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*PreConsultation, int, error)
	// LatestForPatient returns the most recent pre-consultation linked to
	// the patient.
	LatestForPatient(ctx context.Context, patientID uuid.UUID) (*PreConsultation, error)
}

type ZoneRepository interface {
	Add(ctx context.Context, z *Zone) error
	Get(ctx context.Context, preConsultationID, zoneID uuid.UUID) (*Zone, error)
	Update(ctx context.Context, z *Zone) error
	Delete(ctx context.Context, preConsultationID, zoneID uuid.UUID) error
	List(ctx context.Context, preConsultationID uuid.UUID) ([]*Zone, error)
}

type ResponseRepository interface {
	Upsert(ctx context.Context, preConsultationID, questionID uuid.UUID, reponse json.RawMessage) error
	List(ctx context.Context, preConsultationID uuid.UUID) ([]*Response, error)
}
