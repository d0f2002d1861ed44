package preconsultation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Workflow statuses.
const (
	StatusDraft             = "draft"
	StatusPendingValidation = "pending_validation"
	StatusValidated         = "validated"
	StatusRejected          = "rejected"
	StatusPatientCreated    = "patient_created"
)

var validStatuses = map[string]bool{
	StatusDraft: true, StatusPendingValidation: true, StatusValidated: true,
	StatusRejected: true, StatusPatientCreated: true,
}

// DefaultSeancesPerZone is the quota given to promoted zones when the
// request does not name one.
const DefaultSeancesPerZone = 6

type PreConsultation struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`

	Sexe          string     `db:"sexe" json:"sexe"`
	Age           int        `db:"age" json:"age"`
	DateNaissance *time.Time `db:"date_naissance" json:"date_naissance,omitempty"`
	StatutMarital *string    `db:"statut_marital" json:"statut_marital,omitempty"`

	IsPregnant        bool `db:"is_pregnant" json:"is_pregnant"`
	IsBreastfeeding   bool `db:"is_breastfeeding" json:"is_breastfeeding"`
	PregnancyPlanning bool `db:"pregnancy_planning" json:"pregnancy_planning"`

	HasPreviousLaser         bool            `db:"has_previous_laser" json:"has_previous_laser"`
	PreviousLaserClarityII   bool            `db:"previous_laser_clarity_ii" json:"previous_laser_clarity_ii"`
	PreviousLaserSessions    *int            `db:"previous_laser_sessions" json:"previous_laser_sessions,omitempty"`
	PreviousLaserBrand       *string         `db:"previous_laser_brand" json:"previous_laser_brand,omitempty"`
	HairRemovalMethods       []string        `db:"hair_removal_methods" json:"hair_removal_methods"`
	MedicalHistory           map[string]bool `db:"medical_history" json:"medical_history"`
	DermatologicalConditions []string        `db:"dermatological_conditions" json:"dermatological_conditions"`
	HasCurrentTreatments     bool            `db:"has_current_treatments" json:"has_current_treatments"`
	CurrentTreatmentsDetails *string         `db:"current_treatments_details" json:"current_treatments_details,omitempty"`

	HasMoles            bool       `db:"has_moles" json:"has_moles"`
	MolesLocation       *string    `db:"moles_location" json:"moles_location,omitempty"`
	HasBirthmarks       bool       `db:"has_birthmarks" json:"has_birthmarks"`
	BirthmarksLocation  *string    `db:"birthmarks_location" json:"birthmarks_location,omitempty"`
	RecentPeeling       bool       `db:"recent_peeling" json:"recent_peeling"`
	RecentPeelingDate   *time.Time `db:"recent_peeling_date" json:"recent_peeling_date,omitempty"`
	PeelingZone         *string    `db:"peeling_zone" json:"peeling_zone,omitempty"`
	Phototype           *string    `db:"phototype" json:"phototype,omitempty"`
	LastLaserDate       *time.Time `db:"last_laser_date" json:"last_laser_date,omitempty"`
	LastHairRemovalDate *time.Time `db:"last_hair_removal_date" json:"last_hair_removal_date,omitempty"`

	Status          string     `db:"status" json:"status"`
	CreatedBy       *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	ValidatedBy     *uuid.UUID `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedAt     *time.Time `db:"validated_at" json:"validated_at,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	Zones []*Zone `db:"-" json:"zones"`
}

// Zone is the doctor's eligibility verdict on one zone definition.
type Zone struct {
	ID                uuid.UUID `db:"id" json:"id"`
	PreConsultationID uuid.UUID `db:"pre_consultation_id" json:"pre_consultation_id"`
	ZoneID            uuid.UUID `db:"zone_id" json:"zone_id"`
	ZoneNom           string    `db:"nom" json:"zone_nom"`
	IsEligible        bool      `db:"is_eligible" json:"is_eligible"`
	Observations      *string   `db:"observations" json:"observations,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Response is a stored questionnaire answer.
type Response struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	PreConsultationID uuid.UUID       `db:"pre_consultation_id" json:"pre_consultation_id"`
	QuestionID        uuid.UUID       `db:"question_id" json:"question_id"`
	Reponse           json.RawMessage `db:"reponse" json:"reponse"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Fields is the editable medical content shared by create and update.
// Nil pointers leave the stored value unchanged.
type Fields struct {
	Sexe          *string `json:"sexe"`
	Age           *int    `json:"age"`
	DateNaissance *string `json:"date_naissance"`
	StatutMarital *string `json:"statut_marital"`

	IsPregnant        *bool `json:"is_pregnant"`
	IsBreastfeeding   *bool `json:"is_breastfeeding"`
	PregnancyPlanning *bool `json:"pregnancy_planning"`

	HasPreviousLaser         *bool           `json:"has_previous_laser"`
	PreviousLaserClarityII   *bool           `json:"previous_laser_clarity_ii"`
	PreviousLaserSessions    *int            `json:"previous_laser_sessions"`
	PreviousLaserBrand       *string         `json:"previous_laser_brand"`
	HairRemovalMethods       []string        `json:"hair_removal_methods"`
	MedicalHistory           map[string]bool `json:"medical_history"`
	DermatologicalConditions []string        `json:"dermatological_conditions"`
	HasCurrentTreatments     *bool           `json:"has_current_treatments"`
	CurrentTreatmentsDetails *string         `json:"current_treatments_details"`

	HasMoles            *bool   `json:"has_moles"`
	MolesLocation       *string `json:"moles_location"`
	HasBirthmarks       *bool   `json:"has_birthmarks"`
	BirthmarksLocation  *string `json:"birthmarks_location"`
	RecentPeeling       *bool   `json:"recent_peeling"`
	RecentPeelingDate   *string `json:"recent_peeling_date"`
	PeelingZone         *string `json:"peeling_zone"`
	Phototype           *string `json:"phototype"`
	LastLaserDate       *string `json:"last_laser_date"`
	LastHairRemovalDate *string `json:"last_hair_removal_date"`

	Notes *string `json:"notes"`
}

// CreateRequest opens a draft. The patient link is only ever set by
// promotion.
type CreateRequest struct {
	Fields
	Zones []ZoneInput `json:"zones"`
}

type UpdateRequest struct {
	Fields
}

type ZoneInput struct {
	ZoneID       uuid.UUID `json:"zone_id"`
	IsEligible   *bool     `json:"is_eligible"`
	Observations *string   `json:"observations"`
}

type ZoneUpdateRequest struct {
	IsEligible   *bool   `json:"is_eligible"`
	Observations *string `json:"observations"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

// CreatePatientRequest promotes a validated pre-consultation. Sexe and
// phototype are taken from the evaluation itself.
type CreatePatientRequest struct {
	Nom            string      `json:"nom"`
	Prenom         string      `json:"prenom"`
	CodeCarte      string      `json:"code_carte"`
	DateNaissance  *string     `json:"date_naissance"`
	Telephone      *string     `json:"telephone"`
	Email          *string     `json:"email"`
	Adresse        *string     `json:"adresse"`
	Commune        *string     `json:"commune"`
	Wilaya         *string     `json:"wilaya"`
	Notes          *string     `json:"notes"`
	ZoneIDs        []uuid.UUID `json:"zone_ids"`
	SeancesPerZone int         `json:"seances_per_zone"`
}

type ResponseInput struct {
	QuestionID uuid.UUID       `json:"question_id"`
	Reponse    json.RawMessage `json:"reponse"`
}

type ResponsesRequest struct {
	Responses []ResponseInput `json:"responses"`
}

// Questionnaire is the answered state of a pre-consultation.
type Questionnaire struct {
	Responses        []*Response `json:"responses"`
	RequiredCount    int         `json:"required_count"`
	AnsweredRequired int         `json:"answered_required"`
	IsComplete       bool        `json:"is_complete"`
}

type ListFilter struct {
	Status    string
	PatientID *uuid.UUID
}
