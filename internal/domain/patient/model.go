package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient statuses.
const (
	StatusPending    = "en_attente_evaluation"
	StatusActive     = "actif"
	StatusIneligible = "ineligible"
)

var validStatuses = map[string]bool{StatusPending: true, StatusActive: true, StatusIneligible: true}

var validPhototypes = map[string]bool{"I": true, "II": true, "III": true, "IV": true, "V": true, "VI": true}

type Patient struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	CodeCarte     string     `db:"code_carte" json:"code_carte"`
	Nom           string     `db:"nom" json:"nom"`
	Prenom        string     `db:"prenom" json:"prenom"`
	DateNaissance *time.Time `db:"date_naissance" json:"date_naissance,omitempty"`
	Sexe          *string    `db:"sexe" json:"sexe,omitempty"`
	Telephone     *string    `db:"telephone" json:"telephone,omitempty"`
	Email         *string    `db:"email" json:"email,omitempty"`
	Adresse       *string    `db:"adresse" json:"adresse,omitempty"`
	Commune       *string    `db:"commune" json:"commune,omitempty"`
	Wilaya        *string    `db:"wilaya" json:"wilaya,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	Phototype     *string    `db:"phototype" json:"phototype,omitempty"`
	Status        string     `db:"status" json:"status"`
	CreatedBy     *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.Prenom + " " + p.Nom
}

// Phone returns the telephone or "".
func (p *Patient) Phone() string {
	if p.Telephone == nil {
		return ""
	}
	return *p.Telephone
}

// NewPatient carries the fields accepted by the internal creation path.
type NewPatient struct {
	CodeCarte     string
	Nom           string
	Prenom        string
	DateNaissance *time.Time
	Sexe          *string
	Telephone     *string
	Email         *string
	Adresse       *string
	Commune       *string
	Wilaya        *string
	Notes         *string
	Phototype     *string
	Status        string
	CreatedBy     *uuid.UUID
}

// CreateRequest is the body of POST /patients, which is always refused.
type CreateRequest struct {
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
}

type UpdateRequest struct {
	Nom           *string `json:"nom"`
	Prenom        *string `json:"prenom"`
	DateNaissance *string `json:"date_naissance"`
	Sexe          *string `json:"sexe"`
	Telephone     *string `json:"telephone"`
	Email         *string `json:"email"`
	Adresse       *string `json:"adresse"`
	Commune       *string `json:"commune"`
	Wilaya        *string `json:"wilaya"`
	Notes         *string `json:"notes"`
	Phototype     *string `json:"phototype"`
	Status        *string `json:"status"`
}

// Zone is a patient's session quota on one zone definition.
type Zone struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	ZoneID       uuid.UUID `db:"zone_id" json:"zone_id"`
	ZoneCode     string    `db:"code" json:"zone_code"`
	ZoneNom      string    `db:"nom" json:"zone_nom"`
	SeancesTotal int       `db:"seances_total" json:"seances_total"`
	SeancesUsed  int       `db:"seances_used" json:"seances_used"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (z *Zone) SeancesRemaining() int {
	if z.SeancesUsed >= z.SeancesTotal {
		return 0
	}
	return z.SeancesTotal - z.SeancesUsed
}

type ZoneRequest struct {
	ZoneID       uuid.UUID `json:"zone_id"`
	SeancesTotal int       `json:"seances_total"`
	Notes        *string   `json:"notes"`
}

type ZoneUpdateRequest struct {
	SeancesTotal *int    `json:"seances_total"`
	Notes        *string `json:"notes"`
}

// zoneView adds the computed remaining count to the JSON form.
type zoneView struct {
	*Zone
	SeancesRemaining int `json:"seances_remaining"`
}

func viewZones(zones []*Zone) []zoneView {
	out := make([]zoneView, 0, len(zones))
	for _, z := range zones {
		out = append(out, zoneView{Zone: z, SeancesRemaining: z.SeancesRemaining()})
	}
	return out
}
