package dashboard

import (
	"time"

	"github.com/google/uuid"

	"github.com/lasercare/clinic/internal/domain/pricing"
)

// Range is an inclusive day range.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type ZoneCount struct {
	ZoneID uuid.UUID `json:"zone_id"`
	Nom    string    `json:"nom"`
	Count  int       `json:"count"`
}

type PraticienCount struct {
	PraticienID uuid.UUID `json:"praticien_id"`
	Nom         string    `json:"nom"`
	Count       int       `json:"count"`
}

type SessionStats struct {
	Total       int              `json:"total"`
	ByZone      []ZoneCount      `json:"by_zone"`
	ByPraticien []PraticienCount `json:"by_praticien"`
}

// Stats is the dashboard summary. Revenue is only set for callers allowed to
// see the full dashboard.
type Stats struct {
	Range            Range                 `json:"range"`
	PatientsByStatus map[string]int        `json:"patients_by_status"`
	PatientsTotal    int                   `json:"patients_total"`
	Sessions         SessionStats          `json:"sessions"`
	QueueToday       map[string]int        `json:"queue_today"`
	Revenue          *pricing.PaymentStats `json:"revenue,omitempty"`
}

// SessionRow is one line of the sessions export.
type SessionRow struct {
	SessionID   uuid.UUID
	DateSeance  time.Time
	CodeCarte   string
	PatientNom  string
	PatientPren string
	Zone        string
	Praticien   string
	TypeLaser   string
	Fluence     *float64
	SpotSize    *float64
	DureeMin    *int
}
