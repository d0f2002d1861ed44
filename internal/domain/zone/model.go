package zone

import (
	"time"

	"github.com/google/uuid"
)

// Categories of the zone catalog.
var Categories = map[string]bool{
	"visage": true,
	"bras":   true,
	"jambes": true,
	"corps":  true,
	"homme":  true,
}

// Definition is a treatable body region. Definitions are deactivated rather
// than deleted once referenced.
type Definition struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Nom          string    `db:"nom" json:"nom"`
	Description  *string   `db:"description" json:"description,omitempty"`
	Ordre        int       `db:"ordre" json:"ordre"`
	Prix         *int64    `db:"prix" json:"prix,omitempty"`
	DureeMinutes *int      `db:"duree_minutes" json:"duree_minutes,omitempty"`
	Categorie    *string   `db:"categorie" json:"categorie,omitempty"`
	IsHomme      bool      `db:"is_homme" json:"is_homme"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	Code         string  `json:"code"`
	Nom          string  `json:"nom"`
	Description  *string `json:"description"`
	Ordre        int     `json:"ordre"`
	Prix         *int64  `json:"prix"`
	DureeMinutes *int    `json:"duree_minutes"`
	Categorie    *string `json:"categorie"`
	IsHomme      bool    `json:"is_homme"`
}

// UpdateRequest is partial; nil fields are left unchanged.
type UpdateRequest struct {
	Code         *string `json:"code"`
	Nom          *string `json:"nom"`
	Description  *string `json:"description"`
	Ordre        *int    `json:"ordre"`
	Prix         *int64  `json:"prix"`
	DureeMinutes *int    `json:"duree_minutes"`
	Categorie    *string `json:"categorie"`
	IsHomme      *bool   `json:"is_homme"`
	IsActive     *bool   `json:"is_active"`
}
