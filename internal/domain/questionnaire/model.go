package questionnaire

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Answer types.
const (
	TypeBoolean        = "boolean"
	TypeText           = "text"
	TypeNumber         = "number"
	TypeChoice         = "choice"
	TypeMultipleChoice = "multiple_choice"
)

var validTypes = map[string]bool{
	TypeBoolean: true, TypeText: true, TypeNumber: true, TypeChoice: true, TypeMultipleChoice: true,
}

type Question struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Texte       string    `db:"texte" json:"texte"`
	TypeReponse string    `db:"type_reponse" json:"type_reponse"`
	Options     []string  `db:"options" json:"options"`
	Ordre       int       `db:"ordre" json:"ordre"`
	IsRequired  bool      `db:"is_required" json:"is_required"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (q *Question) hasOptions() bool {
	return q.TypeReponse == TypeChoice || q.TypeReponse == TypeMultipleChoice
}

type CreateRequest struct {
	Texte       string   `json:"texte"`
	TypeReponse string   `json:"type_reponse"`
	Options     []string `json:"options"`
	Ordre       *int     `json:"ordre"`
	IsRequired  bool     `json:"is_required"`
}

type UpdateRequest struct {
	Texte       *string  `json:"texte"`
	TypeReponse *string  `json:"type_reponse"`
	Options     []string `json:"options"`
	Ordre       *int     `json:"ordre"`
	IsRequired  *bool    `json:"is_required"`
	IsActive    *bool    `json:"is_active"`
}

type OrderRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// Answer is one raw response value. JSON null means unanswered.
type Answer = json.RawMessage
