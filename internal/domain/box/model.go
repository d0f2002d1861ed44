package box

import (
	"time"

	"github.com/google/uuid"
)

// Box is a treatment room. At most one practitioner holds it at a time.
type Box struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Nom       string    `db:"nom" json:"nom"`
	Numero    int       `db:"numero" json:"numero"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	AssignedUserID   *uuid.UUID `db:"-" json:"assigned_user_id,omitempty"`
	AssignedUserName *string    `db:"-" json:"assigned_user_name,omitempty"`
}

type Assignment struct {
	ID         uuid.UUID `db:"id" json:"id"`
	BoxID      uuid.UUID `db:"box_id" json:"box_id"`
	BoxNom     string    `db:"-" json:"box_nom"`
	BoxNumero  int       `db:"-" json:"box_numero"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	UserName   string    `db:"-" json:"user_name"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}

type CreateRequest struct {
	Nom    string `json:"nom"`
	Numero int    `json:"numero"`
}

type UpdateRequest struct {
	Nom      *string `json:"nom"`
	Numero   *int    `json:"numero"`
	IsActive *bool   `json:"is_active"`
}

// AssignRequest binds a user to a box. UserID defaults to the caller.
type AssignRequest struct {
	BoxID  uuid.UUID  `json:"box_id"`
	UserID *uuid.UUID `json:"user_id"`
}
