package box

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
)

// -- Box Repository --

type repoPG struct {
	q db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{q: q}
}

const boxSelect = `SELECT b.id, b.nom, b.numero, b.is_active, b.created_at, b.updated_at,
	a.user_id, u.prenom || ' ' || u.nom
	FROM boxes b
	LEFT JOIN box_assignments a ON a.box_id = b.id
	LEFT JOIN users u ON u.id = a.user_id`

func scanBox(row pgx.Row) (*Box, error) {
	var b Box
	if err := row.Scan(&b.ID, &b.Nom, &b.Numero, &b.IsActive, &b.CreatedAt, &b.UpdatedAt,
		&b.AssignedUserID, &b.AssignedUserName); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repoPG) Create(ctx context.Context, b *Box) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO boxes (id, nom, numero, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		b.ID, b.Nom, b.Numero, b.IsActive,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	return db.Classify(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Box, error) {
	b, err := scanBox(db.Conn(ctx, r.q).QueryRow(ctx, boxSelect+` WHERE b.id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeBoxNotFound)
	}
	return b, nil
}

func (r *repoPG) Update(ctx context.Context, b *Box) error {
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		UPDATE boxes SET nom = $2, numero = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, b.Nom, b.Numero, b.IsActive,
	).Scan(&b.UpdatedAt)
	return db.NotFoundAs(err, apperr.CodeBoxNotFound)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `DELETE FROM boxes WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeBoxNotFound, "box not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, includeInactive bool) ([]*Box, error) {
	query := boxSelect
	if !includeInactive {
		query += ` WHERE b.is_active`
	}
	rows, err := db.Conn(ctx, r.q).Query(ctx, query+` ORDER BY b.numero`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*Box
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, b)
	}
	return out, db.Classify(rows.Err())
}

// -- Assignment Repository --

type assignmentRepoPG struct {
	q db.Querier
}

func NewAssignmentRepo(q db.Querier) AssignmentRepository {
	return &assignmentRepoPG{q: q}
}

const assignmentSelect = `SELECT a.id, a.box_id, b.nom, b.numero, a.user_id, u.prenom || ' ' || u.nom, a.assigned_at
	FROM box_assignments a
	JOIN boxes b ON b.id = a.box_id
	JOIN users u ON u.id = a.user_id`

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	if err := row.Scan(&a.ID, &a.BoxID, &a.BoxNom, &a.BoxNumero, &a.UserID, &a.UserName, &a.AssignedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepoPG) one(ctx context.Context, where string, arg uuid.UUID) (*Assignment, error) {
	a, err := scanAssignment(db.Conn(ctx, r.q).QueryRow(ctx, assignmentSelect+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return a, nil
}

func (r *assignmentRepoPG) ForUser(ctx context.Context, userID uuid.UUID) (*Assignment, error) {
	return r.one(ctx, ` WHERE a.user_id = $1`, userID)
}

func (r *assignmentRepoPG) ForBox(ctx context.Context, boxID uuid.UUID) (*Assignment, error) {
	return r.one(ctx, ` WHERE a.box_id = $1`, boxID)
}

func (r *assignmentRepoPG) Create(ctx context.Context, a *Assignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO box_assignments (id, box_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING assigned_at`,
		a.ID, a.BoxID, a.UserID,
	).Scan(&a.AssignedAt)
	return db.Classify(err)
}

func (r *assignmentRepoPG) DeleteByUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `DELETE FROM box_assignments WHERE user_id = $1`, userID)
	if err != nil {
		return false, db.Classify(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *assignmentRepoPG) List(ctx context.Context) ([]*Assignment, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, assignmentSelect+` ORDER BY b.numero`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, a)
	}
	return out, db.Classify(rows.Err())
}
