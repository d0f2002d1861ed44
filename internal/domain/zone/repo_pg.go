package zone

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
)

type repoPG struct {
	q db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{q: q}
}

const columns = `id, code, nom, description, ordre, prix, duree_minutes, categorie, is_homme, is_active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, z *Definition) error {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO zone_definitions (id, code, nom, description, ordre, prix, duree_minutes, categorie, is_homme, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		z.ID, z.Code, z.Nom, z.Description, z.Ordre, z.Prix, z.DureeMinutes, z.Categorie, z.IsHomme, z.IsActive,
	).Scan(&z.CreatedAt, &z.UpdatedAt)
	return db.Classify(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Definition, error) {
	z, err := scan(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+columns+` FROM zone_definitions WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeZoneNotFound)
	}
	return z, nil
}

func (r *repoPG) GetMany(ctx context.Context, ids []uuid.UUID) ([]*Definition, error) {
	return r.query(ctx, `SELECT `+columns+` FROM zone_definitions WHERE id = ANY($1) ORDER BY ordre, nom`, ids)
}

func (r *repoPG) Update(ctx context.Context, z *Definition) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE zone_definitions SET
			code = $2, nom = $3, description = $4, ordre = $5, prix = $6,
			duree_minutes = $7, categorie = $8, is_homme = $9, is_active = $10, updated_at = NOW()
		WHERE id = $1`,
		z.ID, z.Code, z.Nom, z.Description, z.Ordre, z.Prix, z.DureeMinutes, z.Categorie, z.IsHomme, z.IsActive,
	)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeZoneNotFound, "zone not found")
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx,
		`UPDATE zone_definitions SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeZoneNotFound, "zone not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, includeInactive bool) ([]*Definition, error) {
	sql := `SELECT ` + columns + ` FROM zone_definitions`
	if !includeInactive {
		sql += ` WHERE is_active`
	}
	return r.query(ctx, sql+` ORDER BY ordre, nom`)
}

func (r *repoPG) query(ctx context.Context, sql string, args ...any) ([]*Definition, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Definition
	for rows.Next() {
		z, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func scan(row pgx.Row) (*Definition, error) {
	var z Definition
	err := row.Scan(&z.ID, &z.Code, &z.Nom, &z.Description, &z.Ordre, &z.Prix, &z.DureeMinutes,
		&z.Categorie, &z.IsHomme, &z.IsActive, &z.CreatedAt, &z.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &z, nil
}
