package questionnaire

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

const columns = `id, texte, type_reponse, options, ordre, is_required, is_active, created_at, updated_at`

func scan(row pgx.Row) (*Question, error) {
	var q Question
	if err := row.Scan(&q.ID, &q.Texte, &q.TypeReponse, &q.Options, &q.Ordre, &q.IsRequired, &q.IsActive,
		&q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	if q.Options == nil {
		q.Options = []string{}
	}
	return &q, nil
}

func (r *repoPG) Create(ctx context.Context, q *Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Options == nil {
		q.Options = []string{}
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO questions (id, texte, type_reponse, options, ordre, is_required, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		q.ID, q.Texte, q.TypeReponse, q.Options, q.Ordre, q.IsRequired, q.IsActive,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	return db.Classify(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Question, error) {
	q, err := scan(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+columns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeQuestionNotFound)
	}
	return q, nil
}

func (r *repoPG) Update(ctx context.Context, q *Question) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE questions SET texte = $2, type_reponse = $3, options = $4, ordre = $5,
			is_required = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1`,
		q.ID, q.Texte, q.TypeReponse, q.Options, q.Ordre, q.IsRequired, q.IsActive)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeQuestionNotFound, "question not found")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeQuestionNotFound, "question not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, activeOnly bool) ([]*Question, error) {
	sql := `SELECT ` + columns + ` FROM questions`
	if activeOnly {
		sql += ` WHERE is_active`
	}
	rows, err := db.Conn(ctx, r.q).Query(ctx, sql+` ORDER BY ordre, created_at`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*Question
	for rows.Next() {
		q, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *repoPG) MaxOrdre(ctx context.Context) (int, error) {
	var n int
	err := db.Conn(ctx, r.q).QueryRow(ctx, `SELECT COALESCE(MAX(ordre), 0) FROM questions`).Scan(&n)
	return n, db.Classify(err)
}

func (r *repoPG) SetOrdre(ctx context.Context, id uuid.UUID, ordre int) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `UPDATE questions SET ordre = $2, updated_at = NOW() WHERE id = $1`, id, ordre)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeQuestionNotFound, "question not found")
	}
	return nil
}
