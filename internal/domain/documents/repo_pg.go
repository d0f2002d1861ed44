package documents

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

const docCols = `id, patient_id, filename, storage_key, content_type, size_bytes, description, uploaded_by, created_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	if err := row.Scan(&d.ID, &d.PatientID, &d.Filename, &d.StorageKey, &d.ContentType, &d.SizeBytes,
		&d.Description, &d.UploadedBy, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO patient_documents (id, patient_id, filename, storage_key, content_type, size_bytes,
			description, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		d.ID, d.PatientID, d.Filename, d.StorageKey, d.ContentType, d.SizeBytes, d.Description, d.UploadedBy,
	).Scan(&d.CreatedAt)
	return db.Classify(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	d, err := scanDocument(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+docCols+` FROM patient_documents WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeDocumentNotFound)
	}
	return d, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Document, int, error) {
	conn := db.Conn(ctx, r.q)
	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_documents WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}
	rows, err := conn.Query(ctx, `SELECT `+docCols+` FROM patient_documents WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()
	var out []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, db.Classify(err)
		}
		out = append(out, d)
	}
	return out, total, db.Classify(rows.Err())
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `DELETE FROM patient_documents WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeDocumentNotFound, "document not found")
	}
	return nil
}
