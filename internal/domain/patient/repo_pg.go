package patient

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
	"github.com/lasercare/clinic/pkg/textnorm"
)

// -- Patient Repository --

type patientRepoPG struct {
	q db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &patientRepoPG{q: q}
}

const patientCols = `id, code_carte, nom, prenom, date_naissance, sexe, telephone, email, adresse,
	commune, wilaya, notes, phototype, status, created_by, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.CodeCarte, &p.Nom, &p.Prenom, &p.DateNaissance, &p.Sexe, &p.Telephone,
		&p.Email, &p.Adresse, &p.Commune, &p.Wilaya, &p.Notes, &p.Phototype, &p.Status,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO patients (id, code_carte, nom, prenom, date_naissance, sexe, telephone, email, adresse,
			commune, wilaya, notes, phototype, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`,
		p.ID, p.CodeCarte, p.Nom, p.Prenom, p.DateNaissance, p.Sexe, p.Telephone, p.Email, p.Adresse,
		p.Commune, p.Wilaya, p.Notes, p.Phototype, p.Status, p.CreatedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := r.scanPatient(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodePatientNotFound)
	}
	return p, nil
}

func (r *patientRepoPG) GetByCard(ctx context.Context, code string) (*Patient, error) {
	p, err := r.scanPatient(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE code_carte = $1`, code))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodePatientNotFound)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE patients SET
			nom = $2, prenom = $3, date_naissance = $4, sexe = $5, telephone = $6, email = $7,
			adresse = $8, commune = $9, wilaya = $10, notes = $11, phototype = $12, status = $13,
			updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Nom, p.Prenom, p.DateNaissance, p.Sexe, p.Telephone, p.Email,
		p.Adresse, p.Commune, p.Wilaya, p.Notes, p.Phototype, p.Status,
	)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodePatientNotFound, "patient not found")
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodePatientNotFound, "patient not found")
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches q as a substring of nom, prenom, phone digits or card code,
// ignoring case and accents.
func (r *patientRepoPG) Search(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	name := "%" + likeEscaper.Replace(textnorm.Name(q)) + "%"
	code := "%" + likeEscaper.Replace(strings.TrimSpace(q)) + "%"
	var digits *string
	if d := textnorm.Digits(q); d != "" {
		s := "%" + d + "%"
		digits = &s
	}
	where := ` WHERE lower(f_unaccent(nom)) LIKE $1 OR lower(f_unaccent(prenom)) LIKE $1
		OR code_carte ILIKE $2 OR ($3::text IS NOT NULL AND telephone_digits LIKE $3)`

	var total int
	if err := db.Conn(ctx, r.q).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, name, code, digits).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}

	rows, err := db.Conn(ctx, r.q).Query(ctx, `SELECT `+patientCols+` FROM patients`+where+
		` ORDER BY nom, prenom LIMIT $4 OFFSET $5`, name, code, digits, limit, offset)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	items, err := r.collect(rows)
	return items, total, err
}

func (r *patientRepoPG) ListByPhoneSuffix(ctx context.Context, suffix string) ([]*Patient, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `SELECT `+patientCols+` FROM patients
		WHERE right(telephone_digits, 8) = $1 ORDER BY nom, prenom`, suffix)
	if err != nil {
		return nil, db.Classify(err)
	}
	return r.collect(rows)
}

func (r *patientRepoPG) ListByName(ctx context.Context, nom string) ([]*Patient, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `SELECT `+patientCols+` FROM patients
		WHERE lower(f_unaccent(nom)) = $1 ORDER BY prenom`, textnorm.Name(nom))
	if err != nil {
		return nil, db.Classify(err)
	}
	return r.collect(rows)
}

func (r *patientRepoPG) collect(rows pgx.Rows) ([]*Patient, error) {
	defer rows.Close()
	var out []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// -- Patient Zone Repository --

type zoneRepoPG struct {
	q db.Querier
}

func NewZoneRepo(q db.Querier) ZoneRepository {
	return &zoneRepoPG{q: q}
}

const zoneSelect = `SELECT pz.id, pz.patient_id, pz.zone_id, zd.code, zd.nom, pz.seances_total, pz.seances_used,
	pz.notes, pz.created_at, pz.updated_at
	FROM patient_zones pz JOIN zone_definitions zd ON zd.id = pz.zone_id`

func scanZone(row pgx.Row) (*Zone, error) {
	var z Zone
	err := row.Scan(&z.ID, &z.PatientID, &z.ZoneID, &z.ZoneCode, &z.ZoneNom, &z.SeancesTotal, &z.SeancesUsed,
		&z.Notes, &z.CreatedAt, &z.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &z, nil
}

func (r *zoneRepoPG) Create(ctx context.Context, z *Zone) error {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO patient_zones (id, patient_id, zone_id, seances_total, seances_used, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		z.ID, z.PatientID, z.ZoneID, z.SeancesTotal, z.SeancesUsed, z.Notes,
	).Scan(&z.CreatedAt, &z.UpdatedAt)
	return db.Classify(err)
}

func (r *zoneRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Zone, error) {
	z, err := scanZone(db.Conn(ctx, r.q).QueryRow(ctx, zoneSelect+` WHERE pz.id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodePatientZoneNotFound)
	}
	return z, nil
}

func (r *zoneRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Zone, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, zoneSelect+` WHERE pz.patient_id = $1 ORDER BY zd.ordre, zd.nom`, patientID)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func (r *zoneRepoPG) Update(ctx context.Context, z *Zone) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE patient_zones SET seances_total = $2, notes = $3, updated_at = NOW() WHERE id = $1`,
		z.ID, z.SeancesTotal, z.Notes)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodePatientZoneNotFound, "patient zone not found")
	}
	return nil
}

func (r *zoneRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `DELETE FROM patient_zones WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodePatientZoneNotFound, "patient zone not found")
	}
	return nil
}

func (r *zoneRepoPG) IncrementUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE patient_zones SET seances_used = seances_used + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodePatientZoneNotFound, "patient zone not found")
	}
	return nil
}
