package preconsultation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
)

// -- Pre-consultation Repository --

type repoPG struct {
	q db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{q: q}
}

const columns = `id, patient_id, sexe, age, date_naissance, statut_marital,
	is_pregnant, is_breastfeeding, pregnancy_planning,
	has_previous_laser, previous_laser_clarity_ii, previous_laser_sessions, previous_laser_brand,
	hair_removal_methods, medical_history, dermatological_conditions,
	has_current_treatments, current_treatments_details,
	has_moles, moles_location, has_birthmarks, birthmarks_location,
	recent_peeling, recent_peeling_date, peeling_zone, phototype, last_laser_date, last_hair_removal_date,
	status, created_by, validated_by, validated_at, rejection_reason, notes, created_at, updated_at`

func scan(row pgx.Row) (*PreConsultation, error) {
	var pc PreConsultation
	err := row.Scan(&pc.ID, &pc.PatientID, &pc.Sexe, &pc.Age, &pc.DateNaissance, &pc.StatutMarital,
		&pc.IsPregnant, &pc.IsBreastfeeding, &pc.PregnancyPlanning,
		&pc.HasPreviousLaser, &pc.PreviousLaserClarityII, &pc.PreviousLaserSessions, &pc.PreviousLaserBrand,
		&pc.HairRemovalMethods, &pc.MedicalHistory, &pc.DermatologicalConditions,
		&pc.HasCurrentTreatments, &pc.CurrentTreatmentsDetails,
		&pc.HasMoles, &pc.MolesLocation, &pc.HasBirthmarks, &pc.BirthmarksLocation,
		&pc.RecentPeeling, &pc.RecentPeelingDate, &pc.PeelingZone, &pc.Phototype, &pc.LastLaserDate, &pc.LastHairRemovalDate,
		&pc.Status, &pc.CreatedBy, &pc.ValidatedBy, &pc.ValidatedAt, &pc.RejectionReason, &pc.Notes,
		&pc.CreatedAt, &pc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	normalize(&pc)
	return &pc, nil
}

// normalize replaces nil collections so they encode as [] and {}.
func normalize(pc *PreConsultation) {
	if pc.HairRemovalMethods == nil {
		pc.HairRemovalMethods = []string{}
	}
	if pc.MedicalHistory == nil {
		pc.MedicalHistory = map[string]bool{}
	}
	if pc.DermatologicalConditions == nil {
		pc.DermatologicalConditions = []string{}
	}
}

func (r *repoPG) args(pc *PreConsultation) []any {
	return []any{pc.ID, pc.PatientID, pc.Sexe, pc.Age, pc.DateNaissance, pc.StatutMarital,
		pc.IsPregnant, pc.IsBreastfeeding, pc.PregnancyPlanning,
		pc.HasPreviousLaser, pc.PreviousLaserClarityII, pc.PreviousLaserSessions, pc.PreviousLaserBrand,
		pc.HairRemovalMethods, pc.MedicalHistory, pc.DermatologicalConditions,
		pc.HasCurrentTreatments, pc.CurrentTreatmentsDetails,
		pc.HasMoles, pc.MolesLocation, pc.HasBirthmarks, pc.BirthmarksLocation,
		pc.RecentPeeling, pc.RecentPeelingDate, pc.PeelingZone, pc.Phototype, pc.LastLaserDate, pc.LastHairRemovalDate,
		pc.Status, pc.CreatedBy, pc.ValidatedBy, pc.ValidatedAt, pc.RejectionReason, pc.Notes}
}

func (r *repoPG) Create(ctx context.Context, pc *PreConsultation) error {
	if pc.ID == uuid.Nil {
		pc.ID = uuid.New()
	}
	normalize(pc)
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO pre_consultations (id, patient_id, sexe, age, date_naissance, statut_marital,
			is_pregnant, is_breastfeeding, pregnancy_planning,
			has_previous_laser, previous_laser_clarity_ii, previous_laser_sessions, previous_laser_brand,
			hair_removal_methods, medical_history, dermatological_conditions,
			has_current_treatments, current_treatments_details,
			has_moles, moles_location, has_birthmarks, birthmarks_location,
			recent_peeling, recent_peeling_date, peeling_zone, phototype, last_laser_date, last_hair_removal_date,
			status, created_by, validated_by, validated_at, rejection_reason, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34)
		RETURNING created_at, updated_at`, r.args(pc)...,
	).Scan(&pc.CreatedAt, &pc.UpdatedAt)
	return db.Classify(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*PreConsultation, error) {
	pc, err := scan(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+columns+` FROM pre_consultations WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodePreConsultationNotFound)
	}
	return pc, nil
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*PreConsultation, error) {
	pc, err := scan(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+columns+` FROM pre_consultations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodePreConsultationNotFound)
	}
	return pc, nil
}

func (r *repoPG) Update(ctx context.Context, pc *PreConsultation) error {
	normalize(pc)
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE pre_consultations SET
			patient_id = $2, sexe = $3, age = $4, date_naissance = $5, statut_marital = $6,
			is_pregnant = $7, is_breastfeeding = $8, pregnancy_planning = $9,
			has_previous_laser = $10, previous_laser_clarity_ii = $11, previous_laser_sessions = $12,
			previous_laser_brand = $13, hair_removal_methods = $14, medical_history = $15,
			dermatological_conditions = $16, has_current_treatments = $17, current_treatments_details = $18,
			has_moles = $19, moles_location = $20, has_birthmarks = $21, birthmarks_location = $22,
			recent_peeling = $23, recent_peeling_date = $24, peeling_zone = $25, phototype = $26,
			last_laser_date = $27, last_hair_removal_date = $28, status = $29, created_by = $30,
			validated_by = $31, validated_at = $32, rejection_reason = $33, notes = $34, updated_at = NOW()
		WHERE id = $1`, r.args(pc)...)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodePreConsultationNotFound, "pre-consultation not found")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `DELETE FROM pre_consultations WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodePreConsultationNotFound, "pre-consultation not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*PreConsultation, int, error) {
	where := ` WHERE 1=1`
	var args []any
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.PatientID != nil {
		where += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, *f.PatientID)
		idx++
	}

	var total int
	if err := db.Conn(ctx, r.q).QueryRow(ctx, `SELECT COUNT(*) FROM pre_consultations`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}

	query := `SELECT ` + columns + ` FROM pre_consultations` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.q).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()
	var items []*PreConsultation
	for rows.Next() {
		pc, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, pc)
	}
	return items, total, rows.Err()
}

func (r *repoPG) LatestForPatient(ctx context.Context, patientID uuid.UUID) (*PreConsultation, error) {
	pc, err := scan(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+columns+` FROM pre_consultations
		WHERE patient_id = $1 ORDER BY created_at DESC LIMIT 1`, patientID))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodePreConsultationNotFound)
	}
	return pc, nil
}

// -- Zone Repository --

type zoneRepoPG struct {
	q db.Querier
}

func NewZoneRepo(q db.Querier) ZoneRepository {
	return &zoneRepoPG{q: q}
}

const zoneSelect = `SELECT pz.id, pz.pre_consultation_id, pz.zone_id, zd.nom, pz.is_eligible, pz.observations, pz.created_at
	FROM pre_consultation_zones pz JOIN zone_definitions zd ON zd.id = pz.zone_id`

func scanZone(row pgx.Row) (*Zone, error) {
	var z Zone
	if err := row.Scan(&z.ID, &z.PreConsultationID, &z.ZoneID, &z.ZoneNom, &z.IsEligible, &z.Observations, &z.CreatedAt); err != nil {
		return nil, err
	}
	return &z, nil
}

func (r *zoneRepoPG) Add(ctx context.Context, z *Zone) error {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO pre_consultation_zones (id, pre_consultation_id, zone_id, is_eligible, observations)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		z.ID, z.PreConsultationID, z.ZoneID, z.IsEligible, z.Observations,
	).Scan(&z.CreatedAt)
	return db.Classify(err)
}

func (r *zoneRepoPG) Get(ctx context.Context, preConsultationID, zoneID uuid.UUID) (*Zone, error) {
	z, err := scanZone(db.Conn(ctx, r.q).QueryRow(ctx,
		zoneSelect+` WHERE pz.pre_consultation_id = $1 AND pz.zone_id = $2`, preConsultationID, zoneID))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeZoneNotFound)
	}
	return z, nil
}

func (r *zoneRepoPG) Update(ctx context.Context, z *Zone) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE pre_consultation_zones SET is_eligible = $3, observations = $4
		WHERE pre_consultation_id = $1 AND zone_id = $2`,
		z.PreConsultationID, z.ZoneID, z.IsEligible, z.Observations)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeZoneNotFound, "zone not on pre-consultation")
	}
	return nil
}

func (r *zoneRepoPG) Delete(ctx context.Context, preConsultationID, zoneID uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx,
		`DELETE FROM pre_consultation_zones WHERE pre_consultation_id = $1 AND zone_id = $2`, preConsultationID, zoneID)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeZoneNotFound, "zone not on pre-consultation")
	}
	return nil
}

func (r *zoneRepoPG) List(ctx context.Context, preConsultationID uuid.UUID) ([]*Zone, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, zoneSelect+` WHERE pz.pre_consultation_id = $1 ORDER BY zd.ordre, zd.nom`, preConsultationID)
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

// -- Response Repository --

type responseRepoPG struct {
	q db.Querier
}

func NewResponseRepo(q db.Querier) ResponseRepository {
	return &responseRepoPG{q: q}
}

func (r *responseRepoPG) Upsert(ctx context.Context, preConsultationID, questionID uuid.UUID, reponse json.RawMessage) error {
	_, err := db.Conn(ctx, r.q).Exec(ctx, `
		INSERT INTO question_responses (id, pre_consultation_id, question_id, reponse)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT question_responses_pc_question
		DO UPDATE SET reponse = EXCLUDED.reponse, updated_at = NOW()`,
		uuid.New(), preConsultationID, questionID, reponse)
	return db.Classify(err)
}

func (r *responseRepoPG) List(ctx context.Context, preConsultationID uuid.UUID) ([]*Response, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT id, pre_consultation_id, question_id, reponse, created_at, updated_at
		FROM question_responses WHERE pre_consultation_id = $1`, preConsultationID)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*Response
	for rows.Next() {
		var resp Response
		if err := rows.Scan(&resp.ID, &resp.PreConsultationID, &resp.QuestionID, &resp.Reponse, &resp.CreatedAt, &resp.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &resp)
	}
	return out, rows.Err()
}
