package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
)

// -- Session Repository --

type repoPG struct {
	q db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{q: q}
}

const sessionSelect = `SELECT s.id, s.patient_id, s.patient_zone_id, zd.nom, s.praticien_id,
	u.prenom || ' ' || u.nom, s.date_seance, s.type_laser, s.parametres,
	s.spot_size, s.fluence, s.pulse_duration_ms, s.frequency_hz, s.notes, s.duree_minutes, s.created_at
	FROM sessions s
	JOIN patient_zones pz ON pz.id = s.patient_zone_id
	JOIN zone_definitions zd ON zd.id = pz.zone_id
	JOIN users u ON u.id = s.praticien_id`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.PatientID, &s.PatientZoneID, &s.ZoneNom, &s.PraticienID,
		&s.PraticienNom, &s.DateSeance, &s.TypeLaser, &s.Parametres,
		&s.SpotSize, &s.Fluence, &s.PulseDurationMs, &s.FrequencyHz, &s.Notes, &s.DureeMinutes, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if s.Parametres == nil {
		s.Parametres = map[string]any{}
	}
	s.Photos = []*Photo{}
	return &s, nil
}

func (r *repoPG) Create(ctx context.Context, s *Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Parametres == nil {
		s.Parametres = map[string]any{}
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO sessions (id, patient_id, patient_zone_id, praticien_id, date_seance, type_laser, parametres,
			spot_size, fluence, pulse_duration_ms, frequency_hz, notes, duree_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`,
		s.ID, s.PatientID, s.PatientZoneID, s.PraticienID, s.DateSeance, s.TypeLaser, s.Parametres,
		s.SpotSize, s.Fluence, s.PulseDurationMs, s.FrequencyHz, s.Notes, s.DureeMinutes,
	).Scan(&s.CreatedAt)
	return db.Classify(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, err := scanSession(db.Conn(ctx, r.q).QueryRow(ctx, sessionSelect+` WHERE s.id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeSessionNotFound)
	}
	return s, nil
}

func (r *repoPG) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `UPDATE sessions SET notes = $2 WHERE id = $1`, id, notes)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeSessionNotFound, "session not found")
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	var total int
	if err := db.Conn(ctx, r.q).QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}
	rows, err := db.Conn(ctx, r.q).Query(ctx, sessionSelect+` WHERE s.patient_id = $1
		ORDER BY s.date_seance DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()
	var items []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, db.Classify(err)
		}
		items = append(items, s)
	}
	return items, total, db.Classify(rows.Err())
}

func (r *repoPG) Last(ctx context.Context, patientID, patientZoneID uuid.UUID) (*Session, error) {
	s, err := scanSession(db.Conn(ctx, r.q).QueryRow(ctx, sessionSelect+`
		WHERE s.patient_id = $1 AND s.patient_zone_id = $2
		ORDER BY s.date_seance DESC, s.created_at DESC LIMIT 1`, patientID, patientZoneID))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeSessionNotFound)
	}
	return s, nil
}

func (r *repoPG) ZoneActivity(ctx context.Context, patientID uuid.UUID) ([]*ZoneActivity, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT s.patient_zone_id, pz.zone_id, zd.nom, MAX(s.date_seance)
		FROM sessions s
		JOIN patient_zones pz ON pz.id = s.patient_zone_id
		JOIN zone_definitions zd ON zd.id = pz.zone_id
		WHERE s.patient_id = $1 AND s.date_seance <= NOW()
		GROUP BY s.patient_zone_id, pz.zone_id, zd.nom
		ORDER BY zd.nom`, patientID)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*ZoneActivity
	for rows.Next() {
		var a ZoneActivity
		if err := rows.Scan(&a.PatientZoneID, &a.ZoneID, &a.ZoneNom, &a.LastSession); err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, &a)
	}
	return out, db.Classify(rows.Err())
}

// -- Photo Repository --

type photoRepoPG struct {
	q db.Querier
}

func NewPhotoRepo(q db.Querier) PhotoRepository {
	return &photoRepoPG{q: q}
}

const photoCols = `id, session_id, filename, storage_key, content_type, size_bytes, created_at`

func scanPhoto(row pgx.Row, url func(uuid.UUID) string) (*Photo, error) {
	var p Photo
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Filename, &p.StorageKey, &p.ContentType, &p.SizeBytes, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.URL = url(p.ID)
	return &p, nil
}

func (r *photoRepoPG) Add(ctx context.Context, p *Photo) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO session_photos (id, session_id, filename, storage_key, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		p.ID, p.OwnerID, p.Filename, p.StorageKey, p.ContentType, p.SizeBytes,
	).Scan(&p.CreatedAt)
	p.URL = photoURL(p.ID)
	return db.Classify(err)
}

func (r *photoRepoPG) Get(ctx context.Context, id uuid.UUID) (*Photo, error) {
	p, err := scanPhoto(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+photoCols+` FROM session_photos WHERE id = $1`, id), photoURL)
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodePhotoNotFound)
	}
	return p, nil
}

func (r *photoRepoPG) ListBySessions(ctx context.Context, sessionIDs []uuid.UUID) ([]*Photo, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	rows, err := db.Conn(ctx, r.q).Query(ctx, `SELECT `+photoCols+` FROM session_photos
		WHERE session_id = ANY($1) ORDER BY created_at`, sessionIDs)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*Photo
	for rows.Next() {
		p, err := scanPhoto(rows, photoURL)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, p)
	}
	return out, db.Classify(rows.Err())
}

// -- Side Effect Repository --

type sideEffectRepoPG struct {
	q db.Querier
}

func NewSideEffectRepo(q db.Querier) SideEffectRepository {
	return &sideEffectRepoPG{q: q}
}

const sideEffectPhotoCols = `id, side_effect_id, filename, storage_key, content_type, size_bytes, created_at`

func (r *sideEffectRepoPG) Create(ctx context.Context, se *SideEffect) error {
	if se.ID == uuid.Nil {
		se.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO side_effects (id, session_id, description, severity, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		se.ID, se.SessionID, se.Description, se.Severity, se.CreatedBy,
	).Scan(&se.CreatedAt)
	return db.Classify(err)
}

func (r *sideEffectRepoPG) AddPhoto(ctx context.Context, p *Photo) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO side_effect_photos (id, side_effect_id, filename, storage_key, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		p.ID, p.OwnerID, p.Filename, p.StorageKey, p.ContentType, p.SizeBytes,
	).Scan(&p.CreatedAt)
	p.URL = sideEffectPhotoURL(p.ID)
	return db.Classify(err)
}

func (r *sideEffectRepoPG) GetPhoto(ctx context.Context, id uuid.UUID) (*Photo, error) {
	p, err := scanPhoto(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+sideEffectPhotoCols+` FROM side_effect_photos WHERE id = $1`, id), sideEffectPhotoURL)
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodePhotoNotFound)
	}
	return p, nil
}

func (r *sideEffectRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*SideEffect, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT se.id, se.session_id, s.patient_zone_id, pz.zone_id, zd.nom, s.date_seance,
			se.description, se.severity, se.created_by, se.created_at
		FROM side_effects se
		JOIN sessions s ON s.id = se.session_id
		JOIN patient_zones pz ON pz.id = s.patient_zone_id
		JOIN zone_definitions zd ON zd.id = pz.zone_id
		WHERE s.patient_id = $1
		ORDER BY se.created_at DESC`, patientID)
	if err != nil {
		return nil, db.Classify(err)
	}
	var items []*SideEffect
	byID := map[uuid.UUID]*SideEffect{}
	for rows.Next() {
		var se SideEffect
		if err := rows.Scan(&se.ID, &se.SessionID, &se.PatientZoneID, &se.ZoneID, &se.ZoneNom, &se.DateSeance,
			&se.Description, &se.Severity, &se.CreatedBy, &se.CreatedAt); err != nil {
			rows.Close()
			return nil, db.Classify(err)
		}
		se.Photos = []*Photo{}
		items = append(items, &se)
		byID[se.ID] = &se
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, se := range items {
		ids = append(ids, se.ID)
	}
	prows, err := db.Conn(ctx, r.q).Query(ctx, `SELECT `+sideEffectPhotoCols+` FROM side_effect_photos
		WHERE side_effect_id = ANY($1) ORDER BY created_at`, ids)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer prows.Close()
	for prows.Next() {
		p, err := scanPhoto(prows, sideEffectPhotoURL)
		if err != nil {
			return nil, db.Classify(err)
		}
		if se, ok := byID[p.OwnerID]; ok {
			se.Photos = append(se.Photos, p)
		}
	}
	return items, db.Classify(prows.Err())
}
