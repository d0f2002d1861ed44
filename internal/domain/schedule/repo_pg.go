package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
)

// -- Schedule Repository --

type repoPG struct {
	q db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{q: q}
}

const entryCols = `id, date, patient_nom, patient_prenom, patient_telephone, patient_id, doctor_name, doctor_id,
	specialite, duration_type, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), zone_ids, notes,
	status, uploaded_by, created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	if err := row.Scan(&e.ID, &e.Date, &e.PatientNom, &e.PatientPrenom, &e.PatientTelephone, &e.PatientID,
		&e.DoctorName, &e.DoctorID, &e.Specialite, &e.DurationType, &e.StartTime, &e.EndTime, &e.ZoneIDs,
		&e.Notes, &e.Status, &e.UploadedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) list(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, e)
	}
	return out, db.Classify(rows.Err())
}

func (r *repoPG) ReplaceDay(ctx context.Context, day time.Time, entries []*Entry) error {
	if _, err := db.Conn(ctx, r.q).Exec(ctx, `DELETE FROM daily_schedules WHERE date = $1`, day); err != nil {
		return db.Classify(err)
	}
	for _, e := range entries {
		if err := r.Create(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = StatusExpected
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO daily_schedules (id, date, patient_nom, patient_prenom, patient_telephone, patient_id,
			doctor_name, doctor_id, specialite, duration_type, start_time, end_time, zone_ids, notes,
			status, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::time, $12::time, $13, $14, $15, $16)
		RETURNING created_at, updated_at`,
		e.ID, e.Date, e.PatientNom, e.PatientPrenom, e.PatientTelephone, e.PatientID,
		e.DoctorName, e.DoctorID, e.Specialite, e.DurationType, e.StartTime, e.EndTime, e.ZoneIDs, e.Notes,
		e.Status, e.UploadedBy,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	return db.Classify(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := scanEntry(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+entryCols+` FROM daily_schedules WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeScheduleNotFound)
	}
	return e, nil
}

func (r *repoPG) ListByDate(ctx context.Context, day time.Time) ([]*Entry, error) {
	return r.list(ctx, `SELECT `+entryCols+` FROM daily_schedules WHERE date = $1
		ORDER BY start_time, patient_nom`, day)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, patientID *uuid.UUID) (bool, error) {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE daily_schedules SET status = $3, patient_id = COALESCE($4, patient_id), updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to, patientID)
	if err != nil {
		return false, db.Classify(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx,
		`UPDATE daily_schedules SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeScheduleNotFound, "schedule entry not found")
	}
	return nil
}

func (r *repoPG) ListByStatus(ctx context.Context, status string, from, to time.Time) ([]*Entry, error) {
	return r.list(ctx, `SELECT `+entryCols+` FROM daily_schedules
		WHERE status = $1 AND date >= $2 AND date <= $3
		ORDER BY date DESC, start_time`, status, from, to)
}

// -- Queue Repository --

type queueRepoPG struct {
	q db.Querier
}

func NewQueueRepo(q db.Querier) QueueRepository {
	return &queueRepoPG{q: q}
}

const queueCols = `id, schedule_id, patient_id, patient_name, doctor_id, doctor_name, box_id, box_nom,
	checked_in_at, position, status, called_at, completed_at`

func scanQueueEntry(row pgx.Row) (*QueueEntry, error) {
	var q QueueEntry
	if err := row.Scan(&q.ID, &q.ScheduleID, &q.PatientID, &q.PatientName, &q.DoctorID, &q.DoctorName,
		&q.BoxID, &q.BoxNom, &q.CheckedInAt, &q.Position, &q.Status, &q.CalledAt, &q.CompletedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *queueRepoPG) NextPosition(ctx context.Context) (int, error) {
	var next int
	err := db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM waiting_queue WHERE status = 'waiting'`).Scan(&next)
	return next, db.Classify(err)
}

func (r *queueRepoPG) Create(ctx context.Context, q *QueueEntry) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Status == "" {
		q.Status = QueueWaiting
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO waiting_queue (id, schedule_id, patient_id, patient_name, doctor_id, doctor_name, position, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING checked_in_at`,
		q.ID, q.ScheduleID, q.PatientID, q.PatientName, q.DoctorID, q.DoctorName, q.Position, q.Status,
	).Scan(&q.CheckedInAt)
	return db.Classify(err)
}

func (r *queueRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*QueueEntry, error) {
	q, err := scanQueueEntry(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+queueCols+` FROM waiting_queue WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeQueueEntryNotFound)
	}
	return q, nil
}

func (r *queueRepoPG) ListActive(ctx context.Context, day time.Time, doctorID *uuid.UUID) ([]*QueueEntry, error) {
	query := `SELECT ` + queueCols + ` FROM waiting_queue
		WHERE status IN ('waiting', 'in_treatment') AND checked_in_at >= $1 AND checked_in_at < $2`
	args := []any{day, day.AddDate(0, 0, 1)}
	if doctorID != nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", len(args)+1)
		args = append(args, *doctorID)
	}
	query += ` ORDER BY CASE status WHEN 'in_treatment' THEN 0 ELSE 1 END, position`

	rows, err := db.Conn(ctx, r.q).Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*QueueEntry
	for rows.Next() {
		q, err := scanQueueEntry(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, q)
	}
	return out, db.Classify(rows.Err())
}

func (r *queueRepoPG) Transition(ctx context.Context, id uuid.UUID, from, to string, t Transition) (bool, error) {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE waiting_queue SET status = $3,
			box_id = COALESCE($4, box_id),
			box_nom = COALESCE($5, box_nom),
			called_at = COALESCE($6, called_at),
			completed_at = COALESCE($7, completed_at)
		WHERE id = $1 AND status = $2`,
		id, from, to, t.BoxID, t.BoxNom, t.CalledAt, t.CompletedAt)
	if err != nil {
		return false, db.Classify(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *queueRepoPG) Reassign(ctx context.Context, id, doctorID uuid.UUID, doctorName string) (bool, error) {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE waiting_queue SET doctor_id = $2, doctor_name = $3
		WHERE id = $1 AND status IN ($4, $5)`,
		id, doctorID, doctorName, QueueWaiting, QueueInTreatment)
	if err != nil {
		return false, db.Classify(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *queueRepoPG) CountByStatus(ctx context.Context, day time.Time) (map[string]int, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT status, COUNT(*) FROM waiting_queue
		WHERE checked_in_at >= $1 AND checked_in_at < $2
		GROUP BY status`, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, db.Classify(err)
		}
		out[status] = n
	}
	return out, db.Classify(rows.Err())
}
