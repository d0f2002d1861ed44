package dashboard

import (
	"context"
	"time"

	"github.com/lasercare/clinic/internal/platform/db"
)

type repoPG struct {
	q db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{q: q}
}

func (r *repoPG) PatientsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `SELECT status, COUNT(*) FROM patients GROUP BY status`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	out := map[string]int{}
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

func (r *repoPG) SessionsCount(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE date_seance >= $1 AND date_seance < $2`, from, to.AddDate(0, 0, 1)).Scan(&n)
	if err != nil {
		return 0, db.Classify(err)
	}
	return n, nil
}

func (r *repoPG) SessionsByZone(ctx context.Context, from, to time.Time) ([]ZoneCount, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT zd.id, zd.nom, COUNT(*)
		FROM sessions s
		JOIN patient_zones pz ON pz.id = s.patient_zone_id
		JOIN zone_definitions zd ON zd.id = pz.zone_id
		WHERE s.date_seance >= $1 AND s.date_seance < $2
		GROUP BY zd.id, zd.nom
		ORDER BY COUNT(*) DESC, zd.nom`, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	out := []ZoneCount{}
	for rows.Next() {
		var z ZoneCount
		if err := rows.Scan(&z.ZoneID, &z.Nom, &z.Count); err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, z)
	}
	return out, db.Classify(rows.Err())
}

func (r *repoPG) SessionsByPraticien(ctx context.Context, from, to time.Time) ([]PraticienCount, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT u.id, TRIM(COALESCE(u.prenom, '') || ' ' || COALESCE(u.nom, '')), COUNT(*)
		FROM sessions s
		JOIN users u ON u.id = s.praticien_id
		WHERE s.date_seance >= $1 AND s.date_seance < $2
		GROUP BY u.id, u.prenom, u.nom
		ORDER BY COUNT(*) DESC`, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	out := []PraticienCount{}
	for rows.Next() {
		var p PraticienCount
		if err := rows.Scan(&p.PraticienID, &p.Nom, &p.Count); err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, p)
	}
	return out, db.Classify(rows.Err())
}

func (r *repoPG) ExportSessions(ctx context.Context, from, to time.Time, fn func(*SessionRow) error) error {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT s.id, s.date_seance, p.code_carte, p.nom, p.prenom, zd.nom,
			TRIM(COALESCE(u.prenom, '') || ' ' || COALESCE(u.nom, '')),
			s.type_laser, s.fluence::float8, s.spot_size::float8, s.duree_minutes
		FROM sessions s
		JOIN patients p ON p.id = s.patient_id
		JOIN patient_zones pz ON pz.id = s.patient_zone_id
		JOIN zone_definitions zd ON zd.id = pz.zone_id
		JOIN users u ON u.id = s.praticien_id
		WHERE s.date_seance >= $1 AND s.date_seance < $2
		ORDER BY s.date_seance, s.id`, from, to.AddDate(0, 0, 1))
	if err != nil {
		return db.Classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var s SessionRow
		if err := rows.Scan(&s.SessionID, &s.DateSeance, &s.CodeCarte, &s.PatientNom, &s.PatientPren, &s.Zone,
			&s.Praticien, &s.TypeLaser, &s.Fluence, &s.SpotSize, &s.DureeMin); err != nil {
			return db.Classify(err)
		}
		if err := fn(&s); err != nil {
			return err
		}
	}
	return db.Classify(rows.Err())
}
