package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
)

// -- Pack Repository --

type packRepoPG struct {
	q db.Querier
}

func NewPackRepo(q db.Querier) PackRepository {
	return &packRepoPG{q: q}
}

const packCols = `id, nom, description, prix, zone_ids, duree_jours, seances_per_zone, is_active, created_at, updated_at`

func scanPack(row pgx.Row) (*Pack, error) {
	var p Pack
	if err := row.Scan(&p.ID, &p.Nom, &p.Description, &p.Prix, &p.ZoneIDs, &p.DureeJours,
		&p.SeancesPerZone, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.ZoneIDs == nil {
		p.ZoneIDs = []uuid.UUID{}
	}
	return &p, nil
}

func (r *packRepoPG) Create(ctx context.Context, p *Pack) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO packs (id, nom, description, prix, zone_ids, duree_jours, seances_per_zone, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.Nom, p.Description, p.Prix, p.ZoneIDs, p.DureeJours, p.SeancesPerZone, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err)
}

func (r *packRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Pack, error) {
	p, err := scanPack(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+packCols+` FROM packs WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodePackNotFound)
	}
	return p, nil
}

func (r *packRepoPG) Update(ctx context.Context, p *Pack) error {
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		UPDATE packs SET nom = $2, description = $3, prix = $4, zone_ids = $5, duree_jours = $6,
			seances_per_zone = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Nom, p.Description, p.Prix, p.ZoneIDs, p.DureeJours, p.SeancesPerZone, p.IsActive,
	).Scan(&p.UpdatedAt)
	return db.NotFoundAs(err, apperr.CodePackNotFound)
}

func (r *packRepoPG) List(ctx context.Context, includeInactive bool) ([]*Pack, error) {
	query := `SELECT ` + packCols + ` FROM packs`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	rows, err := db.Conn(ctx, r.q).Query(ctx, query+` ORDER BY nom`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*Pack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, p)
	}
	return out, db.Classify(rows.Err())
}

// -- Subscription Repository --

type subscriptionRepoPG struct {
	q db.Querier
}

func NewSubscriptionRepo(q db.Querier) SubscriptionRepository {
	return &subscriptionRepoPG{q: q}
}

const subscriptionSelect = `SELECT s.id, s.patient_id, s.pack_id, p.nom, s.type, s.date_debut, s.date_fin,
	s.is_active, s.montant_paye, s.notes, s.created_at, s.updated_at
	FROM patient_subscriptions s LEFT JOIN packs p ON p.id = s.pack_id`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	if err := row.Scan(&s.ID, &s.PatientID, &s.PackID, &s.PackNom, &s.Type, &s.DateDebut, &s.DateFin,
		&s.IsActive, &s.MontantPaye, &s.Notes, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *subscriptionRepoPG) Create(ctx context.Context, s *Subscription) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO patient_subscriptions (id, patient_id, pack_id, type, date_debut, date_fin, is_active, montant_paye, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		s.ID, s.PatientID, s.PackID, s.Type, s.DateDebut, s.DateFin, s.IsActive, s.MontantPaye, s.Notes,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return db.Classify(err)
}

func (r *subscriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	s, err := scanSubscription(db.Conn(ctx, r.q).QueryRow(ctx, subscriptionSelect+` WHERE s.id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeSubscriptionNotFound)
	}
	return s, nil
}

func (r *subscriptionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Subscription, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, subscriptionSelect+` WHERE s.patient_id = $1
		ORDER BY s.date_debut DESC, s.created_at DESC`, patientID)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, s)
	}
	return out, db.Classify(rows.Err())
}

func (r *subscriptionRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx,
		`UPDATE patient_subscriptions SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeSubscriptionNotFound, "subscription not found")
	}
	return nil
}

// -- Paiement Repository --

type paiementRepoPG struct {
	q db.Querier
}

func NewPaiementRepo(q db.Querier) PaiementRepository {
	return &paiementRepoPG{q: q}
}

const paiementCols = `id, patient_id, subscription_id, session_id, montant, type, mode_paiement,
	reference, notes, date_paiement, received_by, created_at`

func scanPaiement(row pgx.Row) (*Paiement, error) {
	var p Paiement
	if err := row.Scan(&p.ID, &p.PatientID, &p.SubscriptionID, &p.SessionID, &p.Montant, &p.Type, &p.ModePaiement,
		&p.Reference, &p.Notes, &p.DatePaiement, &p.ReceivedBy, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paiementRepoPG) Create(ctx context.Context, p *Paiement) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO paiements (id, patient_id, subscription_id, session_id, montant, type, mode_paiement,
			reference, notes, received_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING date_paiement, created_at`,
		p.ID, p.PatientID, p.SubscriptionID, p.SessionID, p.Montant, p.Type, p.ModePaiement,
		p.Reference, p.Notes, p.ReceivedBy,
	).Scan(&p.DatePaiement, &p.CreatedAt)
	return db.Classify(err)
}

func (r *paiementRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Paiement, error) {
	p, err := scanPaiement(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+paiementCols+` FROM paiements WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodePaymentNotFound)
	}
	return p, nil
}

func (r *paiementRepoPG) List(ctx context.Context, f PaiementFilter, limit, offset int) ([]*Paiement, int, error) {
	where := ` WHERE 1=1`
	var args []any
	idx := 1
	if f.PatientID != nil {
		where += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", idx)
		args = append(args, f.Type)
		idx++
	}
	if f.From != nil {
		where += fmt.Sprintf(" AND date_paiement >= $%d", idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where += fmt.Sprintf(" AND date_paiement < $%d", idx)
		args = append(args, f.To.AddDate(0, 0, 1))
		idx++
	}

	var total int
	if err := db.Conn(ctx, r.q).QueryRow(ctx, `SELECT COUNT(*) FROM paiements`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}
	query := `SELECT ` + paiementCols + ` FROM paiements` + where +
		fmt.Sprintf(` ORDER BY date_paiement DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.q).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()
	var out []*Paiement
	for rows.Next() {
		p, err := scanPaiement(rows)
		if err != nil {
			return nil, 0, db.Classify(err)
		}
		out = append(out, p)
	}
	return out, total, db.Classify(rows.Err())
}

func (r *paiementRepoPG) Totals(ctx context.Context, from, to time.Time) (*PaymentStats, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT type, COALESCE(mode_paiement, ''), COUNT(*), COALESCE(SUM(montant), 0)
		FROM paiements
		WHERE date_paiement >= $1 AND date_paiement < $2
		GROUP BY type, mode_paiement`, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	stats := &PaymentStats{ByType: map[string]int64{}, ByMode: map[string]int64{}}
	for rows.Next() {
		var (
			typ, mode string
			count     int
			sum       int64
		)
		if err := rows.Scan(&typ, &mode, &count, &sum); err != nil {
			return nil, db.Classify(err)
		}
		stats.Count += count
		stats.Total += sum
		stats.ByType[typ] += sum
		if mode != "" {
			stats.ByMode[mode] += sum
		}
	}
	return stats, db.Classify(rows.Err())
}

// -- Promotion Repository --

type promotionRepoPG struct {
	q db.Querier
}

func NewPromotionRepo(q db.Querier) PromotionRepository {
	return &promotionRepoPG{q: q}
}

const promotionCols = `id, nom, type, valeur, zone_ids, date_debut, date_fin, is_active, created_at, updated_at`

func scanPromotion(row pgx.Row) (*Promotion, error) {
	var p Promotion
	if err := row.Scan(&p.ID, &p.Nom, &p.Type, &p.Valeur, &p.ZoneIDs, &p.DateDebut, &p.DateFin,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.ZoneIDs == nil {
		p.ZoneIDs = []uuid.UUID{}
	}
	return &p, nil
}

func (r *promotionRepoPG) Create(ctx context.Context, p *Promotion) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO promotions (id, nom, type, valeur, zone_ids, date_debut, date_fin, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.Nom, p.Type, p.Valeur, p.ZoneIDs, p.DateDebut, p.DateFin, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err)
}

func (r *promotionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	p, err := scanPromotion(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+promotionCols+` FROM promotions WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodePromotionNotFound)
	}
	return p, nil
}

func (r *promotionRepoPG) Update(ctx context.Context, p *Promotion) error {
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		UPDATE promotions SET nom = $2, type = $3, valeur = $4, zone_ids = $5, date_debut = $6,
			date_fin = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Nom, p.Type, p.Valeur, p.ZoneIDs, p.DateDebut, p.DateFin, p.IsActive,
	).Scan(&p.UpdatedAt)
	return db.NotFoundAs(err, apperr.CodePromotionNotFound)
}

func (r *promotionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodePromotionNotFound, "promotion not found")
	}
	return nil
}

func (r *promotionRepoPG) List(ctx context.Context, includeInactive bool) ([]*Promotion, error) {
	query := `SELECT ` + promotionCols + ` FROM promotions`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	rows, err := db.Conn(ctx, r.q).Query(ctx, query+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var out []*Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		out = append(out, p)
	}
	return out, db.Classify(rows.Err())
}
