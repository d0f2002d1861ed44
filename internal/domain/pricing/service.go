package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/domain/patient"
	"github.com/lasercare/clinic/internal/domain/zone"
	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/auth"
	"github.com/lasercare/clinic/internal/platform/db"
	"github.com/lasercare/clinic/internal/platform/httpx"
)

// ZoneCatalog resolves zone definitions and their list prices.
type ZoneCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*zone.Definition, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*zone.Definition, error)
}

// PatientRegistry is used to check patients and credit pack zones.
type PatientRegistry interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	ListZones(ctx context.Context, patientID uuid.UUID) ([]*patient.Zone, error)
	AddZone(ctx context.Context, patientID uuid.UUID, req patient.ZoneRequest) (*patient.Zone, error)
	UpdateZone(ctx context.Context, patientID, patientZoneID uuid.UUID, req patient.ZoneUpdateRequest) (*patient.Zone, error)
}

type Service struct {
	packs         PackRepository
	subscriptions SubscriptionRepository
	paiements     PaiementRepository
	promotions    PromotionRepository
	catalog       ZoneCatalog
	patients      PatientRegistry
	tx            db.TxRunner
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(packs PackRepository, subscriptions SubscriptionRepository, paiements PaiementRepository,
	promotions PromotionRepository, catalog ZoneCatalog, patients PatientRegistry, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		packs:         packs,
		subscriptions: subscriptions,
		paiements:     paiements,
		promotions:    promotions,
		catalog:       catalog,
		patients:      patients,
		tx:            tx,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *Service) today() time.Time {
	return truncateDay(s.now())
}

// checkZones deduplicates ids and verifies every one exists.
func (s *Service) checkZones(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return out, nil
	}
	defs, err := s.catalog.GetMany(ctx, out)
	if err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID]bool, len(defs))
	for _, d := range defs {
		found[d.ID] = true
	}
	for _, id := range out {
		if !found[id] {
			return nil, apperr.NotFound(apperr.CodeZoneNotFound, "zone not found").WithDetails("zone_id", id.String())
		}
	}
	return out, nil
}

// -- Packs --

func (s *Service) packFrom(ctx context.Context, p *Pack, req PackRequest) error {
	req.Nom = strings.TrimSpace(req.Nom)
	if req.Nom == "" {
		return apperr.Validation("nom is required")
	}
	if req.Prix < 0 {
		return apperr.Validation("prix must not be negative")
	}
	if req.DureeJours != nil && *req.DureeJours <= 0 {
		return apperr.Validation("duree_jours must be positive")
	}
	if req.SeancesPerZone < 0 {
		return apperr.Validation("seances_per_zone must be positive")
	}
	if req.SeancesPerZone == 0 {
		req.SeancesPerZone = DefaultSeancesPerZone
	}
	zones, err := s.checkZones(ctx, req.ZoneIDs)
	if err != nil {
		return err
	}
	p.Nom = req.Nom
	p.Description = req.Description
	p.Prix = req.Prix
	p.ZoneIDs = zones
	p.DureeJours = req.DureeJours
	p.SeancesPerZone = req.SeancesPerZone
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return nil
}

func (s *Service) CreatePack(ctx context.Context, req PackRequest) (*Pack, error) {
	p := &Pack{IsActive: true}
	if err := s.packFrom(ctx, p, req); err != nil {
		return nil, err
	}
	if err := s.packs.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPack(ctx context.Context, id uuid.UUID) (*Pack, error) {
	return s.packs.GetByID(ctx, id)
}

func (s *Service) ListPacks(ctx context.Context, includeInactive bool) ([]*Pack, error) {
	return s.packs.List(ctx, includeInactive)
}

func (s *Service) UpdatePack(ctx context.Context, id uuid.UUID, req PackRequest) (*Pack, error) {
	p, err := s.packs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.packFrom(ctx, p, req); err != nil {
		return nil, err
	}
	if err := s.packs.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePack deactivates the pack; existing subscriptions keep referencing it.
func (s *Service) DeletePack(ctx context.Context, id uuid.UUID) error {
	p, err := s.packs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.IsActive = false
	return s.packs.Update(ctx, p)
}

// -- Subscriptions --

func (s *Service) ListSubscriptions(ctx context.Context, patientID uuid.UUID) ([]SubscriptionView, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	subs, err := s.subscriptions.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	today := s.today()
	out := make([]SubscriptionView, len(subs))
	for i, sub := range subs {
		out[i] = sub.View(today)
	}
	return out, nil
}

// CreateSubscription enrolls a patient. A pack subscription credits each of
// the pack's zones with seances_per_zone sessions, adding the zone to the
// patient when missing.
func (s *Service) CreateSubscription(ctx context.Context, patientID uuid.UUID, req SubscriptionRequest) (*SubscriptionView, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = SubscriptionSeance
		if req.PackID != nil {
			req.Type = SubscriptionPack
		}
	}
	if !subscriptionTypes[req.Type] {
		return nil, apperr.Validationf("type must be gold, pack or seance, got %q", req.Type)
	}
	if req.Type == SubscriptionPack && req.PackID == nil {
		return nil, apperr.Validation("pack_id is required for a pack subscription")
	}
	debut, err := httpx.ParseDate("date_debut", req.DateDebut)
	if err != nil {
		return nil, err
	}
	fin, err := httpx.ParseDate("date_fin", req.DateFin)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		PatientID: patientID,
		PackID:    req.PackID,
		Type:      req.Type,
		DateDebut: s.today(),
		DateFin:   fin,
		IsActive:  true,
		Notes:     req.Notes,
	}
	if debut != nil {
		sub.DateDebut = *debut
	}

	var pack *Pack
	if req.PackID != nil {
		pack, err = s.packs.GetByID(ctx, *req.PackID)
		if err != nil {
			return nil, err
		}
		if !pack.IsActive {
			return nil, apperr.Validation("pack is no longer offered")
		}
		sub.PackNom = &pack.Nom
		sub.MontantPaye = pack.Prix
		if pack.DureeJours != nil {
			end := sub.DateDebut.AddDate(0, 0, *pack.DureeJours)
			sub.DateFin = &end
		}
	}
	if req.MontantPaye != nil {
		sub.MontantPaye = *req.MontantPaye
	}
	if sub.MontantPaye < 0 {
		return nil, apperr.Validation("montant_paye must not be negative")
	}
	if sub.DateFin != nil && sub.DateFin.Before(sub.DateDebut) {
		return nil, apperr.Validation("date_fin must not precede date_debut")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.subscriptions.Create(ctx, sub); err != nil {
			return err
		}
		if pack == nil || req.Type != SubscriptionPack {
			return nil
		}
		return s.creditPackZones(ctx, patientID, pack)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("subscription_id", sub.ID.String()).
		Str("patient_id", patientID.String()).
		Str("type", sub.Type).
		Msg("subscription created")
	v := sub.View(s.today())
	return &v, nil
}

func (s *Service) creditPackZones(ctx context.Context, patientID uuid.UUID, pack *Pack) error {
	existing, err := s.patients.ListZones(ctx, patientID)
	if err != nil {
		return err
	}
	byZone := make(map[uuid.UUID]*patient.Zone, len(existing))
	for _, z := range existing {
		byZone[z.ZoneID] = z
	}
	for _, zoneID := range pack.ZoneIDs {
		if z, ok := byZone[zoneID]; ok {
			total := z.SeancesTotal + pack.SeancesPerZone
			if _, err := s.patients.UpdateZone(ctx, patientID, z.ID, patient.ZoneUpdateRequest{SeancesTotal: &total}); err != nil {
				return err
			}
			continue
		}
		if _, err := s.patients.AddZone(ctx, patientID, patient.ZoneRequest{ZoneID: zoneID, SeancesTotal: pack.SeancesPerZone}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) DeactivateSubscription(ctx context.Context, id uuid.UUID) (*SubscriptionView, error) {
	if err := s.subscriptions.Deactivate(ctx, id); err != nil {
		return nil, err
	}
	sub, err := s.subscriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := sub.View(s.today())
	return &v, nil
}

// -- Paiements --

func (s *Service) CreatePaiement(ctx context.Context, req PaiementRequest, actor *auth.CurrentUser) (*Paiement, error) {
	if req.Montant < 0 {
		return nil, apperr.Validation("montant must not be negative")
	}
	if !contains(PaymentTypes, req.Type) {
		return nil, apperr.Validationf("type must be one of %s", strings.Join(PaymentTypes, ", "))
	}
	if req.ModePaiement != nil && *req.ModePaiement == "" {
		req.ModePaiement = nil
	}
	if req.ModePaiement != nil && !contains(PaymentModes, *req.ModePaiement) {
		return nil, apperr.Validationf("mode_paiement must be one of %s", strings.Join(PaymentModes, ", "))
	}
	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if req.SubscriptionID != nil {
		sub, err := s.subscriptions.GetByID(ctx, *req.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub.PatientID != req.PatientID {
			return nil, apperr.NotFound(apperr.CodeSubscriptionNotFound, "subscription does not belong to patient")
		}
	}
	p := &Paiement{
		PatientID:      req.PatientID,
		SubscriptionID: req.SubscriptionID,
		SessionID:      req.SessionID,
		Montant:        req.Montant,
		Type:           req.Type,
		ModePaiement:   req.ModePaiement,
		Reference:      req.Reference,
		Notes:          req.Notes,
	}
	if actor != nil {
		p.ReceivedBy = &actor.ID
	}
	if err := s.paiements.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("paiement_id", p.ID.String()).
		Str("patient_id", p.PatientID.String()).
		Int64("montant", p.Montant).
		Str("type", p.Type).
		Msg("payment recorded")
	return p, nil
}

func (s *Service) GetPaiement(ctx context.Context, id uuid.UUID) (*Paiement, error) {
	return s.paiements.GetByID(ctx, id)
}

func (s *Service) ListPaiements(ctx context.Context, f PaiementFilter, limit, offset int) ([]*Paiement, int, error) {
	if f.Type != "" && !contains(PaymentTypes, f.Type) {
		return nil, 0, apperr.Validationf("unknown payment type %q", f.Type)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, apperr.Validation("to must not precede from")
	}
	return s.paiements.List(ctx, f, limit, offset)
}

func (s *Service) Methods() PaymentMethods {
	return PaymentMethods{Types: PaymentTypes, Modes: PaymentModes}
}

// Stats sums payments over [from, to]; missing bounds default to the
// current month so far.
func (s *Service) Stats(ctx context.Context, from, to *time.Time) (*PaymentStats, error) {
	today := s.today()
	start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := today
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}
	if end.Before(start) {
		return nil, apperr.Validation("to must not precede from")
	}
	stats, err := s.paiements.Totals(ctx, start, end)
	if err != nil {
		return nil, err
	}
	for _, t := range PaymentTypes {
		if _, ok := stats.ByType[t]; !ok {
			stats.ByType[t] = 0
		}
	}
	for _, m := range PaymentModes {
		if _, ok := stats.ByMode[m]; !ok {
			stats.ByMode[m] = 0
		}
	}
	return stats, nil
}

// -- Promotions --

func (s *Service) promotionFrom(ctx context.Context, p *Promotion, req PromotionRequest) error {
	req.Nom = strings.TrimSpace(req.Nom)
	if req.Nom == "" {
		return apperr.Validation("nom is required")
	}
	switch req.Type {
	case PromotionPourcentage:
		if req.Valeur > maxPercentageDiscount {
			return apperr.Validation("a percentage promotion cannot exceed 100")
		}
	case PromotionMontant:
	default:
		return apperr.Validationf("type must be pourcentage or montant, got %q", req.Type)
	}
	if req.Valeur < 0 {
		return apperr.Validation("valeur must not be negative")
	}
	debut, err := httpx.ParseDate("date_debut", req.DateDebut)
	if err != nil {
		return err
	}
	fin, err := httpx.ParseDate("date_fin", req.DateFin)
	if err != nil {
		return err
	}
	if debut != nil && fin != nil && fin.Before(*debut) {
		return apperr.Validation("date_fin must not precede date_debut")
	}
	zones, err := s.checkZones(ctx, req.ZoneIDs)
	if err != nil {
		return err
	}
	p.Nom = req.Nom
	p.Type = req.Type
	p.Valeur = req.Valeur
	p.ZoneIDs = zones
	p.DateDebut = debut
	p.DateFin = fin
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return nil
}

func (s *Service) CreatePromotion(ctx context.Context, req PromotionRequest) (*Promotion, error) {
	p := &Promotion{IsActive: true}
	if err := s.promotionFrom(ctx, p, req); err != nil {
		return nil, err
	}
	if err := s.promotions.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPromotion(ctx context.Context, id uuid.UUID) (*Promotion, error) {
	return s.promotions.GetByID(ctx, id)
}

func (s *Service) ListPromotions(ctx context.Context, includeInactive bool) ([]*Promotion, error) {
	return s.promotions.List(ctx, includeInactive)
}

func (s *Service) UpdatePromotion(ctx context.Context, id uuid.UUID, req PromotionRequest) (*Promotion, error) {
	p, err := s.promotions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.promotionFrom(ctx, p, req); err != nil {
		return nil, err
	}
	if err := s.promotions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePromotion(ctx context.Context, id uuid.UUID) error {
	return s.promotions.Delete(ctx, id)
}

// ActivePromotions returns promotions whose flag and window hold today.
func (s *Service) ActivePromotions(ctx context.Context) ([]*Promotion, error) {
	all, err := s.promotions.List(ctx, false)
	if err != nil {
		return nil, err
	}
	today := s.today()
	out := make([]*Promotion, 0, len(all))
	for _, p := range all {
		if p.IsCurrentlyActive(today) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ZonePrice prices a zone at original, or at the catalog price when
// original is nil.
func (s *Service) ZonePrice(ctx context.Context, zoneID uuid.UUID, original *int64) (*ZonePrice, error) {
	def, err := s.catalog.Get(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	var base int64
	switch {
	case original != nil:
		base = *original
	case def.Prix != nil:
		base = *def.Prix
	}
	if base < 0 {
		return nil, apperr.Validation("price must not be negative")
	}
	promos, err := s.promotions.List(ctx, false)
	if err != nil {
		return nil, err
	}
	price := BestPrice(zoneID, base, promos, s.today())
	return &price, nil
}
