package pricing

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSeancesPerZone applies to packs created without an explicit quota.
const DefaultSeancesPerZone = 6

// Subscription kinds.
const (
	SubscriptionGold   = "gold"
	SubscriptionPack   = "pack"
	SubscriptionSeance = "seance"
)

var subscriptionTypes = map[string]bool{SubscriptionGold: true, SubscriptionPack: true, SubscriptionSeance: true}

// Payment kinds and modes.
const (
	PaymentEncaissement   = "encaissement"
	PaymentPriseEnCharge  = "prise_en_charge"
	PaymentHorsCarte      = "hors_carte"
	ModeEspeces           = "especes"
	ModeCarte             = "carte"
	ModeVirement          = "virement"
	PromotionPourcentage  = "pourcentage"
	PromotionMontant      = "montant"
	maxPercentageDiscount = 100
)

// PaymentTypes and PaymentModes are ordered for display.
var (
	PaymentTypes = []string{PaymentEncaissement, PaymentPriseEnCharge, PaymentHorsCarte}
	PaymentModes = []string{ModeEspeces, ModeCarte, ModeVirement}
)

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// -- Pack --

type Pack struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	Nom            string      `db:"nom" json:"nom"`
	Description    *string     `db:"description" json:"description,omitempty"`
	Prix           int64       `db:"prix" json:"prix"`
	ZoneIDs        []uuid.UUID `db:"zone_ids" json:"zone_ids"`
	DureeJours     *int        `db:"duree_jours" json:"duree_jours,omitempty"`
	SeancesPerZone int         `db:"seances_per_zone" json:"seances_per_zone"`
	IsActive       bool        `db:"is_active" json:"is_active"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

type PackRequest struct {
	Nom            string      `json:"nom"`
	Description    *string     `json:"description"`
	Prix           int64       `json:"prix"`
	ZoneIDs        []uuid.UUID `json:"zone_ids"`
	DureeJours     *int        `json:"duree_jours"`
	SeancesPerZone int         `json:"seances_per_zone"`
	IsActive       *bool       `json:"is_active"`
}

// -- Subscription --

type Subscription struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	PackID      *uuid.UUID `db:"pack_id" json:"pack_id,omitempty"`
	PackNom     *string    `db:"-" json:"pack_nom,omitempty"`
	Type        string     `db:"type" json:"type"`
	DateDebut   time.Time  `db:"date_debut" json:"date_debut"`
	DateFin     *time.Time `db:"date_fin" json:"date_fin,omitempty"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	MontantPaye int64      `db:"montant_paye" json:"montant_paye"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsExpired reports whether today is past the end date.
func (s *Subscription) IsExpired(today time.Time) bool {
	return s.DateFin != nil && truncateDay(today).After(truncateDay(*s.DateFin))
}

// DaysRemaining is nil for open-ended subscriptions and never negative.
func (s *Subscription) DaysRemaining(today time.Time) *int {
	if s.DateFin == nil {
		return nil
	}
	days := int(truncateDay(*s.DateFin).Sub(truncateDay(today)).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// SubscriptionView adds the computed expiry fields.
type SubscriptionView struct {
	*Subscription
	IsExpired     bool `json:"is_expired"`
	DaysRemaining *int `json:"days_remaining"`
}

func (s *Subscription) View(today time.Time) SubscriptionView {
	return SubscriptionView{Subscription: s, IsExpired: s.IsExpired(today), DaysRemaining: s.DaysRemaining(today)}
}

type SubscriptionRequest struct {
	PackID      *uuid.UUID `json:"pack_id"`
	Type        string     `json:"type"`
	DateDebut   *string    `json:"date_debut"`
	DateFin     *string    `json:"date_fin"`
	MontantPaye *int64     `json:"montant_paye"`
	Notes       *string    `json:"notes"`
}

// -- Paiement --

// Paiement is immutable once stored.
type Paiement struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	SubscriptionID *uuid.UUID `db:"subscription_id" json:"subscription_id,omitempty"`
	SessionID      *uuid.UUID `db:"session_id" json:"session_id,omitempty"`
	Montant        int64      `db:"montant" json:"montant"`
	Type           string     `db:"type" json:"type"`
	ModePaiement   *string    `db:"mode_paiement" json:"mode_paiement,omitempty"`
	Reference      *string    `db:"reference" json:"reference,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	DatePaiement   time.Time  `db:"date_paiement" json:"date_paiement"`
	ReceivedBy     *uuid.UUID `db:"received_by" json:"received_by,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type PaiementRequest struct {
	PatientID      uuid.UUID  `json:"patient_id"`
	SubscriptionID *uuid.UUID `json:"subscription_id"`
	SessionID      *uuid.UUID `json:"session_id"`
	Montant        int64      `json:"montant"`
	Type           string     `json:"type"`
	ModePaiement   *string    `json:"mode_paiement"`
	Reference      *string    `json:"reference"`
	Notes          *string    `json:"notes"`
}

// PaiementFilter bounds are calendar days, both inclusive.
type PaiementFilter struct {
	PatientID *uuid.UUID
	Type      string
	From      *time.Time
	To        *time.Time
}

type PaymentStats struct {
	Total  int64            `json:"total"`
	Count  int              `json:"count"`
	ByType map[string]int64 `json:"by_type"`
	ByMode map[string]int64 `json:"by_mode"`
}

type PaymentMethods struct {
	Types []string `json:"types"`
	Modes []string `json:"modes"`
}

// -- Promotion --

type Promotion struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	Nom       string      `db:"nom" json:"nom"`
	Type      string      `db:"type" json:"type"`
	Valeur    int64       `db:"valeur" json:"valeur"`
	ZoneIDs   []uuid.UUID `db:"zone_ids" json:"zone_ids"`
	DateDebut *time.Time  `db:"date_debut" json:"date_debut,omitempty"`
	DateFin   *time.Time  `db:"date_fin" json:"date_fin,omitempty"`
	IsActive  bool        `db:"is_active" json:"is_active"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// IsCurrentlyActive checks the flag and the optional date window, bounds
// included.
func (p *Promotion) IsCurrentlyActive(today time.Time) bool {
	if !p.IsActive {
		return false
	}
	day := truncateDay(today)
	if p.DateDebut != nil && day.Before(truncateDay(*p.DateDebut)) {
		return false
	}
	if p.DateFin != nil && day.After(truncateDay(*p.DateFin)) {
		return false
	}
	return true
}

// AppliesToZone is true for every zone when ZoneIDs is empty.
func (p *Promotion) AppliesToZone(zoneID uuid.UUID) bool {
	if len(p.ZoneIDs) == 0 {
		return true
	}
	for _, id := range p.ZoneIDs {
		if id == zoneID {
			return true
		}
	}
	return false
}

// Apply returns the discounted price, never below zero.
func (p *Promotion) Apply(original int64) int64 {
	var final int64
	switch p.Type {
	case PromotionPourcentage:
		final = original - original*p.Valeur/100
	default:
		final = original - p.Valeur
	}
	if final < 0 {
		return 0
	}
	return final
}

type PromotionRequest struct {
	Nom       string      `json:"nom"`
	Type      string      `json:"type"`
	Valeur    int64       `json:"valeur"`
	ZoneIDs   []uuid.UUID `json:"zone_ids"`
	DateDebut *string     `json:"date_debut"`
	DateFin   *string     `json:"date_fin"`
	IsActive  *bool       `json:"is_active"`
}

type AppliedPromotion struct {
	ID     uuid.UUID `json:"id"`
	Nom    string    `json:"nom"`
	Type   string    `json:"type"`
	Valeur int64     `json:"valeur"`
}

type ZonePrice struct {
	ZoneID            uuid.UUID          `json:"zone_id"`
	Original          int64              `json:"original"`
	Final             int64              `json:"final"`
	Discount          int64              `json:"discount"`
	PromotionsApplied []AppliedPromotion `json:"promotions_applied"`
}

// BestPrice picks the single promotion yielding the lowest final price for
// the zone. Promotions do not stack.
func BestPrice(zoneID uuid.UUID, original int64, promos []*Promotion, today time.Time) ZonePrice {
	out := ZonePrice{ZoneID: zoneID, Original: original, Final: original, PromotionsApplied: []AppliedPromotion{}}
	var best *Promotion
	for _, p := range promos {
		if !p.IsCurrentlyActive(today) || !p.AppliesToZone(zoneID) {
			continue
		}
		if f := p.Apply(original); f < out.Final {
			out.Final = f
			best = p
		}
	}
	if best != nil {
		out.PromotionsApplied = append(out.PromotionsApplied,
			AppliedPromotion{ID: best.ID, Nom: best.Nom, Type: best.Type, Valeur: best.Valeur})
	}
	out.Discount = out.Original - out.Final
	return out
}
