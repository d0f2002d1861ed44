package patient

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/domain/zone"
	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/httpx"
	"github.com/lasercare/clinic/pkg/textnorm"
)

// minMatchDigits is the shortest phone that is trusted for identity matching.
const minMatchDigits = 6

// ZoneCatalog resolves zone definitions.
type ZoneCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*zone.Definition, error)
}

type Service struct {
	repo    Repository
	zones   ZoneRepository
	catalog ZoneCatalog
	logger  zerolog.Logger
}

func NewService(repo Repository, zones ZoneRepository, catalog ZoneCatalog, logger zerolog.Logger) *Service {
	return &Service{repo: repo, zones: zones, catalog: catalog, logger: logger}
}

// NewCardCode returns a fresh "PC" + 8 upper-case hex card code.
func NewCardCode() string {
	id := uuid.New()
	return "PC" + strings.ToUpper(hex.EncodeToString(id[:4]))
}

// Create is the external creation path. Patients only come into existence
// through pre-consultation promotion or queue conflict resolution.
func (s *Service) Create(_ context.Context, _ CreateRequest) (*Patient, error) {
	return nil, apperr.ValidationCode(apperr.CodeDirectCreate,
		"patients are created from a validated pre-consultation")
}

// CreateInternal persists a patient, allocating a card code when none is given.
func (s *Service) CreateInternal(ctx context.Context, in NewPatient) (*Patient, error) {
	p := &Patient{
		CodeCarte:     strings.TrimSpace(in.CodeCarte),
		Nom:           strings.TrimSpace(in.Nom),
		Prenom:        strings.TrimSpace(in.Prenom),
		DateNaissance: in.DateNaissance,
		Sexe:          in.Sexe,
		Telephone:     in.Telephone,
		Email:         in.Email,
		Adresse:       in.Adresse,
		Commune:       in.Commune,
		Wilaya:        in.Wilaya,
		Notes:         in.Notes,
		Phototype:     in.Phototype,
		Status:        in.Status,
		CreatedBy:     in.CreatedBy,
	}
	if p.CodeCarte == "" {
		p.CodeCarte = NewCardCode()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Str("code_carte", p.CodeCarte).Msg("patient created")
	return p, nil
}

func validate(p *Patient) error {
	if p.Nom == "" || p.Prenom == "" {
		return apperr.Validation("nom and prenom are required")
	}
	if p.Sexe != nil && *p.Sexe != "M" && *p.Sexe != "F" {
		return apperr.Validation("sexe must be M or F")
	}
	if p.Phototype != nil && !validPhototypes[*p.Phototype] {
		return apperr.Validation("phototype must be one of I..VI")
	}
	if !validStatuses[p.Status] {
		return apperr.Validationf("unknown status %q", p.Status)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByCard(ctx context.Context, code string) (*Patient, error) {
	return s.repo.GetByCard(ctx, strings.TrimSpace(code))
}

func (s *Service) Search(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, strings.TrimSpace(q), limit, offset)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Nom != nil {
		p.Nom = strings.TrimSpace(*req.Nom)
	}
	if req.Prenom != nil {
		p.Prenom = strings.TrimSpace(*req.Prenom)
	}
	if req.DateNaissance != nil {
		d, err := httpx.ParseDate("date_naissance", req.DateNaissance)
		if err != nil {
			return nil, err
		}
		p.DateNaissance = d
	}
	if req.Sexe != nil {
		p.Sexe = req.Sexe
	}
	if req.Telephone != nil {
		p.Telephone = req.Telephone
	}
	if req.Email != nil {
		p.Email = req.Email
	}
	if req.Adresse != nil {
		p.Adresse = req.Adresse
	}
	if req.Commune != nil {
		p.Commune = req.Commune
	}
	if req.Wilaya != nil {
		p.Wilaya = req.Wilaya
	}
	if req.Notes != nil {
		p.Notes = req.Notes
	}
	if req.Phototype != nil {
		p.Phototype = req.Phototype
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the patient; zones, sessions, answers and documents cascade.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient deleted")
	return nil
}

// FindByPhone narrows by the indexed phone suffix, then keeps only
// full-digit matches.
func (s *Service) FindByPhone(ctx context.Context, phone string) ([]*Patient, error) {
	digits := textnorm.Digits(phone)
	if digits == "" {
		return nil, nil
	}
	candidates, err := s.repo.ListByPhoneSuffix(ctx, textnorm.PhoneSuffix(digits))
	if err != nil {
		return nil, err
	}
	var out []*Patient
	for _, p := range candidates {
		if textnorm.SamePhone(p.Phone(), digits) {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindByName returns patients with the same normalized nom and prenom.
func (s *Service) FindByName(ctx context.Context, nom, prenom string) ([]*Patient, error) {
	hits, err := s.repo.ListByName(ctx, nom)
	if err != nil {
		return nil, err
	}
	var out []*Patient
	for _, p := range hits {
		if textnorm.SameName(p.Nom, nom) && textnorm.SameName(p.Prenom, prenom) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Candidates collects the patients that could be the person described by
// nom, prenom and phone: full phone matches, exact normalized name matches,
// and same-nom patients whose prenom contains the given one. The result is
// deduplicated and keeps discovery order.
func (s *Service) Candidates(ctx context.Context, nom, prenom, phone string) ([]*Patient, error) {
	seen := make(map[uuid.UUID]bool)
	var out []*Patient
	add := func(p *Patient) {
		if !seen[p.ID] {
			seen[p.ID] = true
			out = append(out, p)
		}
	}

	if len(textnorm.Digits(phone)) >= minMatchDigits {
		byPhone, err := s.FindByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		for _, p := range byPhone {
			add(p)
		}
	}

	if strings.TrimSpace(nom) == "" {
		return out, nil
	}
	byNom, err := s.repo.ListByName(ctx, nom)
	if err != nil {
		return nil, err
	}
	want := textnorm.Name(prenom)
	for _, p := range byNom {
		got := textnorm.Name(p.Prenom)
		if got == want || (want != "" && strings.Contains(got, want)) {
			add(p)
		}
	}
	return out, nil
}

// -- Patient zones --

func (s *Service) ListZones(ctx context.Context, patientID uuid.UUID) ([]*Zone, error) {
	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.zones.ListByPatient(ctx, patientID)
}

// GetZone returns the patient zone only when it belongs to patientID.
func (s *Service) GetZone(ctx context.Context, patientID, patientZoneID uuid.UUID) (*Zone, error) {
	z, err := s.zones.GetByID(ctx, patientZoneID)
	if err != nil {
		return nil, err
	}
	if z.PatientID != patientID {
		return nil, apperr.NotFound(apperr.CodePatientZoneNotFound, "zone does not belong to patient")
	}
	return z, nil
}

func (s *Service) AddZone(ctx context.Context, patientID uuid.UUID, req ZoneRequest) (*Zone, error) {
	if req.SeancesTotal < 0 {
		return nil, apperr.Validation("seances_total must not be negative")
	}
	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	def, err := s.catalog.Get(ctx, req.ZoneID)
	if err != nil {
		return nil, err
	}
	z := &Zone{
		PatientID:    patientID,
		ZoneID:       def.ID,
		ZoneCode:     def.Code,
		ZoneNom:      def.Nom,
		SeancesTotal: req.SeancesTotal,
		Notes:        req.Notes,
	}
	if err := s.zones.Create(ctx, z); err != nil {
		return nil, err
	}
	return z, nil
}

// UpdateZone changes the quota; it may shrink but never below what was used.
func (s *Service) UpdateZone(ctx context.Context, patientID, patientZoneID uuid.UUID, req ZoneUpdateRequest) (*Zone, error) {
	z, err := s.GetZone(ctx, patientID, patientZoneID)
	if err != nil {
		return nil, err
	}
	if req.SeancesTotal != nil {
		if *req.SeancesTotal < z.SeancesUsed {
			return nil, apperr.Validationf("seances_total cannot be lower than seances_used (%d)", z.SeancesUsed).
				WithDetails("seances_used", z.SeancesUsed)
		}
		z.SeancesTotal = *req.SeancesTotal
	}
	if req.Notes != nil {
		z.Notes = req.Notes
	}
	if err := s.zones.Update(ctx, z); err != nil {
		return nil, err
	}
	return z, nil
}

func (s *Service) DeleteZone(ctx context.Context, patientID, patientZoneID uuid.UUID) error {
	if _, err := s.GetZone(ctx, patientID, patientZoneID); err != nil {
		return err
	}
	return s.zones.Delete(ctx, patientZoneID)
}

// ConsumeSession records one session on the patient zone.
func (s *Service) ConsumeSession(ctx context.Context, patientZoneID uuid.UUID) error {
	return s.zones.IncrementUsed(ctx, patientZoneID)
}
