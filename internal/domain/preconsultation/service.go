package preconsultation

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/domain/patient"
	"github.com/lasercare/clinic/internal/domain/questionnaire"
	"github.com/lasercare/clinic/internal/domain/zone"
	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
	"github.com/lasercare/clinic/internal/platform/httpx"
)

// ZoneCatalog resolves zone definitions.
type ZoneCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*zone.Definition, error)
}

// QuestionSource lists the questions currently asked.
type QuestionSource interface {
	Active(ctx context.Context) ([]*questionnaire.Question, error)
}

// PatientRegistry is the part of the patient registry used by promotion.
type PatientRegistry interface {
	CreateInternal(ctx context.Context, in patient.NewPatient) (*patient.Patient, error)
	AddZone(ctx context.Context, patientID uuid.UUID, req patient.ZoneRequest) (*patient.Zone, error)
}

type Service struct {
	repo      Repository
	zones     ZoneRepository
	responses ResponseRepository
	catalog   ZoneCatalog
	questions QuestionSource
	patients  PatientRegistry
	tx        db.TxRunner
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, zones ZoneRepository, responses ResponseRepository, catalog ZoneCatalog,
	questions QuestionSource, patients PatientRegistry, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		zones:     zones,
		responses: responses,
		catalog:   catalog,
		questions: questions,
		patients:  patients,
		tx:        tx,
		logger:    logger,
		now:       time.Now,
	}
}

func invalidTransition(pc *PreConsultation, action string) error {
	return apperr.InvalidState(apperr.CodeInvalidTransition, "cannot "+action+" a pre-consultation in status "+pc.Status).
		WithDetails("status", pc.Status)
}

// apply copies the supplied fields onto pc.
func apply(pc *PreConsultation, f Fields) error {
	if f.Sexe != nil {
		pc.Sexe = *f.Sexe
	}
	if f.Age != nil {
		pc.Age = *f.Age
	}
	if f.StatutMarital != nil {
		pc.StatutMarital = f.StatutMarital
	}
	if f.IsPregnant != nil {
		pc.IsPregnant = *f.IsPregnant
	}
	if f.IsBreastfeeding != nil {
		pc.IsBreastfeeding = *f.IsBreastfeeding
	}
	if f.PregnancyPlanning != nil {
		pc.PregnancyPlanning = *f.PregnancyPlanning
	}
	if f.HasPreviousLaser != nil {
		pc.HasPreviousLaser = *f.HasPreviousLaser
	}
	if f.PreviousLaserClarityII != nil {
		pc.PreviousLaserClarityII = *f.PreviousLaserClarityII
	}
	if f.PreviousLaserSessions != nil {
		pc.PreviousLaserSessions = f.PreviousLaserSessions
	}
	if f.PreviousLaserBrand != nil {
		pc.PreviousLaserBrand = f.PreviousLaserBrand
	}
	if f.HairRemovalMethods != nil {
		pc.HairRemovalMethods = f.HairRemovalMethods
	}
	if f.MedicalHistory != nil {
		pc.MedicalHistory = f.MedicalHistory
	}
	if f.DermatologicalConditions != nil {
		pc.DermatologicalConditions = f.DermatologicalConditions
	}
	if f.HasCurrentTreatments != nil {
		pc.HasCurrentTreatments = *f.HasCurrentTreatments
	}
	if f.CurrentTreatmentsDetails != nil {
		pc.CurrentTreatmentsDetails = f.CurrentTreatmentsDetails
	}
	if f.HasMoles != nil {
		pc.HasMoles = *f.HasMoles
	}
	if f.MolesLocation != nil {
		pc.MolesLocation = f.MolesLocation
	}
	if f.HasBirthmarks != nil {
		pc.HasBirthmarks = *f.HasBirthmarks
	}
	if f.BirthmarksLocation != nil {
		pc.BirthmarksLocation = f.BirthmarksLocation
	}
	if f.RecentPeeling != nil {
		pc.RecentPeeling = *f.RecentPeeling
	}
	if f.PeelingZone != nil {
		pc.PeelingZone = f.PeelingZone
	}
	if f.Phototype != nil {
		pc.Phototype = f.Phototype
	}
	if f.Notes != nil {
		pc.Notes = f.Notes
	}

	dates := []struct {
		name string
		raw  *string
		dst  **time.Time
	}{
		{"date_naissance", f.DateNaissance, &pc.DateNaissance},
		{"recent_peeling_date", f.RecentPeelingDate, &pc.RecentPeelingDate},
		{"last_laser_date", f.LastLaserDate, &pc.LastLaserDate},
		{"last_hair_removal_date", f.LastHairRemovalDate, &pc.LastHairRemovalDate},
	}
	for _, d := range dates {
		if d.raw == nil {
			continue
		}
		t, err := httpx.ParseDate(d.name, d.raw)
		if err != nil {
			return err
		}
		*d.dst = t
	}
	return nil
}

func validate(pc *PreConsultation) error {
	if pc.Sexe != "M" && pc.Sexe != "F" {
		return apperr.Validation("sexe is required and must be M or F")
	}
	if pc.Age <= 0 || pc.Age >= 130 {
		return apperr.Validation("age is required and must be between 1 and 129")
	}
	if pc.Phototype != nil {
		switch *pc.Phototype {
		case "I", "II", "III", "IV", "V", "VI":
		default:
			return apperr.Validation("phototype must be one of I..VI")
		}
	}
	return nil
}

// Create opens a draft evaluation, optionally with its first zones.
func (s *Service) Create(ctx context.Context, req CreateRequest, createdBy *uuid.UUID) (*PreConsultation, error) {
	if req.Sexe == nil || req.Age == nil {
		return nil, apperr.Validation("sexe and age are required")
	}
	pc := &PreConsultation{Status: StatusDraft, CreatedBy: createdBy}
	if err := apply(pc, req.Fields); err != nil {
		return nil, err
	}
	if err := validate(pc); err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool, len(req.Zones))
	for _, z := range req.Zones {
		if seen[z.ZoneID] {
			return nil, apperr.Duplicate(apperr.CodeDuplicateZone, "zone listed twice")
		}
		seen[z.ZoneID] = true
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, pc); err != nil {
			return err
		}
		for _, in := range req.Zones {
			z, err := s.addZone(ctx, pc.ID, in)
			if err != nil {
				return err
			}
			pc.Zones = append(pc.Zones, z)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if pc.Zones == nil {
		pc.Zones = []*Zone{}
	}
	return pc, nil
}

// Get returns the pre-consultation with its zones.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*PreConsultation, error) {
	pc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withZones(ctx, pc)
}

// lock reads a pre-consultation under a row lock. Callers must be inside a
// transaction so concurrent transitions on the same row serialize.
func (s *Service) lock(ctx context.Context, id uuid.UUID) (*PreConsultation, error) {
	pc, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withZones(ctx, pc)
}

func (s *Service) withZones(ctx context.Context, pc *PreConsultation) (*PreConsultation, error) {
	zones, err := s.zones.List(ctx, pc.ID)
	if err != nil {
		return nil, err
	}
	if zones == nil {
		zones = []*Zone{}
	}
	pc.Zones = zones
	return pc, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*PreConsultation, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validationf("unknown status %q", f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// ForPatient returns the latest evaluation of the patient with its zones, or
// nil when the patient has none.
func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID) (*PreConsultation, error) {
	pc, err := s.repo.LatestForPatient(ctx, patientID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.withZones(ctx, pc)
}

// Update edits a draft. Unsupplied fields are left intact.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*PreConsultation, error) {
	pc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pc.Status != StatusDraft {
		return nil, invalidTransition(pc, "edit")
	}
	if err := apply(pc, req.Fields); err != nil {
		return nil, err
	}
	if err := validate(pc); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, pc); err != nil {
		return nil, err
	}
	return s.withZones(ctx, pc)
}

// Delete is allowed for drafts and rejected evaluations.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	pc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if pc.Status != StatusDraft && pc.Status != StatusRejected {
		return invalidTransition(pc, "delete")
	}
	return s.repo.Delete(ctx, id)
}

// -- Zones --

func (s *Service) draft(ctx context.Context, id uuid.UUID) (*PreConsultation, error) {
	pc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pc.Status != StatusDraft {
		return nil, invalidTransition(pc, "change zones of")
	}
	return pc, nil
}

func (s *Service) addZone(ctx context.Context, pcID uuid.UUID, in ZoneInput) (*Zone, error) {
	def, err := s.catalog.Get(ctx, in.ZoneID)
	if err != nil {
		return nil, err
	}
	z := &Zone{
		PreConsultationID: pcID,
		ZoneID:            def.ID,
		ZoneNom:           def.Nom,
		IsEligible:        in.IsEligible == nil || *in.IsEligible,
		Observations:      in.Observations,
	}
	if err := s.zones.Add(ctx, z); err != nil {
		return nil, err
	}
	return z, nil
}

func (s *Service) AddZone(ctx context.Context, id uuid.UUID, in ZoneInput) (*Zone, error) {
	if _, err := s.draft(ctx, id); err != nil {
		return nil, err
	}
	return s.addZone(ctx, id, in)
}

func (s *Service) UpdateZone(ctx context.Context, id, zoneID uuid.UUID, req ZoneUpdateRequest) (*Zone, error) {
	if _, err := s.draft(ctx, id); err != nil {
		return nil, err
	}
	z, err := s.zones.Get(ctx, id, zoneID)
	if err != nil {
		return nil, err
	}
	if req.IsEligible != nil {
		z.IsEligible = *req.IsEligible
	}
	if req.Observations != nil {
		z.Observations = req.Observations
	}
	if err := s.zones.Update(ctx, z); err != nil {
		return nil, err
	}
	return z, nil
}

func (s *Service) DeleteZone(ctx context.Context, id, zoneID uuid.UUID) error {
	if _, err := s.draft(ctx, id); err != nil {
		return err
	}
	return s.zones.Delete(ctx, id, zoneID)
}

// -- Workflow --

// Submit sends a draft with at least one zone for validation.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*PreConsultation, error) {
	var pc *PreConsultation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if pc, err = s.lock(ctx, id); err != nil {
			return err
		}
		if pc.Status != StatusDraft {
			return apperr.InvalidState(apperr.CodeNotSubmittable, "only drafts can be submitted").
				WithDetails("status", pc.Status)
		}
		if len(pc.Zones) == 0 {
			return apperr.InvalidState(apperr.CodeNotSubmittable, "at least one zone is required")
		}
		pc.Status = StatusPendingValidation
		return s.repo.Update(ctx, pc)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("pre_consultation_id", id.String()).Msg("pre-consultation submitted")
	return pc, nil
}

func (s *Service) Validate(ctx context.Context, id, validatorID uuid.UUID) (*PreConsultation, error) {
	var pc *PreConsultation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if pc, err = s.lock(ctx, id); err != nil {
			return err
		}
		if pc.Status != StatusPendingValidation {
			return invalidTransition(pc, "validate")
		}
		now := s.now().UTC()
		pc.Status = StatusValidated
		pc.ValidatedBy = &validatorID
		pc.ValidatedAt = &now
		pc.RejectionReason = nil
		return s.repo.Update(ctx, pc)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("pre_consultation_id", id.String()).Str("validated_by", validatorID.String()).
		Msg("pre-consultation validated")
	return pc, nil
}

func (s *Service) Reject(ctx context.Context, id, rejectorID uuid.UUID, reason string) (*PreConsultation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("a rejection reason is required")
	}
	var pc *PreConsultation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if pc, err = s.lock(ctx, id); err != nil {
			return err
		}
		if pc.Status != StatusPendingValidation {
			return invalidTransition(pc, "reject")
		}
		now := s.now().UTC()
		pc.Status = StatusRejected
		pc.ValidatedBy = &rejectorID
		pc.ValidatedAt = &now
		pc.RejectionReason = &reason
		return s.repo.Update(ctx, pc)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("pre_consultation_id", id.String()).Msg("pre-consultation rejected")
	return pc, nil
}

// CreatePatient promotes a validated evaluation into a patient in one
// transaction. Requested zones not marked eligible are skipped.
func (s *Service) CreatePatient(ctx context.Context, id uuid.UUID, req CreatePatientRequest, actorID *uuid.UUID) (*patient.Patient, error) {
	birth, err := httpx.ParseDate("date_naissance", req.DateNaissance)
	if err != nil {
		return nil, err
	}
	if req.SeancesPerZone < 0 {
		return nil, apperr.Validation("seances_per_zone must not be negative")
	}
	perZone := req.SeancesPerZone
	if perZone == 0 {
		perZone = DefaultSeancesPerZone
	}

	var created *patient.Patient
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		pc, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if pc.PatientID != nil || pc.Status == StatusPatientCreated {
			return apperr.InvalidState(apperr.CodeAlreadyPromoted, "a patient already exists for this pre-consultation")
		}
		if pc.Status != StatusValidated {
			return invalidTransition(pc, "create a patient from")
		}
		if birth == nil {
			birth = pc.DateNaissance
		}
		sexe := pc.Sexe

		created, err = s.patients.CreateInternal(ctx, patient.NewPatient{
			CodeCarte:     req.CodeCarte,
			Nom:           req.Nom,
			Prenom:        req.Prenom,
			DateNaissance: birth,
			Sexe:          &sexe,
			Telephone:     req.Telephone,
			Email:         req.Email,
			Adresse:       req.Adresse,
			Commune:       req.Commune,
			Wilaya:        req.Wilaya,
			Notes:         req.Notes,
			Phototype:     pc.Phototype,
			Status:        patient.StatusActive,
			CreatedBy:     actorID,
		})
		if err != nil {
			return err
		}

		eligible := make(map[uuid.UUID]bool, len(pc.Zones))
		for _, z := range pc.Zones {
			if z.IsEligible {
				eligible[z.ZoneID] = true
			}
		}
		done := make(map[uuid.UUID]bool, len(req.ZoneIDs))
		for _, zoneID := range req.ZoneIDs {
			if !eligible[zoneID] || done[zoneID] {
				continue
			}
			done[zoneID] = true
			if _, err := s.patients.AddZone(ctx, created.ID, patient.ZoneRequest{ZoneID: zoneID, SeancesTotal: perZone}); err != nil {
				return err
			}
		}

		pc.PatientID = &created.ID
		pc.Status = StatusPatientCreated
		return s.repo.Update(ctx, pc)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("pre_consultation_id", id.String()).Str("patient_id", created.ID.String()).
		Msg("patient created from pre-consultation")
	return created, nil
}

// -- Questionnaire --

func (s *Service) GetQuestionnaire(ctx context.Context, id uuid.UUID) (*Questionnaire, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	questions, err := s.questions.Active(ctx)
	if err != nil {
		return nil, err
	}
	responses, err := s.responses.List(ctx, id)
	if err != nil {
		return nil, err
	}
	if responses == nil {
		responses = []*Response{}
	}

	answers := make(map[uuid.UUID]json.RawMessage, len(responses))
	for _, r := range responses {
		answers[r.QuestionID] = r.Reponse
	}
	out := &Questionnaire{Responses: responses}
	for _, q := range questions {
		if !q.IsRequired {
			continue
		}
		out.RequiredCount++
		if questionnaire.IsAnswered(answers[q.ID]) {
			out.AnsweredRequired++
		}
	}
	out.IsComplete = out.AnsweredRequired == out.RequiredCount
	return out, nil
}

// UpsertResponses stores one answer per question. Unknown or inactive
// question ids are ignored; answers of the wrong shape are rejected.
func (s *Service) UpsertResponses(ctx context.Context, id uuid.UUID, inputs []ResponseInput) (*Questionnaire, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	questions, err := s.questions.Active(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*questionnaire.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var accepted []ResponseInput
	for _, in := range inputs {
		q, ok := byID[in.QuestionID]
		if !ok {
			continue
		}
		if err := questionnaire.ValidateAnswer(q, in.Reponse); err != nil {
			return nil, err
		}
		accepted = append(accepted, in)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, in := range accepted {
			if err := s.responses.Upsert(ctx, id, in.QuestionID, in.Reponse); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetQuestionnaire(ctx, id)
}
