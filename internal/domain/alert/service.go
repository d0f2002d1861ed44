package alert

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/domain/patient"
	"github.com/lasercare/clinic/internal/domain/preconsultation"
	"github.com/lasercare/clinic/internal/domain/session"
)

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Evaluations returns the patient's latest pre-consultation, or nil.
type Evaluations interface {
	ForPatient(ctx context.Context, patientID uuid.UUID) (*preconsultation.PreConsultation, error)
}

type History interface {
	ZoneActivity(ctx context.Context, patientID uuid.UUID) ([]*session.ZoneActivity, error)
	ListSideEffects(ctx context.Context, patientID uuid.UUID) ([]*session.SideEffect, error)
}

// Service composes alerts from read-only projections of the patient's
// evaluation and treatment history.
type Service struct {
	patients    PatientLookup
	evaluations Evaluations
	history     History
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(patients PatientLookup, evaluations Evaluations, history History, logger zerolog.Logger) *Service {
	return &Service{
		patients:    patients,
		evaluations: evaluations,
		history:     history,
		logger:      logger,
		now:         time.Now,
	}
}

// PatientAlerts returns the patient's alerts in a stable order: evaluation
// status, contraindications, ineligible zones, spacing, side effects.
func (s *Service) PatientAlerts(ctx context.Context, patientID uuid.UUID) ([]Alert, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	pc, err := s.evaluations.ForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	activity, err := s.history.ZoneActivity(ctx, patientID)
	if err != nil {
		return nil, err
	}
	effects, err := s.history.ListSideEffects(ctx, patientID)
	if err != nil {
		return nil, err
	}

	alerts := []Alert{}
	alerts = append(alerts, evaluationAlerts(pc)...)
	alerts = append(alerts, spacingAlerts(activity, s.now())...)
	alerts = append(alerts, sideEffectAlerts(effects)...)

	errors, warnings := Count(alerts)
	s.logger.Debug().
		Str("patient_id", patientID.String()).
		Int("errors", errors).
		Int("warnings", warnings).
		Msg("alerts computed")
	return alerts, nil
}

func (s *Service) ZoneAlerts(ctx context.Context, patientID, zoneID uuid.UUID) ([]Alert, error) {
	alerts, err := s.PatientAlerts(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return ForZone(alerts, zoneID), nil
}

func (s *Service) Summary(ctx context.Context, patientID uuid.UUID) (*Summary, error) {
	alerts, err := s.PatientAlerts(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sum := Summarize(alerts)
	return &sum, nil
}

func evaluationAlerts(pc *preconsultation.PreConsultation) []Alert {
	if pc == nil {
		return []Alert{{
			Type:     TypeNoPreConsultation,
			Severity: SeverityWarning,
			Message:  "Aucune pré-consultation enregistrée",
			Details:  map[string]any{},
		}}
	}

	var out []Alert
	if pc.Status != preconsultation.StatusValidated && pc.Status != preconsultation.StatusPatientCreated {
		out = append(out, Alert{
			Type:     TypePreConsultationPending,
			Severity: SeverityWarning,
			Message:  "Pré-consultation non validée",
			Details:  map[string]any{"pre_consultation_id": pc.ID, "status": pc.Status},
		})
	}

	if pc.IsPregnant {
		out = append(out, contraindication(SeverityError, "Patiente enceinte", "pregnancy"))
	}
	if pc.IsBreastfeeding {
		out = append(out,
			contraindication(SeverityError, "Patiente allaitante", "breastfeeding"),
			Alert{
				Type:     TypeBreastfeedingSun,
				Severity: SeverityWarning,
				Message:  "Allaitement : éviter toute exposition solaire des zones traitées",
				Details:  map[string]any{},
			})
	}
	if pc.PregnancyPlanning {
		out = append(out, contraindication(SeverityWarning, "Projet de grossesse", "pregnancy_planning"))
	}

	for _, z := range pc.Zones {
		if z.IsEligible {
			continue
		}
		zoneID, nom := z.ZoneID, z.ZoneNom
		details := map[string]any{"pre_consultation_zone_id": z.ID}
		if z.Observations != nil {
			details["observations"] = *z.Observations
		}
		out = append(out, Alert{
			Type:     TypeIneligibleZone,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Zone %s non éligible", nom),
			ZoneID:   &zoneID,
			ZoneNom:  &nom,
			Details:  details,
		})
	}
	return out
}

func contraindication(severity, msg, reason string) Alert {
	return Alert{
		Type:     TypeContraindication,
		Severity: severity,
		Message:  msg,
		Details:  map[string]any{"reason": reason},
	}
}

// daysSince counts whole days elapsed, rounding down.
func daysSince(t, now time.Time) int {
	return int(math.Floor(now.Sub(t).Hours() / 24))
}

func spacingAlerts(activity []*session.ZoneActivity, now time.Time) []Alert {
	var out []Alert
	for _, a := range activity {
		if a.LastSession.After(now) {
			continue
		}
		days := daysSince(a.LastSession, now)
		var typ, msg string
		switch {
		case days > RegrowthDays:
			typ, msg = TypeSpacing, fmt.Sprintf("%s : dernière séance il y a %d jours, risque de repousse", a.ZoneNom, days)
		case days < MinSpacingDays:
			typ, msg = TypeSpacingTooClose, fmt.Sprintf("%s : séances trop rapprochées (%d jours)", a.ZoneNom, days)
		default:
			continue
		}
		zoneID, nom := a.ZoneID, a.ZoneNom
		out = append(out, Alert{
			Type:     typ,
			Severity: SeverityWarning,
			Message:  msg,
			ZoneID:   &zoneID,
			ZoneNom:  &nom,
			Details: map[string]any{
				"patient_zone_id": a.PatientZoneID,
				"days_since_last": days,
				"last_session":    a.LastSession,
			},
		})
	}
	return out
}

// sideEffectAlerts surfaces one side effect per zone. effects are newest
// first, so the kept report is the most recent.
func sideEffectAlerts(effects []*session.SideEffect) []Alert {
	var out []Alert
	seen := make(map[uuid.UUID]bool)
	for _, se := range effects {
		if seen[se.ZoneID] {
			continue
		}
		seen[se.ZoneID] = true

		severity := SeverityWarning
		details := map[string]any{
			"side_effect_id": se.ID,
			"session_id":     se.SessionID,
			"date_seance":    se.DateSeance,
			"description":    se.Description,
		}
		if se.Severity != nil {
			details["severity"] = *se.Severity
			if *se.Severity == session.SeveritySevere {
				severity = SeverityError
			}
		}
		zoneID, nom := se.ZoneID, se.ZoneNom
		out = append(out, Alert{
			Type:     TypeSideEffect,
			Severity: severity,
			Message:  fmt.Sprintf("Effet secondaire antérieur sur %s : %s", nom, se.Description),
			ZoneID:   &zoneID,
			ZoneNom:  &nom,
			Details:  details,
		})
	}
	return out
}
