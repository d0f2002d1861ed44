package alert

import "github.com/google/uuid"

// Alert types.
const (
	TypeNoPreConsultation      = "no_pre_consultation"
	TypePreConsultationPending = "pre_consultation_pending"
	TypeContraindication       = "contraindication"
	TypeBreastfeedingSun       = "breastfeeding_sun_warning"
	TypeIneligibleZone         = "ineligible_zone"
	TypeSpacing                = "spacing"
	TypeSpacingTooClose        = "spacing_too_close"
	TypeSideEffect             = "side_effect"
)

const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Session spacing thresholds, in days.
const (
	RegrowthDays   = 60
	MinSpacingDays = 14
)

// Alert is a derived clinical warning. It is computed on read and never
// stored. ZoneID is the catalog zone it concerns, nil for patient-wide
// alerts.
type Alert struct {
	Type     string         `json:"type"`
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	ZoneID   *uuid.UUID     `json:"zone_id"`
	ZoneNom  *string        `json:"zone_nom"`
	Details  map[string]any `json:"details"`
}

func (a Alert) IsError() bool { return a.Severity == SeverityError }

// Summary condenses a patient's alerts for badges and list views.
type Summary struct {
	Total     int     `json:"total"`
	Errors    int     `json:"errors"`
	Warnings  int     `json:"warnings"`
	HasAlerts bool    `json:"has_alerts"`
	HasErrors bool    `json:"has_errors"`
	Alerts    []Alert `json:"alerts"`
}

// Count returns the number of error and warning alerts.
func Count(alerts []Alert) (errors, warnings int) {
	for _, a := range alerts {
		if a.IsError() {
			errors++
		} else {
			warnings++
		}
	}
	return errors, warnings
}

func HasAlerts(alerts []Alert) bool { return len(alerts) > 0 }

func HasErrors(alerts []Alert) bool {
	errors, _ := Count(alerts)
	return errors > 0
}

// ForZone keeps patient-wide alerts and those about zoneID.
func ForZone(alerts []Alert, zoneID uuid.UUID) []Alert {
	out := []Alert{}
	for _, a := range alerts {
		if a.ZoneID == nil || *a.ZoneID == zoneID {
			out = append(out, a)
		}
	}
	return out
}

func Summarize(alerts []Alert) Summary {
	errors, warnings := Count(alerts)
	return Summary{
		Total:     len(alerts),
		Errors:    errors,
		Warnings:  warnings,
		HasAlerts: HasAlerts(alerts),
		HasErrors: errors > 0,
		Alerts:    alerts,
	}
}
