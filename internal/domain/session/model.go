package session

import (
	"time"

	"github.com/google/uuid"
)

// Severity values of a side effect report.
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

var severities = map[string]bool{SeverityMild: true, SeverityModerate: true, SeveritySevere: true}

// Session is an immutable treatment record. Only notes and photos change after
// creation.
type Session struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	PatientID       uuid.UUID      `db:"patient_id" json:"patient_id"`
	PatientZoneID   uuid.UUID      `db:"patient_zone_id" json:"patient_zone_id"`
	ZoneNom         string         `db:"-" json:"zone_nom,omitempty"`
	PraticienID     uuid.UUID      `db:"praticien_id" json:"praticien_id"`
	PraticienNom    string         `db:"-" json:"praticien_nom,omitempty"`
	DateSeance      time.Time      `db:"date_seance" json:"date_seance"`
	TypeLaser       string         `db:"type_laser" json:"type_laser"`
	Parametres      map[string]any `db:"parametres" json:"parametres"`
	SpotSize        *float64       `db:"spot_size" json:"spot_size,omitempty"`
	Fluence         *float64       `db:"fluence" json:"fluence,omitempty"`
	PulseDurationMs *float64       `db:"pulse_duration_ms" json:"pulse_duration_ms,omitempty"`
	FrequencyHz     *float64       `db:"frequency_hz" json:"frequency_hz,omitempty"`
	Notes           *string        `db:"notes" json:"notes,omitempty"`
	DureeMinutes    *int           `db:"duree_minutes" json:"duree_minutes,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	Photos          []*Photo       `db:"-" json:"photos"`
}

// Photo is a stored image attached to a session or a side effect.
type Photo struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OwnerID     uuid.UUID `db:"-" json:"-"`
	Filename    string    `db:"filename" json:"filename"`
	StorageKey  string    `db:"storage_key" json:"-"`
	ContentType *string   `db:"content_type" json:"content_type,omitempty"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	URL         string    `db:"-" json:"url"`
}

// SideEffect is a post-treatment reaction reported against a session.
type SideEffect struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	SessionID     uuid.UUID  `db:"session_id" json:"session_id"`
	PatientZoneID uuid.UUID  `db:"-" json:"patient_zone_id"`
	ZoneID        uuid.UUID  `db:"-" json:"zone_id"`
	ZoneNom       string     `db:"-" json:"zone_nom"`
	DateSeance    time.Time  `db:"-" json:"date_seance"`
	Description   string     `db:"description" json:"description"`
	Severity      *string    `db:"severity" json:"severity,omitempty"`
	CreatedBy     *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	Photos        []*Photo   `db:"-" json:"photos"`
}

// ZoneActivity is the most recent session on one patient zone.
type ZoneActivity struct {
	PatientZoneID uuid.UUID `json:"patient_zone_id"`
	ZoneID        uuid.UUID `json:"zone_id"`
	ZoneNom       string    `json:"zone_nom"`
	LastSession   time.Time `json:"last_session"`
}

// LastParams is the laser configuration of the latest session on a zone.
type LastParams struct {
	SessionID       uuid.UUID      `json:"session_id"`
	DateSeance      time.Time      `json:"date_seance"`
	TypeLaser       string         `json:"type_laser"`
	Parametres      map[string]any `json:"parametres"`
	SpotSize        *float64       `json:"spot_size,omitempty"`
	Fluence         *float64       `json:"fluence,omitempty"`
	PulseDurationMs *float64       `json:"pulse_duration_ms,omitempty"`
	FrequencyHz     *float64       `json:"frequency_hz,omitempty"`
	DureeMinutes    *int           `json:"duree_minutes,omitempty"`
}

// CreateRequest records a treatment. TempPhotos are names returned by the
// staging upload, "<uuid><ext>".
type CreateRequest struct {
	PatientID       uuid.UUID      `json:"patient_id"`
	PatientZoneID   uuid.UUID      `json:"patient_zone_id"`
	PraticienID     *uuid.UUID     `json:"praticien_id"`
	DateSeance      *time.Time     `json:"date_seance"`
	TypeLaser       string         `json:"type_laser"`
	Parametres      map[string]any `json:"parametres"`
	SpotSize        *float64       `json:"spot_size"`
	Fluence         *float64       `json:"fluence"`
	PulseDurationMs *float64       `json:"pulse_duration_ms"`
	FrequencyHz     *float64       `json:"frequency_hz"`
	Notes           *string        `json:"notes"`
	DureeMinutes    *int           `json:"duree_minutes"`
	TempPhotos      []string       `json:"temp_photos"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

type SideEffectRequest struct {
	Description string  `json:"description"`
	Severity    *string `json:"severity"`
}

// TempPhoto identifies a staged upload.
type TempPhoto struct {
	ID       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
}

func photoURL(id uuid.UUID) string {
	return "/api/v1/sessions/photos/" + id.String()
}

func sideEffectPhotoURL(id uuid.UUID) string {
	return "/api/v1/sessions/side-effects/photos/" + id.String()
}
