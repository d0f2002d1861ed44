package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/lasercare/clinic/internal/domain/patient"
)

// Schedule entry statuses.
const (
	StatusExpected    = "expected"
	StatusCheckedIn   = "checked_in"
	StatusInTreatment = "in_treatment"
	StatusCompleted   = "completed"
	StatusNoShow      = "no_show"
)

// Waiting queue statuses.
const (
	QueueWaiting     = "waiting"
	QueueInTreatment = "in_treatment"
	QueueDone        = "done"
	QueueNoShow      = "no_show"
	QueueLeft        = "left"
)

// Appointment lengths.
const (
	DurationCourt = "court"
	DurationMoyen = "moyen"
	DurationLong  = "long"
)

var durationAliases = map[string]string{
	"court": DurationCourt, "courte": DurationCourt, "short": DurationCourt, "c": DurationCourt,
	"moyen": DurationMoyen, "moyenne": DurationMoyen, "medium": DurationMoyen, "m": DurationMoyen,
	"long": DurationLong, "longue": DurationLong, "l": DurationLong,
}

// Entry is one line of the day's roster.
type Entry struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	Date             time.Time   `db:"date" json:"date"`
	PatientNom       string      `db:"patient_nom" json:"patient_nom"`
	PatientPrenom    string      `db:"patient_prenom" json:"patient_prenom"`
	PatientTelephone *string     `db:"patient_telephone" json:"patient_telephone,omitempty"`
	PatientID        *uuid.UUID  `db:"patient_id" json:"patient_id,omitempty"`
	DoctorName       string      `db:"doctor_name" json:"doctor_name"`
	DoctorID         *uuid.UUID  `db:"doctor_id" json:"doctor_id,omitempty"`
	Specialite       *string     `db:"specialite" json:"specialite,omitempty"`
	DurationType     *string     `db:"duration_type" json:"duration_type,omitempty"`
	StartTime        string      `db:"start_time" json:"start_time"`
	EndTime          *string     `db:"end_time" json:"end_time,omitempty"`
	ZoneIDs          []uuid.UUID `db:"zone_ids" json:"zone_ids,omitempty"`
	Notes            *string     `db:"notes" json:"notes,omitempty"`
	Status           string      `db:"status" json:"status"`
	UploadedBy       *uuid.UUID  `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

func (e *Entry) PatientName() string {
	if e.PatientPrenom == "" {
		return e.PatientNom
	}
	return e.PatientPrenom + " " + e.PatientNom
}

func (e *Entry) Phone() string {
	if e.PatientTelephone == nil {
		return ""
	}
	return *e.PatientTelephone
}

// QueueEntry is a checked-in patient waiting for or receiving treatment.
type QueueEntry struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ScheduleID  *uuid.UUID `db:"schedule_id" json:"schedule_id,omitempty"`
	PatientID   *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	PatientName string     `db:"patient_name" json:"patient_name"`
	DoctorID    *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	DoctorName  string     `db:"doctor_name" json:"doctor_name"`
	BoxID       *uuid.UUID `db:"box_id" json:"box_id,omitempty"`
	BoxNom      *string    `db:"box_nom" json:"box_nom,omitempty"`
	CheckedInAt time.Time  `db:"checked_in_at" json:"checked_in_at"`
	Position    int        `db:"position" json:"position"`
	Status      string     `db:"status" json:"status"`
	CalledAt    *time.Time `db:"called_at" json:"called_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Transition carries the columns a queue status change may set.
type Transition struct {
	BoxID       *uuid.UUID
	BoxNom      *string
	CalledAt    *time.Time
	CompletedAt *time.Time
}

// DisplayEntry is what the waiting-room screen shows.
type DisplayEntry struct {
	PatientName string  `json:"patient_name"`
	Position    int     `json:"position"`
	Status      string  `json:"status"`
	BoxNom      *string `json:"box_nom"`
	DoctorName  string  `json:"doctor_name"`
}

// PhoneConflict is a roster row whose phone matched a patient with a
// different name.
type PhoneConflict struct {
	Row             int       `json:"row"`
	ScheduleEntryID uuid.UUID `json:"schedule_entry_id"`
	RowNom          string    `json:"row_nom"`
	RowPrenom       string    `json:"row_prenom"`
	Telephone       string    `json:"telephone"`
	PatientID       uuid.UUID `json:"patient_id"`
	PatientNom      string    `json:"patient_nom"`
	PatientPrenom   string    `json:"patient_prenom"`
}

type UploadResult struct {
	Entries        []*Entry        `json:"entries"`
	PhoneMatched   int             `json:"phone_matched"`
	PhoneConflicts []PhoneConflict `json:"phone_conflicts"`
	SkippedRows    []SkippedRow    `json:"skipped_rows"`
	TotalRows      int             `json:"total_rows"`
}

// CheckInResult is either a queue entry or, when several patients could be
// the person on the roster, a conflict envelope.
type CheckInResult struct {
	Entry    *QueueEntry
	Conflict *Conflict
}

type Conflict struct {
	Conflict        bool               `json:"conflict"`
	ScheduleEntryID uuid.UUID          `json:"schedule_entry_id"`
	PatientNom      string             `json:"patient_nom"`
	PatientPrenom   string             `json:"patient_prenom"`
	Candidates      []*patient.Patient `json:"candidates"`
}

type ResolveRequest struct {
	ScheduleEntryID uuid.UUID  `json:"schedule_entry_id"`
	PatientID       *uuid.UUID `json:"patient_id"`
	Telephone       *string    `json:"telephone"`
}

type ManualRequest struct {
	Date         *string     `json:"date"`
	PatientID    *uuid.UUID  `json:"patient_id"`
	Nom          string      `json:"nom"`
	Prenom       string      `json:"prenom"`
	Telephone    *string     `json:"telephone"`
	DoctorID     *uuid.UUID  `json:"doctor_id"`
	DoctorName   string      `json:"doctor_name"`
	Specialite   *string     `json:"specialite"`
	DurationType *string     `json:"duration_type"`
	StartTime    string      `json:"start_time"`
	EndTime      *string     `json:"end_time"`
	ZoneIDs      []uuid.UUID `json:"zone_ids"`
	Notes        *string     `json:"notes"`
}

type ReassignRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
}
