package schedule

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/domain/admin"
	"github.com/lasercare/clinic/internal/domain/box"
	"github.com/lasercare/clinic/internal/domain/patient"
	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
	"github.com/lasercare/clinic/internal/platform/events"
	"github.com/lasercare/clinic/internal/platform/httpx"
	"github.com/lasercare/clinic/internal/platform/metrics"
	"github.com/lasercare/clinic/pkg/textnorm"
)

// minPhoneDigits is the shortest roster phone trusted for matching.
const minPhoneDigits = 6

// queueLockKey serializes waiting position allocation.
const queueLockKey int64 = 0x7175657565

const defaultAbsenceDays = 30

// PatientDirectory is the slice of the patient registry used for identity
// resolution.
type PatientDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	FindByPhone(ctx context.Context, phone string) ([]*patient.Patient, error)
	FindByName(ctx context.Context, nom, prenom string) ([]*patient.Patient, error)
	Candidates(ctx context.Context, nom, prenom, phone string) ([]*patient.Patient, error)
	CreateInternal(ctx context.Context, in patient.NewPatient) (*patient.Patient, error)
}

// StaffDirectory resolves doctors.
type StaffDirectory interface {
	ListActiveUsers(ctx context.Context) ([]*admin.User, error)
	GetPractitioner(ctx context.Context, id uuid.UUID) (*admin.User, error)
}

// BoxLookup returns the box a user holds, or nil.
type BoxLookup interface {
	ForUser(ctx context.Context, userID uuid.UUID) (*box.Assignment, error)
}

type Publisher interface {
	Publish(channel string, ev events.Event) int
}

// Locker takes a transaction-scoped lock.
type Locker func(ctx context.Context, key int64) error

type Service struct {
	schedules Repository
	queue     QueueRepository
	patients  PatientDirectory
	staff     StaffDirectory
	boxes     BoxLookup
	bus       Publisher
	tx        db.TxRunner
	lock      Locker
	metrics   *metrics.WorkflowMetrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(schedules Repository, queue QueueRepository, patients PatientDirectory, staff StaffDirectory,
	boxes BoxLookup, bus Publisher, tx db.TxRunner, lock Locker, m *metrics.WorkflowMetrics, logger zerolog.Logger) *Service {
	if lock == nil {
		lock = func(context.Context, int64) error { return nil }
	}
	return &Service{
		schedules: schedules,
		queue:     queue,
		patients:  patients,
		staff:     staff,
		boxes:     boxes,
		bus:       bus,
		tx:        tx,
		lock:      lock,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// today is the calendar date used for DATE columns.
func (s *Service) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayStart is local midnight, the lower bound for timestamps of today.
func (s *Service) dayStart() time.Time {
	now := s.now()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// -- Roster --

// Upload imports a roster workbook. Every date present in the sheet has its
// entries replaced as a whole.
func (s *Service) Upload(ctx context.Context, r io.Reader, uploadedBy uuid.UUID) (*UploadResult, error) {
	roster, err := ParseRoster(r)
	if err != nil {
		return nil, err
	}
	staff, err := s.staff.ListActiveUsers(ctx)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{
		Entries:        []*Entry{},
		PhoneConflicts: []PhoneConflict{},
		SkippedRows:    roster.Skipped,
		TotalRows:      roster.Total,
	}
	byDay := make(map[time.Time][]*Entry)
	seen := make(map[uuid.UUID]bool, len(roster.Rows))
	for _, row := range roster.Rows {
		id := rosterKey(row)
		if seen[id] {
			result.SkippedRows = append(result.SkippedRows, SkippedRow{Row: row.Line, Reason: SkipDuplicate})
			continue
		}
		seen[id] = true
		e := &Entry{
			ID:               id,
			Date:             row.Date,
			PatientNom:       row.Nom,
			PatientPrenom:    row.Prenom,
			PatientTelephone: row.Telephone,
			DoctorName:       row.Doctor,
			Specialite:       row.Specialite,
			DurationType:     row.DurationType,
			StartTime:        row.Start,
			EndTime:          row.End,
			Notes:            row.Note,
			Status:           StatusExpected,
			UploadedBy:       &uploadedBy,
		}
		if doc := MatchDoctor(row.Doctor, staff); doc != nil {
			e.DoctorID = &doc.ID
		}
		matched, conflict, err := s.matchPatient(ctx, e)
		if err != nil {
			return nil, err
		}
		if matched {
			result.PhoneMatched++
		}
		if conflict != nil {
			conflict.Row = row.Line
			result.PhoneConflicts = append(result.PhoneConflicts, *conflict)
		}
		byDay[e.Date] = append(byDay[e.Date], e)
		result.Entries = append(result.Entries, e)
	}

	sort.Slice(result.SkippedRows, func(i, j int) bool { return result.SkippedRows[i].Row < result.SkippedRows[j].Row })

	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, d := range days {
			if err := s.schedules.ReplaceDay(ctx, d, byDay[d]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveRoster(len(result.Entries), result.PhoneMatched, len(result.PhoneConflicts), len(result.SkippedRows))
	s.logger.Info().
		Int("entries", len(result.Entries)).
		Int("days", len(days)).
		Int("phone_matched", result.PhoneMatched).
		Int("phone_conflicts", len(result.PhoneConflicts)).
		Int("skipped", len(result.SkippedRows)).
		Str("uploaded_by", uploadedBy.String()).
		Msg("schedule uploaded")
	return result, nil
}

// matchPatient binds e to a known patient. A phone hit whose name also
// matches is confident; a phone hit under another name is still bound but
// reported as a conflict. Without a usable phone, a unique exact name match
// is bound.
func (s *Service) matchPatient(ctx context.Context, e *Entry) (bool, *PhoneConflict, error) {
	phone := e.Phone()
	if len(textnorm.Digits(phone)) >= minPhoneDigits {
		hits, err := s.patients.FindByPhone(ctx, phone)
		if err != nil {
			return false, nil, err
		}
		if len(hits) > 0 {
			for _, p := range hits {
				if textnorm.SameName(p.Nom, e.PatientNom) && textnorm.SameName(p.Prenom, e.PatientPrenom) {
					e.PatientID = &p.ID
					return true, nil, nil
				}
			}
			p := hits[0]
			e.PatientID = &p.ID
			return false, &PhoneConflict{
				ScheduleEntryID: e.ID,
				RowNom:          e.PatientNom,
				RowPrenom:       e.PatientPrenom,
				Telephone:       phone,
				PatientID:       p.ID,
				PatientNom:      p.Nom,
				PatientPrenom:   p.Prenom,
			}, nil
		}
	}
	hits, err := s.patients.FindByName(ctx, e.PatientNom, e.PatientPrenom)
	if err != nil {
		return false, nil, err
	}
	if len(hits) == 1 {
		e.PatientID = &hits[0].ID
	}
	return false, nil, nil
}

func (s *Service) ListByDate(ctx context.Context, day time.Time) ([]*Entry, error) {
	return s.schedules.ListByDate(ctx, day)
}

func (s *Service) Today(ctx context.Context) ([]*Entry, error) {
	return s.schedules.ListByDate(ctx, s.today())
}

// CreateManual adds a walk-in or phoned-in appointment to a day's roster.
func (s *Service) CreateManual(ctx context.Context, req ManualRequest, actorID uuid.UUID) (*Entry, error) {
	day := s.today()
	d, err := httpx.ParseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	if d != nil {
		day = *d
	}
	start, err := ParseClock(req.StartTime)
	if err != nil {
		return nil, apperr.Validation("invalid start_time, expected HH:MM")
	}
	e := &Entry{
		ID:               uuid.New(),
		Date:             day,
		PatientNom:       strings.TrimSpace(req.Nom),
		PatientPrenom:    strings.TrimSpace(req.Prenom),
		PatientTelephone: req.Telephone,
		Specialite:       req.Specialite,
		StartTime:        start,
		ZoneIDs:          req.ZoneIDs,
		Notes:            req.Notes,
		Status:           StatusExpected,
		UploadedBy:       &actorID,
	}
	if req.EndTime != nil && *req.EndTime != "" {
		end, err := ParseClock(*req.EndTime)
		if err != nil {
			return nil, apperr.Validation("invalid end_time, expected HH:MM")
		}
		e.EndTime = &end
	}
	if req.DurationType != nil && *req.DurationType != "" {
		e.DurationType = NormalizeDuration(*req.DurationType)
		if e.DurationType == nil {
			return nil, apperr.Validationf("duration_type must be court, moyen or long, got %q", *req.DurationType)
		}
	}

	if req.PatientID != nil {
		p, err := s.patients.Get(ctx, *req.PatientID)
		if err != nil {
			return nil, err
		}
		e.PatientID = &p.ID
		e.PatientNom, e.PatientPrenom = p.Nom, p.Prenom
		if e.PatientTelephone == nil {
			e.PatientTelephone = p.Telephone
		}
	}
	if e.PatientNom == "" {
		return nil, apperr.Validation("nom is required")
	}

	if req.DoctorID != nil {
		doc, err := s.staff.GetPractitioner(ctx, *req.DoctorID)
		if err != nil {
			return nil, err
		}
		e.DoctorID = &doc.ID
		e.DoctorName = doc.FullName()
	} else {
		e.DoctorName = strings.TrimSpace(req.DoctorName)
		if e.DoctorName == "" {
			return nil, apperr.Validation("doctor_id or doctor_name is required")
		}
		staff, err := s.staff.ListActiveUsers(ctx)
		if err != nil {
			return nil, err
		}
		if doc := MatchDoctor(e.DoctorName, staff); doc != nil {
			e.DoctorID = &doc.ID
		}
	}

	if err := s.schedules.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// -- Check-in --

func notExpected(e *Entry) error {
	return apperr.InvalidState(apperr.CodeInvalidTransition,
		fmt.Sprintf("schedule entry is %s, expected %s", e.Status, StatusExpected)).
		WithDetails("status", e.Status)
}

// CheckIn admits the roster entry into the waiting queue. When the entry
// has no bound patient and several patients could match, nothing changes
// and a conflict envelope is returned instead.
func (s *Service) CheckIn(ctx context.Context, scheduleID uuid.UUID) (*CheckInResult, error) {
	e, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusExpected {
		return nil, notExpected(e)
	}

	patientID := e.PatientID
	if patientID == nil {
		candidates, err := s.patients.Candidates(ctx, e.PatientNom, e.PatientPrenom, e.Phone())
		if err != nil {
			return nil, err
		}
		switch len(candidates) {
		case 0:
		case 1:
			patientID = &candidates[0].ID
		default:
			s.metrics.ObserveCheckInConflict()
			return &CheckInResult{Conflict: &Conflict{
				Conflict:        true,
				ScheduleEntryID: e.ID,
				PatientNom:      e.PatientNom,
				PatientPrenom:   e.PatientPrenom,
				Candidates:      candidates,
			}}, nil
		}
	}

	var q *QueueEntry
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		q, err = s.admit(ctx, e, patientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition("check_in", events.TypeCheckedIn, q)
	return &CheckInResult{Entry: q}, nil
}

// ResolveConflict binds the roster entry to patientID, or to a new patient
// built from the roster line, then checks it in.
func (s *Service) ResolveConflict(ctx context.Context, req ResolveRequest, actorID uuid.UUID) (*QueueEntry, error) {
	e, err := s.schedules.GetByID(ctx, req.ScheduleEntryID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusExpected {
		return nil, notExpected(e)
	}

	var q *QueueEntry
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var patientID uuid.UUID
		if req.PatientID != nil {
			p, err := s.patients.Get(ctx, *req.PatientID)
			if err != nil {
				return err
			}
			patientID = p.ID
		} else {
			phone := e.PatientTelephone
			if req.Telephone != nil && *req.Telephone != "" {
				phone = req.Telephone
			}
			p, err := s.patients.CreateInternal(ctx, patient.NewPatient{
				Nom:       e.PatientNom,
				Prenom:    e.PatientPrenom,
				Telephone: phone,
				CreatedBy: &actorID,
			})
			if err != nil {
				return err
			}
			patientID = p.ID
		}
		var err error
		q, err = s.admit(ctx, e, &patientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition("check_in", events.TypeCheckedIn, q)
	return q, nil
}

// admit must run inside a transaction.
func (s *Service) admit(ctx context.Context, e *Entry, patientID *uuid.UUID) (*QueueEntry, error) {
	if err := s.lock(ctx, queueLockKey); err != nil {
		return nil, err
	}
	ok, err := s.schedules.UpdateStatus(ctx, e.ID, StatusExpected, StatusCheckedIn, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidState(apperr.CodeInvalidTransition, "schedule entry was already handled")
	}
	pos, err := s.queue.NextPosition(ctx)
	if err != nil {
		return nil, err
	}
	q := &QueueEntry{
		ScheduleID:  &e.ID,
		PatientID:   patientID,
		PatientName: e.PatientName(),
		DoctorID:    e.DoctorID,
		DoctorName:  e.DoctorName,
		Position:    pos,
		Status:      QueueWaiting,
	}
	if err := s.queue.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// MarkNoShow records an absence without going through the queue.
func (s *Service) MarkNoShow(ctx context.Context, scheduleID uuid.UUID) (*Entry, error) {
	e, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusExpected {
		return nil, notExpected(e)
	}
	ok, err := s.schedules.UpdateStatus(ctx, e.ID, StatusExpected, StatusNoShow, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidState(apperr.CodeInvalidTransition, "schedule entry was already handled")
	}
	e.Status = StatusNoShow
	s.metrics.ObserveTransition("schedule_no_show")
	s.logger.Info().Str("schedule_id", e.ID.String()).Msg("schedule entry marked absent")
	return e, nil
}

// Absences lists no-show roster entries between from and to, both
// inclusive. The range defaults to the last 30 days.
func (s *Service) Absences(ctx context.Context, from, to *time.Time) ([]*Entry, error) {
	end := s.today()
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -defaultAbsenceDays)
	if from != nil {
		start = *from
	}
	if end.Before(start) {
		return nil, apperr.Validation("to must not precede from")
	}
	return s.schedules.ListByStatus(ctx, StatusNoShow, start, end)
}

// -- Queue --

func (s *Service) Queue(ctx context.Context, doctorID *uuid.UUID) ([]*QueueEntry, error) {
	return s.queue.ListActive(ctx, s.dayStart(), doctorID)
}

func (s *Service) Display(ctx context.Context) ([]DisplayEntry, error) {
	entries, err := s.queue.ListActive(ctx, s.dayStart(), nil)
	if err != nil {
		return nil, err
	}
	out := make([]DisplayEntry, len(entries))
	for i, q := range entries {
		out[i] = DisplayEntry{
			PatientName: q.PatientName,
			Position:    q.Position,
			Status:      q.Status,
			BoxNom:      q.BoxNom,
			DoctorName:  q.DoctorName,
		}
	}
	return out, nil
}

// QueueCounts returns today's queue entries by status.
func (s *Service) QueueCounts(ctx context.Context) (map[string]int, error) {
	return s.queue.CountByStatus(ctx, s.dayStart())
}

// Call moves a waiting patient into treatment, in the caller's box when
// they hold one.
func (s *Service) Call(ctx context.Context, id uuid.UUID, callerID uuid.UUID) (*QueueEntry, error) {
	now := s.now()
	t := Transition{CalledAt: &now}
	a, err := s.boxes.ForUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if a != nil {
		t.BoxID = &a.BoxID
		t.BoxNom = &a.BoxNom
	}
	return s.transition(ctx, id, QueueWaiting, QueueInTreatment, t, StatusInTreatment, "call", events.TypeCalled)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*QueueEntry, error) {
	now := s.now()
	return s.transition(ctx, id, QueueInTreatment, QueueDone, Transition{CompletedAt: &now},
		StatusCompleted, "complete", events.TypeCompleted)
}

// NoShow removes a waiting patient who did not answer the call. A bound
// roster entry is marked absent as well.
func (s *Service) NoShow(ctx context.Context, id uuid.UUID) (*QueueEntry, error) {
	return s.transition(ctx, id, QueueWaiting, QueueNoShow, Transition{}, StatusNoShow, "no_show", events.TypeNoShow)
}

// Left records a patient leaving during treatment.
func (s *Service) Left(ctx context.Context, id uuid.UUID) (*QueueEntry, error) {
	now := s.now()
	return s.transition(ctx, id, QueueInTreatment, QueueLeft, Transition{CompletedAt: &now}, "", "left", events.TypeLeft)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to string, t Transition,
	scheduleStatus, name, eventType string) (*QueueEntry, error) {
	var out *QueueEntry
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		q, err := s.queue.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if q.Status != from {
			return invalidQueueTransition(q.Status, to)
		}
		ok, err := s.queue.Transition(ctx, id, from, to, t)
		if err != nil {
			return err
		}
		if !ok {
			return invalidQueueTransition(q.Status, to)
		}
		if q.ScheduleID != nil && scheduleStatus != "" {
			if err := s.schedules.SetStatus(ctx, *q.ScheduleID, scheduleStatus); err != nil {
				return err
			}
		}
		out, err = s.queue.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition(name, eventType, out)
	return out, nil
}

func invalidQueueTransition(from, to string) error {
	return apperr.InvalidState(apperr.CodeInvalidTransition, fmt.Sprintf("cannot move queue entry from %s to %s", from, to)).
		WithDetails("status", from)
}

// Reassign hands a queued patient to another doctor. Position is kept.
func (s *Service) Reassign(ctx context.Context, id, doctorID uuid.UUID) (*QueueEntry, error) {
	doc, err := s.staff.GetPractitioner(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	var out *QueueEntry
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		q, err := s.queue.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if q.Status != QueueWaiting && q.Status != QueueInTreatment {
			return notReassignable(q.Status)
		}
		ok, err := s.queue.Reassign(ctx, id, doc.ID, doc.FullName())
		if err != nil {
			return err
		}
		if !ok {
			current, err := s.queue.GetByID(ctx, id)
			if err != nil {
				return err
			}
			return notReassignable(current.Status)
		}
		out, err = s.queue.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterTransition("reassign", events.TypeReassigned, out)
	return out, nil
}

func notReassignable(status string) error {
	return apperr.InvalidState(apperr.CodeInvalidTransition,
		fmt.Sprintf("cannot reassign a queue entry that is %s", status)).WithDetails("status", status)
}

// afterTransition runs once the change is committed.
func (s *Service) afterTransition(name, eventType string, q *QueueEntry) {
	s.metrics.ObserveTransition(name)
	s.bus.Publish(events.DoctorChannel(q.DoctorID), events.Event{
		Type:        eventType,
		EntryID:     &q.ID,
		PatientName: q.PatientName,
		DoctorID:    q.DoctorID,
		DoctorName:  q.DoctorName,
		Position:    q.Position,
		BoxNom:      q.BoxNom,
	})
	s.logger.Info().
		Str("queue_entry_id", q.ID.String()).
		Str("transition", name).
		Str("status", q.Status).
		Int("position", q.Position).
		Msg("queue updated")
}
