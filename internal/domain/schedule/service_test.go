package schedule

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/domain/admin"
	"github.com/lasercare/clinic/internal/domain/box"
	"github.com/lasercare/clinic/internal/domain/patient"
	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
	"github.com/lasercare/clinic/internal/platform/events"
	"github.com/lasercare/clinic/pkg/textnorm"
)

// -- Mocks --

type mockSchedules struct {
	entries  map[uuid.UUID]*Entry
	replaced []time.Time
}

func (m *mockSchedules) ReplaceDay(_ context.Context, day time.Time, entries []*Entry) error {
	m.replaced = append(m.replaced, day)
	for id, e := range m.entries {
		if e.Date.Equal(day) {
			delete(m.entries, id)
		}
	}
	for _, e := range entries {
		cp := *e
		m.entries[e.ID] = &cp
	}
	return nil
}

func (m *mockSchedules) Create(_ context.Context, e *Entry) error {
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockSchedules) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeScheduleNotFound, "schedule entry not found")
	}
	cp := *e
	return &cp, nil
}

func (m *mockSchedules) ListByDate(_ context.Context, day time.Time) ([]*Entry, error) {
	var out []*Entry
	for _, e := range m.entries {
		if e.Date.Equal(day) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (m *mockSchedules) UpdateStatus(_ context.Context, id uuid.UUID, from, to string, patientID *uuid.UUID) (bool, error) {
	e, ok := m.entries[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	if patientID != nil {
		e.PatientID = patientID
	}
	return true, nil
}

func (m *mockSchedules) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	e, ok := m.entries[id]
	if !ok {
		return apperr.NotFound(apperr.CodeScheduleNotFound, "schedule entry not found")
	}
	e.Status = status
	return nil
}

func (m *mockSchedules) ListByStatus(_ context.Context, status string, from, to time.Time) ([]*Entry, error) {
	var out []*Entry
	for _, e := range m.entries {
		if e.Status == status && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockQueue struct {
	entries map[uuid.UUID]*QueueEntry
	now     time.Time
	// beforeReassign runs between the service's read and the guarded
	// update, standing in for a concurrent request.
	beforeReassign func(*QueueEntry)
}

func (m *mockQueue) NextPosition(_ context.Context) (int, error) {
	max := 0
	for _, q := range m.entries {
		if q.Status == QueueWaiting && q.Position > max {
			max = q.Position
		}
	}
	return max + 1, nil
}

func (m *mockQueue) Create(_ context.Context, q *QueueEntry) error {
	q.ID = uuid.New()
	q.CheckedInAt = m.now
	cp := *q
	m.entries[q.ID] = &cp
	return nil
}

func (m *mockQueue) GetByID(_ context.Context, id uuid.UUID) (*QueueEntry, error) {
	q, ok := m.entries[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeQueueEntryNotFound, "queue entry not found")
	}
	cp := *q
	return &cp, nil
}

func (m *mockQueue) ListActive(_ context.Context, day time.Time, doctorID *uuid.UUID) ([]*QueueEntry, error) {
	var out []*QueueEntry
	for _, q := range m.entries {
		if q.Status != QueueWaiting && q.Status != QueueInTreatment {
			continue
		}
		if q.CheckedInAt.Before(day) {
			continue
		}
		if doctorID != nil && (q.DoctorID == nil || *q.DoctorID != *doctorID) {
			continue
		}
		cp := *q
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].Status == QueueInTreatment) != (out[j].Status == QueueInTreatment) {
			return out[i].Status == QueueInTreatment
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (m *mockQueue) Transition(_ context.Context, id uuid.UUID, from, to string, t Transition) (bool, error) {
	q, ok := m.entries[id]
	if !ok || q.Status != from {
		return false, nil
	}
	q.Status = to
	if t.BoxID != nil {
		q.BoxID, q.BoxNom = t.BoxID, t.BoxNom
	}
	if t.CalledAt != nil {
		q.CalledAt = t.CalledAt
	}
	if t.CompletedAt != nil {
		q.CompletedAt = t.CompletedAt
	}
	return true, nil
}

func (m *mockQueue) Reassign(_ context.Context, id, doctorID uuid.UUID, doctorName string) (bool, error) {
	q, ok := m.entries[id]
	if !ok {
		return false, nil
	}
	if m.beforeReassign != nil {
		m.beforeReassign(q)
	}
	if q.Status != QueueWaiting && q.Status != QueueInTreatment {
		return false, nil
	}
	q.DoctorID, q.DoctorName = &doctorID, doctorName
	return true, nil
}

func (m *mockQueue) CountByStatus(_ context.Context, day time.Time) (map[string]int, error) {
	out := map[string]int{}
	for _, q := range m.entries {
		if !q.CheckedInAt.Before(day) {
			out[q.Status]++
		}
	}
	return out, nil
}

type fakePatients struct {
	list    []*patient.Patient
	created []patient.NewPatient
}

func (f *fakePatients) Get(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	for _, p := range f.list {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperr.NotFound(apperr.CodePatientNotFound, "patient not found")
}

func (f *fakePatients) FindByPhone(_ context.Context, phone string) ([]*patient.Patient, error) {
	var out []*patient.Patient
	for _, p := range f.list {
		if textnorm.SamePhone(p.Phone(), phone) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePatients) FindByName(_ context.Context, nom, prenom string) ([]*patient.Patient, error) {
	var out []*patient.Patient
	for _, p := range f.list {
		if textnorm.SameName(p.Nom, nom) && textnorm.SameName(p.Prenom, prenom) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePatients) Candidates(_ context.Context, nom, prenom, phone string) ([]*patient.Patient, error) {
	var out []*patient.Patient
	for _, p := range f.list {
		if textnorm.SameName(p.Nom, nom) || (phone != "" && textnorm.SamePhone(p.Phone(), phone)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePatients) CreateInternal(_ context.Context, in patient.NewPatient) (*patient.Patient, error) {
	f.created = append(f.created, in)
	p := &patient.Patient{ID: uuid.New(), Nom: in.Nom, Prenom: in.Prenom, Telephone: in.Telephone}
	f.list = append(f.list, p)
	return p, nil
}

type fakeStaff []*admin.User

func (f fakeStaff) ListActiveUsers(_ context.Context) ([]*admin.User, error) { return f, nil }

func (f fakeStaff) GetPractitioner(_ context.Context, id uuid.UUID) (*admin.User, error) {
	for _, u := range f {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperr.NotFound(apperr.CodePractitionerNotFound, "practitioner not found")
}

type fakeBoxes map[uuid.UUID]*box.Assignment

func (f fakeBoxes) ForUser(_ context.Context, userID uuid.UUID) (*box.Assignment, error) {
	return f[userID], nil
}

type published struct {
	channel string
	event   events.Event
}

type recordingBus struct{ sent []published }

func (b *recordingBus) Publish(channel string, ev events.Event) int {
	b.sent = append(b.sent, published{channel, ev})
	return 0
}

// -- Fixture --

var (
	testNow = time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	testDay = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
)

type testEnv struct {
	svc       *Service
	schedules *mockSchedules
	queue     *mockQueue
	patients  *fakePatients
	bus       *recordingBus
	boxes     fakeBoxes
	doctor    *admin.User
	other     *admin.User
	locks     int
}

func newTestEnv() *testEnv {
	env := &testEnv{
		schedules: &mockSchedules{entries: map[uuid.UUID]*Entry{}},
		queue:     &mockQueue{entries: map[uuid.UUID]*QueueEntry{}, now: testNow},
		patients:  &fakePatients{},
		bus:       &recordingBus{},
		boxes:     fakeBoxes{},
		doctor:    &admin.User{ID: uuid.New(), Nom: "Kaci", Prenom: "Samir", IsActive: true},
		other:     &admin.User{ID: uuid.New(), Nom: "Mansouri", Prenom: "Lina", IsActive: true},
	}
	lock := func(context.Context, int64) error {
		env.locks++
		return nil
	}
	env.svc = NewService(env.schedules, env.queue, env.patients, fakeStaff{env.doctor, env.other},
		env.boxes, env.bus, db.NoTx{}, lock, nil, zerolog.Nop())
	env.svc.now = func() time.Time { return testNow }
	return env
}

func (env *testEnv) addPatient(nom, prenom, phone string) *patient.Patient {
	p := &patient.Patient{ID: uuid.New(), Nom: nom, Prenom: prenom}
	if phone != "" {
		p.Telephone = &phone
	}
	env.patients.list = append(env.patients.list, p)
	return p
}

func (env *testEnv) addEntry(nom, prenom string, patientID *uuid.UUID) *Entry {
	e := &Entry{
		ID:            uuid.New(),
		Date:          testDay,
		PatientNom:    nom,
		PatientPrenom: prenom,
		PatientID:     patientID,
		DoctorName:    env.doctor.FullName(),
		DoctorID:      &env.doctor.ID,
		StartTime:     "09:00",
		Status:        StatusExpected,
	}
	env.schedules.entries[e.ID] = e
	return e
}

func (env *testEnv) checkIn(t *testing.T, e *Entry) *QueueEntry {
	t.Helper()
	res, err := env.svc.CheckIn(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if res.Entry == nil {
		t.Fatalf("expected a queue entry, got conflict %+v", res.Conflict)
	}
	return res.Entry
}

// -- Upload --

func TestUpload_MatchesPatientsAndDoctors(t *testing.T) {
	env := newTestEnv()
	amina := env.addPatient("Benali", "Amina", "0555123456")
	env.addPatient("Haddad", "Karim", "0661000000")
	lina := env.addPatient("Saidi", "Lina", "")

	buf := workbook(t,
		rosterHeader,
		[]any{"2026-06-15", "Amina", "BENALI", "Dr Kaci", "", "moyen", "09:00", "", "", "0555 12 34 56"},
		[]any{"2026-06-15", "Yacine", "Haddad", "Mansouri", "", "", "09:30", "", "", "0661 00 00 00"},
		[]any{"2026-06-15", "Lina", "Saidi", "Dr Inconnu", "", "", "10:00"},
		[]any{"2026-06-16", "Omar", "Touati", "Kaci", "", "", "10:00", "", "", "12"},
		[]any{"2026-06-16", "", "", "Kaci", "", "", "10:30"},
	)
	res, err := env.svc.Upload(context.Background(), buf, env.doctor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.TotalRows != 5 || len(res.Entries) != 4 {
		t.Fatalf("expected 5 rows and 4 entries, got %d and %d", res.TotalRows, len(res.Entries))
	}
	if len(res.SkippedRows) != 1 || res.SkippedRows[0].Row != 6 || res.SkippedRows[0].Reason != SkipNoNom {
		t.Errorf("expected line 6 skipped, got %v", res.SkippedRows)
	}
	if res.PhoneMatched != 1 {
		t.Errorf("expected 1 confident phone match, got %d", res.PhoneMatched)
	}
	if len(res.PhoneConflicts) != 1 {
		t.Fatalf("expected 1 phone conflict, got %d", len(res.PhoneConflicts))
	}
	c := res.PhoneConflicts[0]
	if c.Row != 3 || c.RowPrenom != "Yacine" || c.PatientPrenom != "Karim" {
		t.Errorf("unexpected conflict %+v", c)
	}

	byNom := map[string]*Entry{}
	for _, e := range res.Entries {
		byNom[e.PatientNom] = e
	}
	if e := byNom["BENALI"]; e.PatientID == nil || *e.PatientID != amina.ID {
		t.Error("expected phone match to bind Amina")
	}
	if e := byNom["BENALI"]; e.DoctorID == nil || *e.DoctorID != env.doctor.ID {
		t.Error("expected Dr Kaci to resolve")
	}
	if e := byNom["Haddad"]; e.DoctorID == nil || *e.DoctorID != env.other.ID {
		t.Error("expected Mansouri to resolve")
	}
	if e := byNom["Saidi"]; e.PatientID == nil || *e.PatientID != lina.ID {
		t.Error("expected unique name match to bind Lina")
	}
	if e := byNom["Saidi"]; e.DoctorID != nil {
		t.Error("expected unknown doctor to stay unbound")
	}
	if e := byNom["Touati"]; e.PatientID != nil {
		t.Error("expected short phone and unknown name to stay unbound")
	}
	if len(env.schedules.replaced) != 2 || !env.schedules.replaced[0].Before(env.schedules.replaced[1]) {
		t.Errorf("expected two days replaced in order, got %v", env.schedules.replaced)
	}
}

func TestUpload_ReplacesDay(t *testing.T) {
	env := newTestEnv()
	stale := env.addEntry("Ancien", "Patient", nil)
	other := env.addEntry("Autre", "Jour", nil)
	other.Date = testDay.AddDate(0, 0, 1)

	buf := workbook(t, []any{"2026-06-15", "Amina", "Benali", "Kaci", "", "", "09:00"})
	if _, err := env.svc.Upload(context.Background(), buf, env.doctor.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := env.schedules.entries[stale.ID]; ok {
		t.Error("expected previous entry of the day to be replaced")
	}
	if _, ok := env.schedules.entries[other.ID]; !ok {
		t.Error("expected other day to be untouched")
	}
	items, _ := env.svc.Today(context.Background())
	if len(items) != 1 || items[0].PatientNom != "Benali" {
		t.Errorf("unexpected day content %+v", items)
	}
}

func TestUpload_RepeatedAppointmentKeptOnce(t *testing.T) {
	env := newTestEnv()
	buf := workbook(t,
		rosterHeader,
		[]any{"2026-06-15", "Amina", "Benali", "Kaci", "", "", "09:00"},
		[]any{"2026-06-15", "Karim", "Haddad", "Kaci", "", "", "09:30"},
		[]any{"2026-06-15", "amina", "BENALI", "Kaci", "", "", "09:00"},
	)
	res, err := env.svc.Upload(context.Background(), buf, env.doctor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalRows != 3 || len(res.Entries) != 2 {
		t.Fatalf("expected 3 rows and 2 entries, got %d and %d", res.TotalRows, len(res.Entries))
	}
	if len(res.SkippedRows) != 1 || res.SkippedRows[0] != (SkippedRow{Row: 4, Reason: SkipDuplicate}) {
		t.Errorf("expected line 4 reported as duplicate, got %v", res.SkippedRows)
	}
	if len(env.schedules.entries) != 2 {
		t.Errorf("expected 2 stored entries, got %d", len(env.schedules.entries))
	}
}

func TestUpload_NameMatchMustBeUnique(t *testing.T) {
	env := newTestEnv()
	env.addPatient("Benali", "Amina", "")
	env.addPatient("Benali", "Amina", "")

	buf := workbook(t, []any{"2026-06-15", "Amina", "Benali", "Kaci", "", "", "09:00"})
	res, err := env.svc.Upload(context.Background(), buf, env.doctor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Entries[0].PatientID != nil {
		t.Error("expected ambiguous name to stay unbound")
	}
}

// -- Manual --

func TestCreateManual(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	e, err := env.svc.CreateManual(ctx, ManualRequest{
		Nom: "Benali", Prenom: "Amina", DoctorName: "Dr Kaci", StartTime: "14h30",
		DurationType: strPtr("Long"),
	}, env.doctor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.Date.Equal(testDay) || e.StartTime != "14:30" || *e.DurationType != DurationLong {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.DoctorID == nil || *e.DoctorID != env.doctor.ID {
		t.Error("expected doctor name to resolve")
	}
	if e.Status != StatusExpected {
		t.Errorf("expected status expected, got %s", e.Status)
	}

	p := env.addPatient("Haddad", "Karim", "0661000000")
	e, err = env.svc.CreateManual(ctx, ManualRequest{
		PatientID: &p.ID, DoctorID: &env.other.ID, StartTime: "10:00", Date: strPtr("2026-06-20"),
	}, env.doctor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.PatientNom != "Haddad" || e.Phone() != "0661000000" || e.DoctorName != "Lina Mansouri" {
		t.Errorf("expected patient and doctor copied, got %+v", e)
	}
	if !e.Date.Equal(time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", e.Date)
	}
}

func TestCreateManual_Validation(t *testing.T) {
	env := newTestEnv()
	tests := []struct {
		name string
		req  ManualRequest
	}{
		{"no start", ManualRequest{Nom: "A", DoctorName: "Kaci"}},
		{"bad start", ManualRequest{Nom: "A", DoctorName: "Kaci", StartTime: "midi"}},
		{"bad end", ManualRequest{Nom: "A", DoctorName: "Kaci", StartTime: "09:00", EndTime: strPtr("x")}},
		{"bad duration", ManualRequest{Nom: "A", DoctorName: "Kaci", StartTime: "09:00", DurationType: strPtr("xl")}},
		{"no nom", ManualRequest{DoctorName: "Kaci", StartTime: "09:00"}},
		{"no doctor", ManualRequest{Nom: "A", StartTime: "09:00"}},
		{"bad date", ManualRequest{Nom: "A", DoctorName: "Kaci", StartTime: "09:00", Date: strPtr("15/06")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateManual(context.Background(), tt.req, env.doctor.ID)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

// -- Check-in --

func TestCheckIn_BoundPatient(t *testing.T) {
	env := newTestEnv()
	p := env.addPatient("Benali", "Amina", "")
	e1 := env.addEntry("Benali", "Amina", &p.ID)
	e2 := env.addEntry("Haddad", "Karim", nil)

	q1 := env.checkIn(t, e1)
	q2 := env.checkIn(t, e2)

	if q1.Position != 1 || q2.Position != 2 {
		t.Errorf("expected positions 1 and 2, got %d and %d", q1.Position, q2.Position)
	}
	if q1.Status != QueueWaiting || q1.PatientName != "Amina Benali" {
		t.Errorf("unexpected queue entry %+v", q1)
	}
	if q2.PatientID != nil {
		t.Error("expected no patient when nobody matches")
	}
	if env.schedules.entries[e1.ID].Status != StatusCheckedIn {
		t.Error("expected schedule entry checked in")
	}
	if env.locks != 2 {
		t.Errorf("expected 2 lock acquisitions, got %d", env.locks)
	}
	if len(env.bus.sent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(env.bus.sent))
	}
	ev := env.bus.sent[0]
	if ev.channel != events.DoctorChannel(&env.doctor.ID) || ev.event.Type != events.TypeCheckedIn {
		t.Errorf("unexpected event %+v", ev)
	}

	_, err := env.svc.CheckIn(context.Background(), e1.ID)
	if !apperr.HasCode(err, apperr.CodeInvalidTransition) {
		t.Errorf("expected invalid transition on second check-in, got %v", err)
	}
}

func TestCheckIn_SingleCandidateAdopted(t *testing.T) {
	env := newTestEnv()
	p := env.addPatient("Benali", "Amina", "")
	e := env.addEntry("benali", "amina", nil)

	q := env.checkIn(t, e)
	if q.PatientID == nil || *q.PatientID != p.ID {
		t.Error("expected the only candidate to be adopted")
	}
	if got := env.schedules.entries[e.ID].PatientID; got == nil || *got != p.ID {
		t.Error("expected schedule entry bound to the patient")
	}
}

func TestCheckIn_ConflictLeavesStateUntouched(t *testing.T) {
	env := newTestEnv()
	env.addPatient("Benali", "Amina", "")
	env.addPatient("Benali", "Sofia", "")
	e := env.addEntry("Benali", "Amina", nil)

	res, err := env.svc.CheckIn(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Conflict == nil || !res.Conflict.Conflict || len(res.Conflict.Candidates) != 2 {
		t.Fatalf("expected conflict with 2 candidates, got %+v", res)
	}
	if res.Entry != nil {
		t.Error("expected no queue entry")
	}
	if env.schedules.entries[e.ID].Status != StatusExpected {
		t.Error("expected schedule status unchanged")
	}
	if len(env.queue.entries) != 0 || len(env.bus.sent) != 0 {
		t.Error("expected no queue entry and no event")
	}
}

func TestCheckIn_NotFound(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.CheckIn(context.Background(), uuid.New())
	if !apperr.HasCode(err, apperr.CodeScheduleNotFound) {
		t.Errorf("expected schedule not found, got %v", err)
	}
}

func TestResolveConflict_ExistingPatient(t *testing.T) {
	env := newTestEnv()
	env.addPatient("Benali", "Amina", "")
	sofia := env.addPatient("Benali", "Sofia", "")
	e := env.addEntry("Benali", "Amina", nil)

	q, err := env.svc.ResolveConflict(context.Background(),
		ResolveRequest{ScheduleEntryID: e.ID, PatientID: &sofia.ID}, env.doctor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.PatientID == nil || *q.PatientID != sofia.ID || q.Position != 1 {
		t.Errorf("unexpected queue entry %+v", q)
	}
	if len(env.patients.created) != 0 {
		t.Error("expected no patient created")
	}
}

func TestResolveConflict_CreatesPatient(t *testing.T) {
	env := newTestEnv()
	e := env.addEntry("Touati", "Omar", nil)
	e.PatientTelephone = strPtr("0555000000")

	q, err := env.svc.ResolveConflict(context.Background(),
		ResolveRequest{ScheduleEntryID: e.ID, Telephone: strPtr("0770111222")}, env.doctor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.patients.created) != 1 {
		t.Fatalf("expected a patient created, got %d", len(env.patients.created))
	}
	np := env.patients.created[0]
	if np.Nom != "Touati" || *np.Telephone != "0770111222" || *np.CreatedBy != env.doctor.ID {
		t.Errorf("unexpected new patient %+v", np)
	}
	if q.PatientID == nil {
		t.Error("expected queue entry bound to the new patient")
	}

	_, err = env.svc.ResolveConflict(context.Background(), ResolveRequest{ScheduleEntryID: e.ID}, env.doctor.ID)
	if !apperr.HasCode(err, apperr.CodeInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestResolveConflict_UnknownPatient(t *testing.T) {
	env := newTestEnv()
	e := env.addEntry("Touati", "Omar", nil)
	missing := uuid.New()
	_, err := env.svc.ResolveConflict(context.Background(),
		ResolveRequest{ScheduleEntryID: e.ID, PatientID: &missing}, env.doctor.ID)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if env.schedules.entries[e.ID].Status != StatusExpected {
		t.Error("expected schedule entry untouched")
	}
}

// -- Queue --

func TestCall_CopiesCallerBox(t *testing.T) {
	env := newTestEnv()
	boxID := uuid.New()
	env.boxes[env.doctor.ID] = &box.Assignment{BoxID: boxID, BoxNom: "Box 2", UserID: env.doctor.ID}
	e := env.addEntry("Benali", "Amina", nil)
	q := env.checkIn(t, e)

	called, err := env.svc.Call(context.Background(), q.ID, env.doctor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called.Status != QueueInTreatment || called.CalledAt == nil {
		t.Errorf("unexpected entry %+v", called)
	}
	if called.BoxID == nil || *called.BoxID != boxID || *called.BoxNom != "Box 2" {
		t.Error("expected caller box copied")
	}
	if env.schedules.entries[e.ID].Status != StatusInTreatment {
		t.Error("expected schedule in treatment")
	}
	last := env.bus.sent[len(env.bus.sent)-1]
	if last.event.Type != events.TypeCalled || last.event.BoxNom == nil || *last.event.BoxNom != "Box 2" {
		t.Errorf("unexpected event %+v", last.event)
	}
}

func TestCall_WithoutBox(t *testing.T) {
	env := newTestEnv()
	q := env.checkIn(t, env.addEntry("Benali", "Amina", nil))
	called, err := env.svc.Call(context.Background(), q.ID, env.other.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called.BoxID != nil {
		t.Error("expected no box")
	}
}

func TestQueueLifecycle(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	e := env.addEntry("Benali", "Amina", nil)
	q := env.checkIn(t, e)

	if _, err := env.svc.Complete(ctx, q.ID); !apperr.HasCode(err, apperr.CodeInvalidTransition) {
		t.Errorf("expected complete from waiting to fail, got %v", err)
	}
	if _, err := env.svc.Left(ctx, q.ID); !apperr.HasCode(err, apperr.CodeInvalidTransition) {
		t.Errorf("expected left from waiting to fail, got %v", err)
	}
	if _, err := env.svc.Call(ctx, q.ID, env.doctor.ID); err != nil {
		t.Fatalf("call: %v", err)
	}
	if _, err := env.svc.NoShow(ctx, q.ID); !apperr.HasCode(err, apperr.CodeInvalidTransition) {
		t.Errorf("expected no-show in treatment to fail, got %v", err)
	}
	done, err := env.svc.Complete(ctx, q.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != QueueDone || done.CompletedAt == nil {
		t.Errorf("unexpected entry %+v", done)
	}
	if env.schedules.entries[e.ID].Status != StatusCompleted {
		t.Error("expected schedule completed")
	}
	if _, err := env.svc.Call(ctx, q.ID, env.doctor.ID); !apperr.HasCode(err, apperr.CodeInvalidTransition) {
		t.Errorf("expected call on done entry to fail, got %v", err)
	}

	types := make([]string, len(env.bus.sent))
	for i, p := range env.bus.sent {
		types[i] = p.event.Type
	}
	want := []string{events.TypeCheckedIn, events.TypeCalled, events.TypeCompleted}
	if len(types) != len(want) {
		t.Fatalf("expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

func TestQueueNoShow_MarksSchedule(t *testing.T) {
	env := newTestEnv()
	e := env.addEntry("Benali", "Amina", nil)
	q := env.checkIn(t, e)

	out, err := env.svc.NoShow(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != QueueNoShow {
		t.Errorf("expected no_show, got %s", out.Status)
	}
	if env.schedules.entries[e.ID].Status != StatusNoShow {
		t.Error("expected schedule marked absent")
	}
}

func TestLeft_KeepsScheduleStatus(t *testing.T) {
	env := newTestEnv()
	e := env.addEntry("Benali", "Amina", nil)
	q := env.checkIn(t, e)
	if _, err := env.svc.Call(context.Background(), q.ID, env.doctor.ID); err != nil {
		t.Fatalf("call: %v", err)
	}
	out, err := env.svc.Left(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != QueueLeft || out.CompletedAt == nil {
		t.Errorf("unexpected entry %+v", out)
	}
	if env.schedules.entries[e.ID].Status != StatusInTreatment {
		t.Errorf("expected schedule to stay in treatment, got %s", env.schedules.entries[e.ID].Status)
	}
}

func TestTransition_NotFound(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Complete(context.Background(), uuid.New())
	if !apperr.HasCode(err, apperr.CodeQueueEntryNotFound) {
		t.Errorf("expected queue entry not found, got %v", err)
	}
}

func TestReassign(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addEntry("Benali", "Amina", nil)
	first := env.checkIn(t, env.addEntry("Haddad", "Karim", nil))
	q := env.checkIn(t, env.addEntry("Saidi", "Lina", nil))

	out, err := env.svc.Reassign(ctx, q.ID, env.other.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *out.DoctorID != env.other.ID || out.DoctorName != "Lina Mansouri" || out.Position != q.Position {
		t.Errorf("unexpected entry %+v", out)
	}
	last := env.bus.sent[len(env.bus.sent)-1]
	if last.channel != events.DoctorChannel(&env.other.ID) || last.event.Type != events.TypeReassigned {
		t.Errorf("expected event on new doctor's channel, got %+v", last)
	}

	mine, _ := env.svc.Queue(ctx, &env.doctor.ID)
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Errorf("expected only the first entry left for the doctor, got %d", len(mine))
	}

	if _, err := env.svc.Reassign(ctx, q.ID, uuid.New()); !apperr.HasCode(err, apperr.CodePractitionerNotFound) {
		t.Errorf("expected practitioner not found, got %v", err)
	}
	if _, err := env.svc.Call(ctx, q.ID, env.other.ID); err != nil {
		t.Fatalf("call: %v", err)
	}
	if _, err := env.svc.Complete(ctx, q.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := env.svc.Reassign(ctx, q.ID, env.doctor.ID); !apperr.HasCode(err, apperr.CodeInvalidTransition) {
		t.Errorf("expected reassign of done entry to fail, got %v", err)
	}
}

func TestReassign_EntryFinishedConcurrently(t *testing.T) {
	env := newTestEnv()
	q := env.checkIn(t, env.addEntry("Saidi", "Lina", nil))
	env.queue.beforeReassign = func(e *QueueEntry) { e.Status = QueueDone }

	_, err := env.svc.Reassign(context.Background(), q.ID, env.other.ID)
	if !apperr.HasCode(err, apperr.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
	if e := env.queue.entries[q.ID]; e.DoctorID != nil && *e.DoctorID == env.other.ID {
		t.Errorf("expected doctor unchanged on a finished entry, got %s", e.DoctorName)
	}
}

func TestQueueOrderingAndDisplay(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a := env.checkIn(t, env.addEntry("Benali", "Amina", nil))
	b := env.checkIn(t, env.addEntry("Haddad", "Karim", nil))
	env.boxes[env.doctor.ID] = &box.Assignment{BoxID: uuid.New(), BoxNom: "Box 1"}
	if _, err := env.svc.Call(ctx, b.ID, env.doctor.ID); err != nil {
		t.Fatalf("call: %v", err)
	}

	items, err := env.svc.Queue(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0].ID != b.ID || items[1].ID != a.ID {
		t.Fatal("expected entry in treatment first")
	}

	display, err := env.svc.Display(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if display[0].PatientName != "Karim Haddad" || display[0].BoxNom == nil || *display[0].BoxNom != "Box 1" {
		t.Errorf("unexpected display row %+v", display[0])
	}

	counts, _ := env.svc.QueueCounts(ctx)
	if counts[QueueWaiting] != 1 || counts[QueueInTreatment] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestPositionsReuseAfterHead(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a := env.checkIn(t, env.addEntry("Benali", "Amina", nil))
	if _, err := env.svc.Call(ctx, a.ID, env.doctor.ID); err != nil {
		t.Fatalf("call: %v", err)
	}
	b := env.checkIn(t, env.addEntry("Haddad", "Karim", nil))
	if b.Position != 1 {
		t.Errorf("expected position 1 once the queue is empty, got %d", b.Position)
	}
}

// -- Absences --

func TestMarkNoShowAndAbsences(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	e := env.addEntry("Benali", "Amina", nil)
	old := env.addEntry("Haddad", "Karim", nil)
	old.Date = testDay.AddDate(0, 0, -45)
	old.Status = StatusNoShow

	out, err := env.svc.MarkNoShow(ctx, e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != StatusNoShow {
		t.Errorf("expected no_show, got %s", out.Status)
	}
	if _, err := env.svc.MarkNoShow(ctx, e.ID); !apperr.HasCode(err, apperr.CodeInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}

	recent, err := env.svc.Absences(ctx, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != e.ID {
		t.Errorf("expected only the recent absence, got %d", len(recent))
	}

	from := testDay.AddDate(0, 0, -60)
	all, _ := env.svc.Absences(ctx, &from, nil)
	if len(all) != 2 {
		t.Errorf("expected 2 absences, got %d", len(all))
	}

	to := testDay.AddDate(0, 0, -90)
	if _, err := env.svc.Absences(ctx, &from, &to); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func strPtr(s string) *string { return &s }
