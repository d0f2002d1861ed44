package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

func TestRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`FROM daily_schedules WHERE id = \$1`).WithArgs(id).WillReturnError(pgx.ErrNoRows)

	if _, err := NewRepo(mock).GetByID(context.Background(), id); !apperr.HasCode(err, apperr.CodeScheduleNotFound) {
		t.Errorf("expected SCHEDULE_NOT_FOUND, got %v", err)
	}
}

func TestRepo_ReplaceDay(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectExec(`DELETE FROM daily_schedules WHERE date = \$1`).
		WithArgs(day).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectQuery(`INSERT INTO daily_schedules`).
		WithArgs(pgxmock.AnyArg(), day, "Benali", "Amina", pgxmock.AnyArg(), pgxmock.AnyArg(),
			"Kaci", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "09:00", pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), StatusExpected, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	e := &Entry{Date: day, PatientNom: "Benali", PatientPrenom: "Amina", DoctorName: "Kaci", StartTime: "09:00"}
	if err := NewRepo(mock).ReplaceDay(context.Background(), day, []*Entry{e}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID == uuid.Nil || e.Status != StatusExpected {
		t.Errorf("expected id and default status, got %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepo_UpdateStatus_Stale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE daily_schedules SET status = \$3`).
		WithArgs(id, StatusExpected, StatusCheckedIn, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := NewRepo(mock).UpdateStatus(context.Background(), id, StatusExpected, StatusCheckedIn, nil)
	if err != nil || ok {
		t.Errorf("expected no update, got %v (%v)", ok, err)
	}
}

func TestQueueRepo_NextPosition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\), 0\) \+ 1 FROM waiting_queue WHERE status = 'waiting'`).
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(4))

	next, err := NewQueueRepo(mock).NextPosition(context.Background())
	if err != nil || next != 4 {
		t.Errorf("expected 4, got %d (%v)", next, err)
	}
}

func TestQueueRepo_ListActive_DoctorFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	doctorID := uuid.New()
	mock.ExpectQuery(`FROM waiting_queue .* AND doctor_id = \$3 ORDER BY CASE status`).
		WithArgs(day, day.AddDate(0, 0, 1), doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	items, err := NewQueueRepo(mock).ListActive(context.Background(), day, &doctorID)
	if err != nil || len(items) != 0 {
		t.Errorf("expected no rows, got %d (%v)", len(items), err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestQueueRepo_Reassign_GuardsStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	id, doctorID := uuid.New(), uuid.New()
	mock.ExpectExec(`UPDATE waiting_queue SET doctor_id = \$2, doctor_name = \$3 WHERE id = \$1 AND status IN \(\$4, \$5\)`).
		WithArgs(id, doctorID, "Lina Mansouri", QueueWaiting, QueueInTreatment).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := NewQueueRepo(mock).Reassign(context.Background(), id, doctorID, "Lina Mansouri")
	if err != nil || ok {
		t.Errorf("expected no row updated, got %v %v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestQueueRepo_CountByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM waiting_queue`).
		WithArgs(day, day.AddDate(0, 0, 1)).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow(QueueWaiting, 3).AddRow(QueueDone, 5))

	counts, err := NewQueueRepo(mock).CountByStatus(context.Background(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts[QueueWaiting] != 3 || counts[QueueDone] != 5 {
		t.Errorf("unexpected counts %v", counts)
	}
}
