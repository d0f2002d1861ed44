package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

func TestRepo_PatientsByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM patients GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("actif", 5).AddRow("ineligible", 1))

	got, err := NewRepo(mock).PatientsByStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["actif"] != 5 || got["ineligible"] != 1 {
		t.Errorf("unexpected counts %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepo_SessionsCount_HalfOpenRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM sessions WHERE date_seance >= \$1 AND date_seance < \$2`).
		WithArgs(from, to.AddDate(0, 0, 1)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := NewRepo(mock).SessionsCount(context.Background(), from, to)
	if err != nil || n != 7 {
		t.Errorf("got %d, %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepo_ExportSessions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	fluence := 20.0
	mock.ExpectQuery(`FROM sessions s JOIN patients p .* ORDER BY s.date_seance, s.id`).
		WithArgs(from, from.AddDate(0, 0, 1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "date_seance", "code_carte", "nom", "prenom", "zone",
			"praticien", "type_laser", "fluence", "spot_size", "duree_minutes"}).
			AddRow(id, from.Add(9*time.Hour), "LC-1", "Benali", "Amina", "Jambes", "Samir Kaci", "diode",
				&fluence, nil, nil))

	var rows []*SessionRow
	err = NewRepo(mock).ExportSessions(context.Background(), from, from, func(s *SessionRow) error {
		rows = append(rows, s)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].SessionID != id || rows[0].Fluence == nil || *rows[0].Fluence != 20 {
		t.Errorf("unexpected rows %+v", rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
