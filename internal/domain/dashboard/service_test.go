package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/domain/pricing"
	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/auth"
)

type fakeRepo struct {
	byStatus  map[string]int
	sessions  []*SessionRow
	gotFrom   time.Time
	gotTo     time.Time
	exportErr error
}

func (f *fakeRepo) PatientsByStatus(context.Context) (map[string]int, error) {
	return f.byStatus, nil
}

func (f *fakeRepo) SessionsCount(_ context.Context, from, to time.Time) (int, error) {
	f.gotFrom, f.gotTo = from, to
	return len(f.sessions), nil
}

func (f *fakeRepo) SessionsByZone(context.Context, time.Time, time.Time) ([]ZoneCount, error) {
	return []ZoneCount{{ZoneID: uuid.New(), Nom: "Aisselles", Count: len(f.sessions)}}, nil
}

func (f *fakeRepo) SessionsByPraticien(context.Context, time.Time, time.Time) ([]PraticienCount, error) {
	return []PraticienCount{}, nil
}

func (f *fakeRepo) ExportSessions(_ context.Context, from, to time.Time, fn func(*SessionRow) error) error {
	f.gotFrom, f.gotTo = from, to
	for _, s := range f.sessions {
		if err := fn(s); err != nil {
			return err
		}
	}
	return f.exportErr
}

type fakeQueue map[string]int

func (q fakeQueue) QueueCounts(context.Context) (map[string]int, error) { return q, nil }

type fakeRevenue struct {
	calls int
}

func (r *fakeRevenue) Stats(_ context.Context, from, to *time.Time) (*pricing.PaymentStats, error) {
	r.calls++
	return &pricing.PaymentStats{Total: 12000, Count: 2, ByType: map[string]int64{}, ByMode: map[string]int64{}}, nil
}

var testNow = time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)

func newTestService(repo *fakeRepo, rev *fakeRevenue) *Service {
	svc := NewService(repo, fakeQueue{"waiting": 3, "done": 1}, rev, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve_Defaults(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeRevenue{})
	r, err := svc.Resolve(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.From.Equal(day(2026, 6, 1)) || !r.To.Equal(day(2026, 6, 15)) {
		t.Errorf("unexpected range %+v", r)
	}

	from, to := day(2026, 6, 10), day(2026, 6, 1)
	if _, err := svc.Resolve(&from, &to); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestStats(t *testing.T) {
	repo := &fakeRepo{
		byStatus: map[string]int{"actif": 4, "en_attente_evaluation": 2},
		sessions: []*SessionRow{{}, {}},
	}
	rev := &fakeRevenue{}
	svc := newTestService(repo, rev)

	stats, err := svc.Stats(context.Background(), nil, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.PatientsTotal != 6 || stats.Sessions.Total != 2 || stats.QueueToday["waiting"] != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Revenue != nil || rev.calls != 0 {
		t.Error("revenue must be left out without the full dashboard")
	}
	if !repo.gotFrom.Equal(day(2026, 6, 1)) {
		t.Errorf("expected month start, got %v", repo.gotFrom)
	}

	stats, err = svc.Stats(context.Background(), nil, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Revenue == nil || stats.Revenue.Total != 12000 {
		t.Errorf("expected revenue, got %+v", stats.Revenue)
	}
}

func TestHandler_StatsRevenueByPermission(t *testing.T) {
	svc := newTestService(&fakeRepo{byStatus: map[string]int{}}, &fakeRevenue{})
	h := NewHandler(svc)

	for _, tc := range []struct {
		perms []string
		want  bool
	}{
		{[]string{auth.DashboardView}, false},
		{[]string{auth.DashboardView, auth.DashboardFull}, true},
	} {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/dashboard/stats?from=2026-06-01&to=2026-06-30", nil)
		req = req.WithContext(auth.WithUser(req.Context(), &auth.CurrentUser{ID: uuid.New(), Permissions: tc.perms}))
		rec := httptest.NewRecorder()
		if err := h.Stats(e.NewContext(req, rec)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.Contains(rec.Body.String(), `"revenue"`); got != tc.want {
			t.Errorf("perms %v: revenue present = %v, body %s", tc.perms, got, rec.Body.String())
		}
	}
}

func TestHandler_Export(t *testing.T) {
	fluence := 18.5
	duree := 20
	id := uuid.MustParse("7f1c2d4e-0000-4000-8000-000000000001")
	repo := &fakeRepo{sessions: []*SessionRow{{
		SessionID:   id,
		DateSeance:  time.Date(2026, 6, 3, 14, 5, 0, 0, time.UTC),
		CodeCarte:   "LC-0042",
		PatientNom:  "Benali",
		PatientPren: "Amina",
		Zone:        "Aisselles",
		Praticien:   "Samir Kaci",
		TypeLaser:   "alexandrite",
		Fluence:     &fluence,
		DureeMin:    &duree,
	}}}
	h := NewHandler(newTestService(repo, &fakeRevenue{}))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/export?from=2026-06-01&to=2026-06-30", nil)
	rec := httptest.NewRecorder()
	if err := h.Export(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "seances_2026-06-01_2026-06-30.csv") {
		t.Errorf("unexpected disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", rec.Body.String())
	}
	want := id.String() + ",2026-06-03 14:05,LC-0042,Benali,Amina,Aisselles,Samir Kaci,alexandrite,18.5,,20"
	if lines[1] != want {
		t.Errorf("row = %q, want %q", lines[1], want)
	}
	if !repo.gotTo.Equal(day(2026, 6, 30)) {
		t.Errorf("unexpected export end %v", repo.gotTo)
	}
}

func TestHandler_ExportBadRange(t *testing.T) {
	h := NewHandler(newTestService(&fakeRepo{}, &fakeRevenue{}))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/export?from=2026-06-30&to=2026-06-01", nil)
	rec := httptest.NewRecorder()
	err := h.Export(e.NewContext(req, rec))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if rec.Body.Len() != 0 {
		t.Error("nothing must be written on a bad range")
	}
}

func TestService_ExportPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	svc := newTestService(&fakeRepo{exportErr: boom}, &fakeRevenue{})
	if _, err := svc.Export(context.Background(), nil, nil, func(*SessionRow) error { return nil }); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}
