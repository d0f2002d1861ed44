package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

func TestRequire(t *testing.T) {
	u := &CurrentUser{Permissions: []string{QueueView}}
	if err := Require(QueueView, u); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Require(QueueManage, u); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
	if err := Require(QueueView, nil); !apperr.Is(err, apperr.KindAuthInvalid) {
		t.Errorf("expected AUTH_INVALID for nil user, got %v", err)
	}
}

func serveWith(mw echo.MiddlewareFunc, u *CurrentUser) error {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if u != nil {
		req = req.WithContext(WithUser(req.Context(), u))
	}
	c := e.NewContext(req, httptest.NewRecorder())
	return mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
}

func TestRequirePermission(t *testing.T) {
	u := &CurrentUser{Permissions: []string{PatientsView}}
	if err := serveWith(RequirePermission(PatientsView), u); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := serveWith(RequirePermission(PatientsDelete), u); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
}

func TestRequireAny(t *testing.T) {
	u := &CurrentUser{Permissions: []string{ConfigBoxes}}
	if err := serveWith(RequireAny(ConfigManage, ConfigBoxes), u); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := serveWith(RequireAny(ConfigManage), u); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
	if err := serveWith(RequireAny(ConfigManage), nil); !apperr.Is(err, apperr.KindAuthInvalid) {
		t.Errorf("expected AUTH_INVALID, got %v", err)
	}
}

func TestPermissionVocabulary(t *testing.T) {
	if !IsPermission("pre_consultations.validate") {
		t.Error("expected pre_consultations.validate to be known")
	}
	if IsPermission("patients.fly") {
		t.Error("unexpected permission accepted")
	}
	bad := UnknownPermissions([]string{PatientsView, "x.y", "boxes.manage"})
	if len(bad) != 2 {
		t.Errorf("expected 2 unknown permissions, got %v", bad)
	}
	groups := GroupedPermissions()
	if len(groups["pre_consultations"]) != 5 {
		t.Errorf("expected 5 pre_consultations permissions, got %v", groups["pre_consultations"])
	}
	if len(AllPermissions()) != 35 {
		t.Errorf("expected 35 permissions, got %d", len(AllPermissions()))
	}
	for _, p := range append(DoctorPermissions, SecretaryPermissions...) {
		if !IsPermission(p) {
			t.Errorf("seeded permission %s not in vocabulary", p)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	h, err := HashPassword("Secr3t!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !CheckPassword(h, "Secr3t!") {
		t.Error("expected password to match")
	}
	if CheckPassword(h, "wrong") {
		t.Error("expected mismatch")
	}
	if _, err := HashPassword(""); err == nil {
		t.Error("expected error for empty password")
	}
}
