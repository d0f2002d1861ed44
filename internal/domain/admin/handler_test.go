package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo, *testEnv) {
	env := newTestEnv(t)
	return NewHandler(env.svc, false), echo.New(), env
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func asUser(req *http.Request, u *auth.CurrentUser) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), u))
}

// -- Auth Handler Tests --

func TestHandler_Login(t *testing.T) {
	h, e, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"username":"admin","password":"admin-password"}`), rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var resp LoginResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.AccessToken == "" {
		t.Error("expected access_token")
	}
	cookie := rec.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, auth.SessionCookie+"=") || !strings.Contains(cookie, "HttpOnly") {
		t.Errorf("expected session cookie, got %q", cookie)
	}
}

func TestHandler_Login_BadCredentials(t *testing.T) {
	h, e, _ := newTestHandler(t)
	c := e.NewContext(jsonRequest(http.MethodPost, `{"username":"admin","password":"nope"}`), httptest.NewRecorder())
	if err := h.Login(c); !apperr.Is(err, apperr.KindAuthInvalid) {
		t.Errorf("expected AUTH_INVALID, got %v", err)
	}
}

func TestHandler_Me(t *testing.T) {
	h, e, env := newTestHandler(t)
	u := env.createUser(t, "dr.k", RoleDoctor)
	cu := u.ToCurrentUser()

	rec := httptest.NewRecorder()
	c := e.NewContext(asUser(httptest.NewRequest(http.MethodGet, "/", nil), cu), rec)
	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"username":"dr.k"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := h.Me(c); !apperr.Is(err, apperr.KindAuthInvalid) {
		t.Errorf("expected AUTH_INVALID without user, got %v", err)
	}
}

func TestHandler_Logout(t *testing.T) {
	h, e, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	if err := h.Logout(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Errorf("expected cookie to be cleared, got %q", rec.Header().Get("Set-Cookie"))
	}
}

// -- User Handler Tests --

func TestHandler_CreateUser(t *testing.T) {
	h, e, env := newTestHandler(t)
	roleID := env.role(t, RoleSecretary).ID
	body := `{"username":"sec1","password":"password-123","nom":"Benali","prenom":"Sara","role_id":"` + roleID.String() + `"}`
	rec := httptest.NewRecorder()
	if err := h.CreateUser(e.NewContext(jsonRequest(http.MethodPost, body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password hash must not be serialized")
	}
}

func TestHandler_DeleteUser_Self(t *testing.T) {
	h, e, env := newTestHandler(t)
	u := env.createUser(t, "dr.k", RoleDoctor)

	c := e.NewContext(asUser(httptest.NewRequest(http.MethodDelete, "/", nil), u.ToCurrentUser()), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	if err := h.DeleteUser(c); !apperr.HasCode(err, apperr.CodeSelfDelete) {
		t.Errorf("expected SELF_DELETE, got %v", err)
	}
}

func TestHandler_GetUser_InvalidID(t *testing.T) {
	h, e, _ := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if err := h.GetUser(c); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// -- Role Handler Tests --

func TestHandler_ListPermissions(t *testing.T) {
	h, e, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	if err := h.ListPermissions(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Permissions []string            `json:"permissions"`
		Groups      map[string][]string `json:"groups"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Permissions) != len(auth.AllPermissions()) {
		t.Errorf("expected %d permissions, got %d", len(auth.AllPermissions()), len(body.Permissions))
	}
	if len(body.Groups["patients"]) == 0 {
		t.Error("expected a patients group")
	}
}

func TestHandler_CreateRole(t *testing.T) {
	h, e, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"name":"assistant","permissions":["queue.view"]}`), rec)
	if err := h.CreateRole(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_ListRoles(t *testing.T) {
	h, e, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	if err := h.ListRoles(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var roles []Role
	json.Unmarshal(rec.Body.Bytes(), &roles)
	if len(roles) != 3 {
		t.Errorf("expected 3 roles, got %d", len(roles))
	}
}
