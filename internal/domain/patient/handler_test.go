package patient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

func TestHandler_Search(t *testing.T) {
	env := newTestEnv()
	env.patient(t, "Benali", "Amina", "")
	env.patient(t, "Bensaid", "Lina", "")
	env.patient(t, "Haddad", "Yacine", "")
	h := NewHandler(env.svc)

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/?q=ben&page=1&size=1", nil), rec)
	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Items []Patient `json:"items"`
		Total int       `json:"total"`
		Pages int       `json:"pages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 2 || len(body.Items) != 1 || body.Items[0].Nom != "Benali" || body.Pages != 2 {
		t.Errorf("unexpected page %+v", body)
	}
}

func TestHandler_Create_Rejected(t *testing.T) {
	h := NewHandler(newTestEnv().svc)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nom":"Benali","prenom":"Amina"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.Create(echo.New().NewContext(req, httptest.NewRecorder()))
	if !apperr.HasCode(err, apperr.CodeDirectCreate) {
		t.Errorf("expected DIRECT_CREATE_REJECTED, got %v", err)
	}
}

func TestHandler_GetByCard(t *testing.T) {
	env := newTestEnv()
	p := env.patient(t, "Benali", "Amina", "")
	h := NewHandler(env.svc)

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("code")
	c.SetParamValues(p.CodeCarte)
	if err := h.GetByCard(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), p.ID.String()) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_FindByPhone_Required(t *testing.T) {
	h := NewHandler(newTestEnv().svc)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := h.FindByPhone(c); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_AddAndListZones(t *testing.T) {
	env := newTestEnv()
	p := env.patient(t, "Benali", "Amina", "")
	def := env.zoneDef("jambes")
	h := NewHandler(env.svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"zone_id":"`+def.ID.String()+`","seances_total":6}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.AddZone(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.ListZones(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"seances_remaining":6`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Delete_NotFound(t *testing.T) {
	h := NewHandler(newTestEnv().svc)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if err := h.Delete(c); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for bad id, got %v", err)
	}
}
