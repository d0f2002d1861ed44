package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor("")
	if p.Page != 1 {
		t.Errorf("expected page 1, got %d", p.Page)
	}
	if p.Size != DefaultSize {
		t.Errorf("expected default size %d, got %d", DefaultSize, p.Size)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor("?page=3&size=50")
	if p.Page != 3 || p.Size != 50 {
		t.Errorf("expected page 3 size 50, got %+v", p)
	}
	if p.Offset() != 100 {
		t.Errorf("expected offset 100, got %d", p.Offset())
	}
	if p.Limit() != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit())
	}
}

func TestFromContext_MaxSize(t *testing.T) {
	p := paramsFor("?size=500")
	if p.Size != MaxSize {
		t.Errorf("expected size capped at %d, got %d", MaxSize, p.Size)
	}
}

func TestFromContext_Invalid(t *testing.T) {
	p := paramsFor("?page=-2&size=abc")
	if p.Page != 1 || p.Size != DefaultSize {
		t.Errorf("expected defaults, got %+v", p)
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a"}, 41, Params{Page: 2, Size: 20})
	if r.Pages != 3 {
		t.Errorf("expected 3 pages, got %d", r.Pages)
	}
	if r.Page != 2 || r.Size != 20 || r.Total != 41 {
		t.Errorf("unexpected response %+v", r)
	}
}

func TestHasNext(t *testing.T) {
	p := Params{Page: 1, Size: 20}
	if !p.HasNext(21) {
		t.Error("expected next page")
	}
	if p.HasNext(20) {
		t.Error("expected no next page")
	}
}
