package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got string
	err := BodyLimit(10)(func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		got = string(b)
		return err
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Errorf("expected body to pass through, got %q", got)
	}
}

func TestBodyLimit_RejectsOversizedContentLength(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 20)))
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	err := BodyLimit(10)(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	if !apperr.Is(err, apperr.KindPayloadTooLarge) {
		t.Fatalf("expected PAYLOAD_TOO_LARGE, got %v", err)
	}
	if called {
		t.Error("handler must not run")
	}
}

func TestBodyLimit_EnforcesLimitDuringRead(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 20)))
	req.ContentLength = -1
	c := e.NewContext(req, httptest.NewRecorder())

	err := BodyLimit(10)(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})(c)
	if !apperr.Is(err, apperr.KindPayloadTooLarge) {
		t.Fatalf("expected PAYLOAD_TOO_LARGE, got %v", err)
	}
}

func TestBodyLimit_SkipsEmptyBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if err := BodyLimit(1)(func(c echo.Context) error { return nil })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
