package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serveHeaders(t *testing.T, path string) http.Header {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := SecurityHeaders()(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec.Header()
}

func TestSecurityHeaders_JSONRoutes(t *testing.T) {
	h := serveHeaders(t, "/api/v1/patients")
	expected := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	}
	for header, want := range expected {
		if got := h.Get(header); got != want {
			t.Errorf("header %s: got %q, want %q", header, got, want)
		}
	}
}

func TestSecurityHeaders_DownloadsKeepCaching(t *testing.T) {
	for _, path := range []string{"/api/v1/sessions/photos/abc", "/api/v1/documents/abc/download"} {
		if got := serveHeaders(t, path).Get("Cache-Control"); got != "" {
			t.Errorf("%s: expected no Cache-Control override, got %q", path, got)
		}
	}
}
