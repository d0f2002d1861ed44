package dashboard

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/auth"
	"github.com/lasercare/clinic/internal/platform/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard", auth.RequirePermission(auth.DashboardView))
	g.GET("/stats", h.Stats)
	g.GET("/export", h.Export)
}

func (h *Handler) Stats(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	from, err := httpx.QueryDate(c, "from")
	if err != nil {
		return err
	}
	to, err := httpx.QueryDate(c, "to")
	if err != nil {
		return err
	}
	stats, err := h.svc.Stats(c.Request().Context(), from, to, user.Has(auth.DashboardFull))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

var exportHeader = []string{
	"session_id", "date_seance", "code_carte", "nom", "prenom", "zone", "praticien",
	"type_laser", "fluence", "spot_size", "duree_minutes",
}

// Export writes the sessions of the range as CSV. Validation errors surface
// before any byte is written.
func (h *Handler) Export(c echo.Context) error {
	from, err := httpx.QueryDate(c, "from")
	if err != nil {
		return err
	}
	to, err := httpx.QueryDate(c, "to")
	if err != nil {
		return err
	}
	r, err := h.svc.Resolve(from, to)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=seances_%s_%s.csv",
		r.From.Format("2006-01-02"), r.To.Format("2006-01-02")))
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	_, err = h.svc.Export(c.Request().Context(), &r.From, &r.To, func(s *SessionRow) error {
		return w.Write([]string{
			s.SessionID.String(),
			s.DateSeance.UTC().Format("2006-01-02 15:04"),
			s.CodeCarte,
			s.PatientNom,
			s.PatientPren,
			s.Zone,
			s.Praticien,
			s.TypeLaser,
			formatFloat(s.Fluence),
			formatFloat(s.SpotSize),
			formatInt(s.DureeMin),
		})
	})
	w.Flush()
	if err != nil {
		return err
	}
	return w.Error()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
