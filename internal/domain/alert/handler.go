package alert

import (
	"net/http"

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
	view := auth.RequirePermission(auth.PatientsView)
	api.GET("/patients/:id/alerts", h.PatientAlerts, view)
	api.GET("/patients/:id/alerts/summary", h.Summary, view)
	api.GET("/patients/:id/zones/:zone_id/alerts", h.ZoneAlerts, view)
}

func (h *Handler) PatientAlerts(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	alerts, err := h.svc.PatientAlerts(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, alerts)
}

func (h *Handler) ZoneAlerts(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	zoneID, err := httpx.ParamUUID(c, "zone_id")
	if err != nil {
		return err
	}
	alerts, err := h.svc.ZoneAlerts(c.Request().Context(), id, zoneID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, alerts)
}

func (h *Handler) Summary(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	sum, err := h.svc.Summary(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}
