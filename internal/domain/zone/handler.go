package zone

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
	g := api.Group("/zones")
	g.GET("", h.List, auth.RequirePermission(auth.ZonesView))
	g.GET("/:id", h.Get, auth.RequirePermission(auth.ZonesView))
	g.POST("", h.Create, auth.RequirePermission(auth.ConfigZones))
	g.PUT("/:id", h.Update, auth.RequirePermission(auth.ConfigZones))
	g.DELETE("/:id", h.Delete, auth.RequirePermission(auth.ConfigZones))
}

func (h *Handler) List(c echo.Context) error {
	inactive, err := httpx.QueryBool(c, "include_inactive")
	if err != nil {
		return err
	}
	zones, err := h.svc.List(c.Request().Context(), inactive != nil && *inactive)
	if err != nil {
		return err
	}
	if zones == nil {
		zones = []*Definition{}
	}
	return c.JSON(http.StatusOK, zones)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	z, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, z)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	z, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, z)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	z, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, z)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
