package patient

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/auth"
	"github.com/lasercare/clinic/internal/platform/httpx"
	"github.com/lasercare/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients")
	g.GET("", h.Search, auth.RequirePermission(auth.PatientsView))
	g.POST("", h.Create, auth.RequirePermission(auth.PatientsEdit))
	g.GET("/by-card/:code", h.GetByCard, auth.RequirePermission(auth.PatientsView))
	g.GET("/by-phone", h.FindByPhone, auth.RequirePermission(auth.PatientsView))
	g.GET("/:id", h.Get, auth.RequirePermission(auth.PatientsView))
	g.PUT("/:id", h.Update, auth.RequirePermission(auth.PatientsEdit))
	g.DELETE("/:id", h.Delete, auth.RequirePermission(auth.PatientsDelete))

	g.GET("/:id/zones", h.ListZones, auth.RequirePermission(auth.PatientsView))
	g.POST("/:id/zones", h.AddZone, auth.RequirePermission(auth.ZonesManage))
	g.PUT("/:id/zones/:pz_id", h.UpdateZone, auth.RequirePermission(auth.ZonesManage))
	g.DELETE("/:id/zones/:pz_id", h.DeleteZone, auth.RequirePermission(auth.ZonesManage))
}

func (h *Handler) Search(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), p.Limit(), p.Offset())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetByCard(c echo.Context) error {
	p, err := h.svc.GetByCard(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) FindByPhone(c echo.Context) error {
	phone := c.QueryParam("telephone")
	if phone == "" {
		return apperr.Validation("telephone is required")
	}
	items, err := h.svc.FindByPhone(c.Request().Context(), phone)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
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
	p, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
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

// -- Zones --

func (h *Handler) ListZones(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	zones, err := h.svc.ListZones(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewZones(zones))
}

func (h *Handler) AddZone(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req ZoneRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	z, err := h.svc.AddZone(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, zoneView{Zone: z, SeancesRemaining: z.SeancesRemaining()})
}

func (h *Handler) UpdateZone(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	pzID, err := httpx.ParamUUID(c, "pz_id")
	if err != nil {
		return err
	}
	var req ZoneUpdateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	z, err := h.svc.UpdateZone(c.Request().Context(), id, pzID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, zoneView{Zone: z, SeancesRemaining: z.SeancesRemaining()})
}

func (h *Handler) DeleteZone(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	pzID, err := httpx.ParamUUID(c, "pz_id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteZone(c.Request().Context(), id, pzID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
