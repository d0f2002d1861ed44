package questionnaire

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
	g := api.Group("/questionnaire/questions")
	g.GET("", h.List, auth.RequireAny(auth.PatientsQuestionnaireView, auth.ConfigQuestionnaire))
	g.GET("/:id", h.Get, auth.RequireAny(auth.PatientsQuestionnaireView, auth.ConfigQuestionnaire))

	cfg := g.Group("", auth.RequirePermission(auth.ConfigQuestionnaire))
	cfg.POST("", h.Create)
	cfg.PUT("/order", h.Reorder)
	cfg.PUT("/:id", h.Update)
	cfg.DELETE("/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	all, err := httpx.QueryBool(c, "include_inactive")
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), all == nil || !*all)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Question{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	q, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	q, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, q)
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
	q, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
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

func (h *Handler) Reorder(c echo.Context) error {
	var req OrderRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.Reorder(c.Request().Context(), req.IDs); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
