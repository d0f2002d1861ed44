package box

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
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
	manage := auth.RequirePermission(auth.ConfigBoxes)

	g := api.Group("/boxes")
	g.GET("", h.List, auth.RequireAny(auth.BoxesView, auth.ConfigBoxes))
	g.POST("", h.Create, manage)
	g.GET("/my", h.My)
	g.POST("/assign", h.Assign)
	g.DELETE("/assign", h.Unassign)
	g.GET("/assignments", h.Assignments, auth.RequireAny(auth.BoxesView, auth.ConfigBoxes))
	g.GET("/:id", h.Get, auth.RequireAny(auth.BoxesView, auth.ConfigBoxes))
	g.PUT("/:id", h.Update, manage)
	g.DELETE("/:id", h.Delete, manage)
}

func (h *Handler) List(c echo.Context) error {
	inactive, err := httpx.QueryBool(c, "include_inactive")
	if err != nil {
		return err
	}
	boxes, err := h.svc.List(c.Request().Context(), inactive != nil && *inactive)
	if err != nil {
		return err
	}
	if boxes == nil {
		boxes = []*Box{}
	}
	return c.JSON(http.StatusOK, boxes)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	b, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
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
	b, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
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

// Assign binds the caller, or another user when the caller manages boxes.
func (h *Handler) Assign(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	var req AssignRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if req.BoxID == uuid.Nil {
		return apperr.Validation("box_id is required")
	}
	target := user.ID
	if req.UserID != nil && *req.UserID != user.ID {
		if !user.Has(auth.ConfigBoxes) {
			return apperr.Forbidden("cannot assign a box to another user")
		}
		target = *req.UserID
	}
	a, err := h.svc.Assign(c.Request().Context(), req.BoxID, target)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Unassign(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	if err := h.svc.Unassign(c.Request().Context(), user.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// My returns the caller's box, or null when none is held.
func (h *Handler) My(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	a, err := h.svc.ForUser(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Assignments(c echo.Context) error {
	items, err := h.svc.Assignments(c.Request().Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Assignment{}
	}
	return c.JSON(http.StatusOK, items)
}
