package documents

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

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
	view := auth.RequirePermission(auth.DocumentsView)
	manage := auth.RequirePermission(auth.DocumentsManage)

	g := api.Group("/documents")
	g.POST("/patients/:id", h.Upload, manage)
	g.GET("/patients/:id", h.List, view)
	g.GET("/:doc_id", h.Get, view)
	g.GET("/:doc_id/download", h.Download, view)
	g.DELETE("/:doc_id", h.Delete, manage)
}

// Upload takes multipart files under "file" and an optional "description".
func (h *Handler) Upload(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	patientID, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	uploads, err := httpx.Uploads(c, "file")
	if err != nil {
		return err
	}
	var description *string
	if d := c.FormValue("description"); d != "" {
		description = &d
	}
	docs, err := h.svc.Upload(c.Request().Context(), patientID, uploads, description, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, docs)
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), patientID, p.Limit(), p.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "doc_id")
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Download(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "doc_id")
	if err != nil {
		return err
	}
	rc, d, err := h.svc.Open(c.Request().Context(), id)
	if err != nil {
		return err
	}
	defer rc.Close()
	ct := "application/octet-stream"
	if d.ContentType != nil {
		ct = *d.ContentType
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", d.Filename))
	return c.Stream(http.StatusOK, ct, rc)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "doc_id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
