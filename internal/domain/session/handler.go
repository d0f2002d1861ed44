package session

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/auth"
	"github.com/lasercare/clinic/internal/platform/httpx"
	"github.com/lasercare/clinic/internal/platform/storage"
	"github.com/lasercare/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	view := auth.RequirePermission(auth.SessionsView)
	create := auth.RequirePermission(auth.SessionsCreate)

	g := api.Group("/sessions")
	g.POST("", h.Create, create)
	g.POST("/photos/temp", h.UploadTemp, create)
	g.GET("/photos/:photo_id", h.GetPhoto, view)
	g.GET("/side-effects/photos/:photo_id", h.GetSideEffectPhoto, view)
	g.GET("/last-params", h.LastParams, view)
	g.GET("/:id", h.Get, view)
	g.PUT("/:id/notes", h.UpdateNotes, create)
	g.POST("/:id/photos", h.AddPhoto, create)
	g.POST("/:id/side-effects", h.CreateSideEffect, create)

	api.GET("/patients/:id/sessions", h.ListByPatient, view)
	api.GET("/patients/:id/side-effects", h.ListSideEffects, view)
}

// Create accepts JSON, or multipart with the JSON document in "data" and
// files in "photos".
func (h *Handler) Create(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := httpx.BindForm(c, "data", &req); err != nil {
		return err
	}
	uploads, err := httpx.Uploads(c, "photos")
	if err != nil {
		return err
	}
	sess, err := h.svc.Create(c.Request().Context(), req, uploads, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	sess, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, p.Limit(), p.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) UpdateNotes(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req NotesRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	sess, err := h.svc.UpdateNotes(c.Request().Context(), id, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func singleUpload(c echo.Context, field string) (storage.Upload, error) {
	ups, err := httpx.Uploads(c, field)
	if err != nil {
		return storage.Upload{}, err
	}
	if len(ups) == 0 {
		return storage.Upload{}, apperr.Validationf("%s is required", field)
	}
	return ups[0], nil
}

func (h *Handler) AddPhoto(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	up, err := singleUpload(c, "file")
	if err != nil {
		return err
	}
	photo, err := h.svc.AddPhoto(c.Request().Context(), id, up)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, photo)
}

func (h *Handler) UploadTemp(c echo.Context) error {
	up, err := singleUpload(c, "file")
	if err != nil {
		return err
	}
	tmp, err := h.svc.UploadTemp(c.Request().Context(), up)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tmp)
}

func (h *Handler) LastParams(c echo.Context) error {
	patientID, err := httpx.QueryUUID(c, "patient_id")
	if err != nil {
		return err
	}
	zoneID, err := httpx.QueryUUID(c, "patient_zone_id")
	if err != nil {
		return err
	}
	if patientID == nil || zoneID == nil {
		return apperr.Validation("patient_id and patient_zone_id are required")
	}
	params, err := h.svc.LastParams(c.Request().Context(), *patientID, *zoneID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, params)
}

func streamPhoto(c echo.Context, open func() (io.ReadCloser, *Photo, error)) error {
	rc, p, err := open()
	if err != nil {
		return err
	}
	defer rc.Close()
	ct := "application/octet-stream"
	if p.ContentType != nil {
		ct = *p.ContentType
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", p.Filename))
	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return c.Stream(http.StatusOK, ct, rc)
}

func (h *Handler) GetPhoto(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "photo_id")
	if err != nil {
		return err
	}
	return streamPhoto(c, func() (io.ReadCloser, *Photo, error) {
		return h.svc.OpenPhoto(c.Request().Context(), id)
	})
}

func (h *Handler) GetSideEffectPhoto(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "photo_id")
	if err != nil {
		return err
	}
	return streamPhoto(c, func() (io.ReadCloser, *Photo, error) {
		return h.svc.OpenSideEffectPhoto(c.Request().Context(), id)
	})
}

// CreateSideEffect accepts multipart fields description and severity with
// files in "photos", or a JSON body.
func (h *Handler) CreateSideEffect(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req SideEffectRequest
	if httpx.IsMultipart(c) {
		req.Description = c.FormValue("description")
		if sev := c.FormValue("severity"); sev != "" {
			req.Severity = &sev
		}
	} else if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	uploads, err := httpx.Uploads(c, "photos")
	if err != nil {
		return err
	}
	se, err := h.svc.CreateSideEffect(c.Request().Context(), id, req, uploads, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, se)
}

func (h *Handler) ListSideEffects(c echo.Context) error {
	patientID, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListSideEffects(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*SideEffect{}
	}
	return c.JSON(http.StatusOK, items)
}
