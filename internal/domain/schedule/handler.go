package schedule

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/auth"
	"github.com/lasercare/clinic/internal/platform/events"
	"github.com/lasercare/clinic/internal/platform/httpx"
)

const maxRosterBytes = 5 << 20

type Handler struct {
	svc      *Service
	stream   *events.StreamHandler
	upgrader *gorillawebsocket.Upgrader
}

// NewHandler wires the schedule routes. stream and upgrader may be nil, in
// which case the live feeds are not mounted.
func NewHandler(svc *Service, stream *events.StreamHandler, upgrader *gorillawebsocket.Upgrader) *Handler {
	return &Handler{svc: svc, stream: stream, upgrader: upgrader}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	view := auth.RequirePermission(auth.ScheduleView)
	manage := auth.RequirePermission(auth.ScheduleManage)
	queueView := auth.RequirePermission(auth.QueueView)
	queueManage := auth.RequirePermission(auth.QueueManage)

	g := api.Group("/schedule")
	g.POST("/upload", h.Upload, manage)
	g.GET("/today", h.Today, view)
	g.POST("/manual", h.CreateManual, manage)
	g.POST("/resolve-conflict", h.ResolveConflict, manage)
	g.GET("/absences", h.Absences, queueView)

	g.GET("/queue", h.Queue, queueView)
	g.GET("/queue/display", h.Display, queueView)
	if h.stream != nil {
		g.GET("/queue/events", h.stream.SSE)
		if h.upgrader != nil {
			g.GET("/queue/ws", h.stream.WebSocket(h.upgrader))
		}
	}
	g.PUT("/queue/:id/call", h.Call, queueManage)
	g.PUT("/queue/:id/complete", h.Complete, queueManage)
	g.PUT("/queue/:id/no-show", h.QueueNoShow, queueManage)
	g.PUT("/queue/:id/left", h.Left, queueManage)
	g.PUT("/queue/:id/reassign", h.Reassign, queueManage)

	g.POST("/:id/check-in", h.CheckIn, manage)
	g.PUT("/:id/no-show", h.MarkNoShow, manage)
	g.GET("/:date", h.ByDate, view)
}

// -- Roster --

func (h *Handler) Upload(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	files, err := httpx.Uploads(c, "file")
	if err != nil {
		return err
	}
	if len(files) != 1 {
		return apperr.Validation("exactly one file is required")
	}
	f := files[0]
	if ext := strings.ToLower(filepath.Ext(f.Filename)); ext != ".xlsx" && ext != ".xlsm" {
		return apperr.Validation("roster must be an .xlsx workbook")
	}
	if f.Size > maxRosterBytes {
		return apperr.PayloadTooLarge("roster file is too large")
	}
	rc, err := f.Open()
	if err != nil {
		return apperr.Validation("unreadable upload").Wrap(err)
	}
	defer rc.Close()

	result, err := h.svc.Upload(c.Request().Context(), rc, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Today(c echo.Context) error {
	items, err := h.svc.Today(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (h *Handler) ByDate(c echo.Context) error {
	day, err := httpx.ParamDate(c, "date")
	if err != nil {
		return err
	}
	items, err := h.svc.ListByDate(c.Request().Context(), day)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (h *Handler) CreateManual(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	var req ManualRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	e, err := h.svc.CreateManual(c.Request().Context(), req, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

// CheckIn answers 201 with the queue entry, or 200 with a conflict
// envelope when the patient's identity is ambiguous.
func (h *Handler) CheckIn(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	res, err := h.svc.CheckIn(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if res.Conflict != nil {
		return c.JSON(http.StatusOK, res.Conflict)
	}
	return c.JSON(http.StatusCreated, res.Entry)
}

func (h *Handler) ResolveConflict(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	var req ResolveRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	q, err := h.svc.ResolveConflict(c.Request().Context(), req, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, q)
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	e, err := h.svc.MarkNoShow(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Absences(c echo.Context) error {
	from, err := httpx.QueryDate(c, "from")
	if err != nil {
		return err
	}
	to, err := httpx.QueryDate(c, "to")
	if err != nil {
		return err
	}
	items, err := h.svc.Absences(c.Request().Context(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

// -- Queue --

func (h *Handler) Queue(c echo.Context) error {
	doctorID, err := httpx.QueryUUID(c, "doctor_id")
	if err != nil {
		return err
	}
	items, err := h.svc.Queue(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*QueueEntry{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Display(c echo.Context) error {
	items, err := h.svc.Display(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Call(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	q, err := h.svc.Call(c.Request().Context(), id, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.simpleTransition(c, h.svc.Complete)
}

func (h *Handler) QueueNoShow(c echo.Context) error {
	return h.simpleTransition(c, h.svc.NoShow)
}

func (h *Handler) Left(c echo.Context) error {
	return h.simpleTransition(c, h.svc.Left)
}

func (h *Handler) simpleTransition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*QueueEntry, error)) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	q, err := fn(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) Reassign(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req ReassignRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	q, err := h.svc.Reassign(c.Request().Context(), id, req.DoctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

func nonNil(items []*Entry) []*Entry {
	if items == nil {
		return []*Entry{}
	}
	return items
}
