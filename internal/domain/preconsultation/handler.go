package preconsultation

import (
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
	g := api.Group("/pre-consultations")
	view := auth.RequirePermission(auth.PreConsultationsView)
	edit := auth.RequirePermission(auth.PreConsultationsEdit)
	validate := auth.RequirePermission(auth.PreConsultationsValidate)

	g.GET("", h.List, view)
	g.POST("", h.Create, auth.RequirePermission(auth.PreConsultationsCreate))
	g.GET("/:id", h.Get, view)
	g.PUT("/:id", h.Update, edit)
	g.DELETE("/:id", h.Delete, auth.RequirePermission(auth.PreConsultationsDelete))

	g.POST("/:id/zones", h.AddZone, edit)
	g.PUT("/:id/zones/:zone_id", h.UpdateZone, edit)
	g.DELETE("/:id/zones/:zone_id", h.DeleteZone, edit)

	g.POST("/:id/submit", h.Submit, edit)
	g.POST("/:id/validate", h.Validate, validate)
	g.POST("/:id/reject", h.Reject, validate)
	g.POST("/:id/create-patient", h.CreatePatient, auth.RequirePermission(auth.PatientsEdit))

	g.GET("/:id/questionnaire", h.GetQuestionnaire,
		auth.RequireAny(auth.PreConsultationsView, auth.PatientsQuestionnaireView))
	g.PUT("/:id/questionnaire", h.UpsertResponses,
		auth.RequireAny(auth.PreConsultationsEdit, auth.PatientsQuestionnaireEdit))
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := httpx.QueryUUID(c, "patient_id")
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		Status:    c.QueryParam("status"),
		PatientID: patientID,
	}, p.Limit(), p.Offset())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*PreConsultation{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) Create(c echo.Context) error {
	u, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	pc, err := h.svc.Create(c.Request().Context(), req, &u.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, pc)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	pc, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pc)
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
	pc, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pc)
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

func (h *Handler) AddZone(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req ZoneInput
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	z, err := h.svc.AddZone(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, z)
}

func (h *Handler) UpdateZone(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	zoneID, err := httpx.ParamUUID(c, "zone_id")
	if err != nil {
		return err
	}
	var req ZoneUpdateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	z, err := h.svc.UpdateZone(c.Request().Context(), id, zoneID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, z)
}

func (h *Handler) DeleteZone(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	zoneID, err := httpx.ParamUUID(c, "zone_id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteZone(c.Request().Context(), id, zoneID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	pc, err := h.svc.Submit(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) Validate(c echo.Context) error {
	u, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	pc, err := h.svc.Validate(c.Request().Context(), id, u.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) Reject(c echo.Context) error {
	u, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req RejectRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	pc, err := h.svc.Reject(c.Request().Context(), id, u.ID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	u, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req CreatePatientRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), id, req, &u.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetQuestionnaire(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	q, err := h.svc.GetQuestionnaire(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) UpsertResponses(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req ResponsesRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	q, err := h.svc.UpsertResponses(c.Request().Context(), id, req.Responses)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}
