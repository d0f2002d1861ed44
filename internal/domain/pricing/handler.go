package pricing

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
	manage := auth.RequirePermission(auth.ConfigManage)

	packs := api.Group("/packs")
	packs.GET("", h.ListPacks)
	packs.POST("", h.CreatePack, manage)
	packs.GET("/:id", h.GetPack)
	packs.PUT("/:id", h.UpdatePack, manage)
	packs.DELETE("/:id", h.DeletePack, manage)
	packs.GET("/patients/:id/subscriptions", h.ListSubscriptions)
	packs.POST("/patients/:id/subscriptions", h.CreateSubscription, auth.RequirePermission(auth.PaymentsCreate))
	packs.PUT("/subscriptions/:id/deactivate", h.DeactivateSubscription, auth.RequirePermission(auth.PaymentsEdit))

	pay := api.Group("/paiements")
	pay.GET("", h.ListPaiements, auth.RequirePermission(auth.PaymentsView))
	pay.POST("", h.CreatePaiement, auth.RequirePermission(auth.PaymentsCreate))
	pay.GET("/methods", h.Methods)
	pay.GET("/stats", h.Stats, auth.RequirePermission(auth.PaymentsView))
	pay.GET("/:id", h.GetPaiement, auth.RequirePermission(auth.PaymentsView))

	promos := api.Group("/promotions")
	promos.GET("", h.ListPromotions)
	promos.GET("/active", h.ActivePromotions)
	promos.GET("/zones/:zone_id/price", h.ZonePrice)
	promos.POST("", h.CreatePromotion, manage)
	promos.GET("/:id", h.GetPromotion)
	promos.PUT("/:id", h.UpdatePromotion, manage)
	promos.DELETE("/:id", h.DeletePromotion, manage)
}

func includeInactive(c echo.Context) (bool, error) {
	b, err := httpx.QueryBool(c, "include_inactive")
	if err != nil || b == nil {
		return false, err
	}
	return *b, nil
}

// -- Packs --

func (h *Handler) ListPacks(c echo.Context) error {
	all, err := includeInactive(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListPacks(c.Request().Context(), all)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Pack{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreatePack(c echo.Context) error {
	var req PackRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.CreatePack(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPack(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPack(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePack(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req PackRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.UpdatePack(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePack(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePack(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListSubscriptions(c echo.Context) error {
	patientID, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListSubscriptions(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateSubscription(c echo.Context) error {
	patientID, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req SubscriptionRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	sub, err := h.svc.CreateSubscription(c.Request().Context(), patientID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sub)
}

func (h *Handler) DeactivateSubscription(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	sub, err := h.svc.DeactivateSubscription(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sub)
}

// -- Paiements --

func (h *Handler) ListPaiements(c echo.Context) error {
	patientID, err := httpx.QueryUUID(c, "patient_id")
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
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListPaiements(c.Request().Context(), PaiementFilter{
		PatientID: patientID,
		Type:      c.QueryParam("type"),
		From:      from,
		To:        to,
	}, p.Limit(), p.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) CreatePaiement(c echo.Context) error {
	user, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	var req PaiementRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.CreatePaiement(c.Request().Context(), req, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPaiement(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPaiement(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Methods(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Methods())
}

func (h *Handler) Stats(c echo.Context) error {
	from, err := httpx.QueryDate(c, "from")
	if err != nil {
		return err
	}
	to, err := httpx.QueryDate(c, "to")
	if err != nil {
		return err
	}
	stats, err := h.svc.Stats(c.Request().Context(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// -- Promotions --

func (h *Handler) ListPromotions(c echo.Context) error {
	all, err := includeInactive(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListPromotions(c.Request().Context(), all)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Promotion{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ActivePromotions(c echo.Context) error {
	items, err := h.svc.ActivePromotions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ZonePrice(c echo.Context) error {
	zoneID, err := httpx.ParamUUID(c, "zone_id")
	if err != nil {
		return err
	}
	original, err := httpx.QueryInt64(c, "price")
	if err != nil {
		return err
	}
	price, err := h.svc.ZonePrice(c.Request().Context(), zoneID, original)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, price)
}

func (h *Handler) CreatePromotion(c echo.Context) error {
	var req PromotionRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.CreatePromotion(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPromotion(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPromotion(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePromotion(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req PromotionRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.UpdatePromotion(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePromotion(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePromotion(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
