package admin

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/auth"
	"github.com/lasercare/clinic/internal/platform/httpx"
	"github.com/lasercare/clinic/pkg/pagination"
)

type Handler struct {
	svc          *Service
	secureCookie bool
}

func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

// RegisterRoutes mounts login on the public group (behind loginMW, the login
// throttle) and everything else on the authenticated api group.
func (h *Handler) RegisterRoutes(public, api *echo.Group, loginMW ...echo.MiddlewareFunc) {
	public.POST("/auth/login", h.Login, loginMW...)

	api.GET("/auth/me", h.Me)
	api.PUT("/auth/password", h.ChangePassword)
	api.POST("/auth/logout", h.Logout)

	api.GET("/users", h.ListUsers, auth.RequirePermission(auth.UsersView))
	manage := api.Group("", auth.RequirePermission(auth.UsersManage))
	manage.POST("/users", h.CreateUser)
	manage.GET("/users/:id", h.GetUser)
	manage.PUT("/users/:id", h.UpdateUser)
	manage.DELETE("/users/:id", h.DeleteUser)

	roles := api.Group("/roles")
	roles.GET("", h.ListRoles, auth.RequirePermission(auth.RolesView))
	roles.GET("/permissions", h.ListPermissions, auth.RequirePermission(auth.RolesView))
	roles.GET("/:id", h.GetRole, auth.RequirePermission(auth.RolesView))
	roles.POST("", h.CreateRole, auth.RequirePermission(auth.RolesManage))
	roles.PUT("/:id", h.UpdateRole, auth.RequirePermission(auth.RolesManage))
	roles.DELETE("/:id", h.DeleteRole, auth.RequirePermission(auth.RolesManage))
}

// -- Auth Handlers --

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	resp, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookie,
		Value:    resp.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   resp.ExpiresIn,
	})
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	u, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	u, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	var req ChangePasswordRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), u.ID, req); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- User Handlers --

func (h *Handler) ListUsers(c echo.Context) error {
	p := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), p.Limit(), p.Offset())
	if err != nil {
		return err
	}
	if users == nil {
		users = []*User{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, p))
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.CreateUser(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateUserRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	actor, err := auth.UserFromEcho(c)
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), actor.ID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Role Handlers --

func (h *Handler) ListRoles(c echo.Context) error {
	roles, err := h.svc.ListRoles(c.Request().Context())
	if err != nil {
		return err
	}
	if roles == nil {
		roles = []*Role{}
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *Handler) ListPermissions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"permissions": auth.AllPermissions(),
		"groups":      auth.GroupedPermissions(),
	})
}

func (h *Handler) GetRole(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.svc.GetRole(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) CreateRole(c echo.Context) error {
	var req RoleRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	r, err := h.svc.CreateRole(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) UpdateRole(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req RoleRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	r, err := h.svc.UpdateRole(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteRole(c echo.Context) error {
	id, err := httpx.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRole(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
