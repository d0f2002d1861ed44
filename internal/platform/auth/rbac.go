package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

// Require fails with FORBIDDEN when u lacks permission.
func Require(permission string, u *CurrentUser) error {
	if u == nil {
		return apperr.AuthInvalid("not authenticated")
	}
	if !u.Has(permission) {
		return apperr.Forbidden("missing permission").WithDetails("permission", permission)
	}
	return nil
}

// RequirePermission returns middleware that checks the authenticated user
// holds permission.
func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := Require(permission, UserFromContext(c.Request().Context())); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireAny passes when the user holds at least one of permissions.
func RequireAny(permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := UserFromContext(c.Request().Context())
			if u == nil {
				return apperr.AuthInvalid("not authenticated")
			}
			for _, p := range permissions {
				if u.Has(p) {
					return next(c)
				}
			}
			return apperr.Forbidden("missing permission").WithDetails("permission", permissions)
		}
	}
}
