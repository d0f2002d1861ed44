// Package httpx holds request parsing helpers shared by the domain handlers.
// Every failure is a typed validation error so the error handler renders it.
package httpx

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ParamUUID parses a path parameter as a uuid.
func ParamUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validationf("invalid %s", name)
	}
	return id, nil
}

// Bind decodes the request body into v.
func Bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("invalid request body").Wrap(err)
	}
	return nil
}

// QueryUUID parses an optional uuid query parameter.
func QueryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validationf("invalid %s", name)
	}
	return &id, nil
}

// QueryDate parses an optional YYYY-MM-DD query parameter.
func QueryDate(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, apperr.Validationf("invalid %s, expected YYYY-MM-DD", name)
	}
	return &d, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validationf("invalid %s", name)
	}
	return &b, nil
}

// QueryInt64 parses an optional integer query parameter.
func QueryInt64(c echo.Context, name string) (*int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.Validationf("invalid %s", name)
	}
	return &n, nil
}

// ParamDate parses a YYYY-MM-DD path parameter.
func ParamDate(c echo.Context, name string) (time.Time, error) {
	d, err := time.Parse(DateLayout, c.Param(name))
	if err != nil {
		return time.Time{}, apperr.Validationf("invalid %s, expected YYYY-MM-DD", name)
	}
	return d, nil
}

// ParseDate parses an optional YYYY-MM-DD body field; nil and "" yield nil.
func ParseDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, *raw)
	if err != nil {
		return nil, apperr.Validationf("invalid %s, expected YYYY-MM-DD", field)
	}
	return &d, nil
}
