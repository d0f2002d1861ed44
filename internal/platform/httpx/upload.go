package httpx

import (
	"encoding/json"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/storage"
)

// IsMultipart reports whether the request carries a multipart form.
func IsMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// Uploads returns the files sent under field. A request without a multipart
// body yields no files.
func Uploads(c echo.Context, field string) ([]storage.Upload, error) {
	if !IsMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperr.Validation("invalid multipart form").Wrap(err)
	}
	var out []storage.Upload
	for _, fh := range form.File[field] {
		out = append(out, storage.FromMultipart(fh))
	}
	return out, nil
}

// BindForm decodes the JSON document sent in the multipart field into v, or
// the whole body when the request is not multipart.
func BindForm(c echo.Context, field string, v any) error {
	if !IsMultipart(c) {
		return Bind(c, v)
	}
	raw := c.FormValue(field)
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return apperr.Validationf("invalid %s field", field).Wrap(err)
	}
	return nil
}
