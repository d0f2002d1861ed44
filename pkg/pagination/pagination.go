package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// Params holds 1-based page pagination extracted from a request.
type Params struct {
	Page int
	Size int
}

// FromContext reads page and size query parameters. Out of range values
// fall back to the defaults; size is capped at MaxSize.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return Params{Page: page, Size: size}
}

// Limit is the SQL LIMIT for the page.
func (p Params) Limit() int { return p.Size }

// Offset is the SQL OFFSET for the page.
func (p Params) Offset() int { return (p.Page - 1) * p.Size }

// Response wraps a paginated API response.
type Response struct {
	Items any `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

func NewResponse(items any, total int, p Params) *Response {
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return &Response{
		Items: items,
		Total: total,
		Page:  p.Page,
		Size:  p.Size,
		Pages: pages,
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.Size < total
}
