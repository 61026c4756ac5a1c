package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Pagination is the envelope fragment merged into list responses.
type Pagination struct {
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
}

func newPagination(total int64, page, limit, pageSize int) Pagination {
	totalPages := int(total+int64(limit)-1) / limit
	return Pagination{
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: page,
		PageSize:    pageSize,
	}
}

// respond writes the standard success envelope.
func respond(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, echo.Map{
		"success": true,
		"data":    data,
		"message": message,
	})
}

// respondPage writes the success envelope with pagination merged in.
func respondPage(c echo.Context, status int, data interface{}, p Pagination, message string) error {
	return c.JSON(status, echo.Map{
		"success":    true,
		"data":       data,
		"pagination": p,
		"message":    message,
	})
}

// pageParams parses page/limit query parameters with the usual defaults.
func pageParams(c echo.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}

	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	offset = (page - 1) * limit
	return page, limit, offset
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// pathParamID parses a named numeric route parameter.
func pathParamID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.ErrBadRequest
	}
	return uint(id), nil
}
