package httpapi

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func parsePage(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// paginated builds the server-side pagination envelope.
func paginated(data any, page, perPage int, total int64) map[string]any {
	return map[string]any{
		"success":      true,
		"data":         data,
		"current_page": page,
		"per_page":     perPage,
		"total":        total,
	}
}

// HasNext reports whether a further page exists after the current one.
func HasNext(page, perPage int, total int64) bool {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	return int64(page)*int64(perPage) < total
}
