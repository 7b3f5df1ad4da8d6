package http

import (
	"net/http"
	"strconv"

	apperrors "smartassist/pkg/errors"
)

// MaxListLimit caps a single page of any list endpoint.
const MaxListLimit = 500

// ExtractLimitOffset reads optional limit/offset query parameters.
// A zero limit means "no limit"; callers return the full list.
func ExtractLimitOffset(r *http.Request) (int, int, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = min(v, MaxListLimit)
	}

	offset := 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	return limit, offset, nil
}

// Page slices items according to limit/offset as returned by ExtractLimitOffset.
func Page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
