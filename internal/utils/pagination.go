package utils

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PaginationMeta represents pagination metadata
type PaginationMeta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// CalculatePagination calculates pagination metadata
func CalculatePagination(total int64, page, limit int) PaginationMeta {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}

	return PaginationMeta{
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pages,
	}
}

// ParsePagination reads page and limit query params. Invalid values fall back
// to page 1 and defaultLimit; limit is capped at maxLimit.
func ParsePagination(c *gin.Context, defaultLimit, maxLimit int) (page, limit int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
