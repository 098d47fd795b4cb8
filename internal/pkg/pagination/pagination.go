package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wikiquiz/server/internal/pkg/response"
)

const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 50
)

// Query holds parsed pagination parameters.
type Query struct {
	Page int
	Size int
}

// FromContext extracts and validates pagination params from the request.
// "limit" is the public name of the page size; "size" is accepted as an alias.
func FromContext(c *gin.Context) Query {
	page := parseIntOr(c.DefaultQuery("page", "1"), DefaultPage)
	raw := c.Query("limit")
	if raw == "" {
		raw = c.Query("size")
	}
	size := parseIntOr(raw, DefaultSize)
	return Normalize(page, size)
}

// Normalize clamps page to >= 1 and size to 1..MaxSize.
func Normalize(page, size int) Query {
	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return Query{Page: page, Size: size}
}

// Offset is the number of rows skipped before this page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.Size
}

// Meta builds the pagination metadata for q given the total row count.
func (q Query) Meta(total int64) response.Pagination {
	totalPage := int((total + int64(q.Size) - 1) / int64(q.Size))
	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   totalPage,
		Size:        q.Size,
		HasNextPage: q.Page < totalPage,
	}
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
