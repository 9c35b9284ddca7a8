package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// Pagination describes one page of a listing
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ParsePagination reads page and page_size, falling back to the defaults on
// missing or invalid values and capping the size at maxSize.
func ParsePagination(c *gin.Context, defaultPage, defaultSize, maxSize int) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if err != nil || page < 1 {
		page = defaultPage
	}

	size, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultSize)))
	if err != nil || size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}

	return page, size
}

// paginate slices items down to the requested page. Pages past the end are empty.
func paginate[T any](items []T, page, size int) ([]T, Pagination) {
	p := Pagination{Page: page, PageSize: size, Total: len(items)}
	p.TotalPages = (len(items) + size - 1) / size

	start := (page - 1) * size
	if start >= len(items) {
		return []T{}, p
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], p
}

// WritePaginated writes items under itemsKey next to a pagination block
func WritePaginated(c *gin.Context, itemsKey string, items any, pagination Pagination) {
	c.JSON(http.StatusOK, gin.H{
		itemsKey:     items,
		"pagination": pagination,
	})
}
