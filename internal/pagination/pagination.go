package pagination

import (
	"math"

	"gorm.io/gorm"
)

// Defaults for list endpoints.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	DefaultLimit    = 50
)

// PageRequest holds pagination parameters parsed from query strings.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Defaults fills in default values when page or page_size are not provided.
func (p *PageRequest) Defaults() {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p *PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Window returns the limit/offset pair equivalent to this page.
func (p *PageRequest) Window() Window {
	return Window{Limit: p.PageSize, Offset: p.Offset()}
}

// PageResponse wraps a paginated list of items with metadata.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse creates a PageResponse from the given data and total count.
// TotalPages is at least 1 so empty tables still render a single page.
func NewPageResponse[T any](data []T, page, pageSize int, totalItems int64) PageResponse[T] {
	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	if totalPages < 1 {
		totalPages = 1
	}
	if data == nil {
		data = []T{}
	}
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given page request.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}

// Window is a raw limit/offset pair used by the log query APIs.
type Window struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Normalize applies DefaultLimit and clamps negative offsets.
func (w Window) Normalize() Window {
	if w.Limit <= 0 {
		w.Limit = DefaultLimit
	}
	if w.Offset < 0 {
		w.Offset = 0
	}
	return w
}

// Scope returns a GORM scope applying the window.
func (w Window) Scope() func(db *gorm.DB) *gorm.DB {
	n := w.Normalize()
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(n.Offset).Limit(n.Limit)
	}
}

// ListResponse is a window of rows plus the total number of matching rows.
type ListResponse[T any] struct {
	Data       []T   `json:"data"`
	TotalCount int64 `json:"total_count"`
}

// NewListResponse creates a ListResponse, never returning a nil slice.
func NewListResponse[T any](data []T, total int64) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{Data: data, TotalCount: total}
}
