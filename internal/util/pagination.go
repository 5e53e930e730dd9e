package util

import "fmt"

const (
	PageDefaultSize = 50
	PageMaxSize     = 500
)

// PageError is a caller-correctable pagination problem; handlers map it to a
// 400.
type PageError struct {
	Reason string
}

func (e *PageError) Error() string { return e.Reason }

// Offset turns a 1-indexed page and a page size into an OFFSET value,
// validating both.
func Offset(page, size int) (int, error) {
	if page < 1 {
		return 0, &PageError{Reason: fmt.Sprintf("invalid page number %d", page)}
	}
	if size < 1 {
		return 0, &PageError{Reason: fmt.Sprintf("invalid page size %d", size)}
	}
	if size > PageMaxSize {
		return 0, &PageError{Reason: fmt.Sprintf("requested page size %d is too large (max %d)", size, PageMaxSize)}
	}
	return (page - 1) * size, nil
}

// ListMeta records which fraction of a collection a list query returned.
type ListMeta struct {
	Count int64 `json:"count"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// Pagination is the page-turning info derived from a ListMeta, shaped for API
// responses.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	PageSize    *int  `json:"page_size,omitempty"`
	PrevPage    *int  `json:"prev_page,omitempty"`
	NextPage    *int  `json:"next_page,omitempty"`
	TotalPages  int   `json:"total_pages"`
	TotalCount  int64 `json:"total_count"`
}

func (m ListMeta) Pagination() Pagination {
	totalPages := int((m.Count + int64(m.Size) - 1) / int64(m.Size))
	currentPage := m.Page
	if currentPage < 1 {
		currentPage = 1
	}
	p := Pagination{
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		TotalCount:  m.Count,
	}
	if m.Size != PageDefaultSize {
		size := m.Size
		p.PageSize = &size
	}
	if currentPage > 1 {
		// Guardrail in case the caller paged past the end.
		prev := min(currentPage-1, totalPages)
		p.PrevPage = &prev
	}
	if currentPage < totalPages {
		next := currentPage + 1
		p.NextPage = &next
	}
	return p
}
