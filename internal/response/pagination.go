package response

// Pagination holds pagination information.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Page is a normalized page request.
type Page struct {
	Page    int
	PerPage int
}

// NewPage clamps page and perPage into the accepted range.
func NewPage(page, perPage int) Page {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Page{Page: page, PerPage: perPage}
}

func (p Page) Limit() int  { return p.PerPage }
func (p Page) Offset() int { return (p.Page - 1) * p.PerPage }

// Of builds the pagination block for total items.
func (p Page) Of(total int) *Pagination {
	return &Pagination{
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalItems: total,
		TotalPages: (total + p.PerPage - 1) / p.PerPage,
	}
}
