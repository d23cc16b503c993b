package pagination

// Page-number pagination for the inventory list surfaces. Per-page defaults
// come from the effective config; the hard cap protects the DB regardless.

const (
	// DefaultPerPage is the standard page size when the effective config
	// does not provide one.
	DefaultPerPage = 25
	// MaxPerPage caps how many rows any list query can request.
	MaxPerPage = 200
)

// Params holds pagination inputs from controllers or services.
type Params struct {
	Page    int
	PerPage int
}

// Normalize enforces sane page and per-page values.
func (p Params) Normalize() Params {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset returns the row offset for the normalized params.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

// Result describes one returned page.
type Result struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalRows  int64 `json:"total_rows"`
	TotalPages int   `json:"total_pages"`
}

// NewResult computes page counts for a total row count.
func NewResult(params Params, totalRows int64) Result {
	n := params.Normalize()
	pages := int((totalRows + int64(n.PerPage) - 1) / int64(n.PerPage))
	if pages < 1 {
		pages = 1
	}
	return Result{
		Page:       n.Page,
		PerPage:    n.PerPage,
		TotalRows:  totalRows,
		TotalPages: pages,
	}
}
