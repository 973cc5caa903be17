package model

const (
	DefaultPageLimit = 500
	MaxPageLimit     = 500
)

// Page is a clamped offset/limit window.
type Page struct {
	Limit  int
	Offset int
}

// NewPage clamps limit to [1, MaxPageLimit] and offset to >= 0.
func NewPage(limit, offset int) Page {
	switch {
	case limit < 1:
		limit = 1
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// NextOffset reports offset+returned only when the page came back full.
// It is a cheap "there may be more" hint, not an exact count.
func (p Page) NextOffset(returned int) *int {
	if returned != p.Limit {
		return nil
	}
	next := p.Offset + returned
	return &next
}
