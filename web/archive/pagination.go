package archive

import (
	"errors"
	"fmt"
)

// Listing limits of the run index
const (
	FirstPage      = 1
	DefaultPerPage = 20
	MaxPerPage     = 100
)

var ErrPerPageTooLarge = errors.New("per_page exceeds the listing limit")

// Page is a 1-based position in the run listing.
type Page uint64

// PerPage is how many runs one page of the listing holds.
type PerPage uint64

// NewPage treats zero as the first page.
func NewPage(n uint64) Page {
	return Page(max(n, FirstPage))
}

// NewPerPage falls back to DefaultPerPage for zero and caps the page at MaxPerPage.
func NewPerPage(n uint64) (PerPage, error) {
	switch {
	case n == 0:
		return DefaultPerPage, nil
	case n > MaxPerPage:
		return 0, fmt.Errorf("%w: %d is above %d", ErrPerPageTooLarge, n, MaxPerPage)
	}
	return PerPage(n), nil
}

// Offset is the number of runs listed on the pages before p.
func (p Page) Offset(size PerPage) uint64 {
	return (uint64(p) - 1) * uint64(size)
}
