package backend

import (
	"github.com/pkg/errors"

	"github.com/quillsearch/quill/quilldb/encoding"
)

var (
	// ErrKeyNotFound is returned on lookups of a page id the store never
	// assigned.  Observing it from a query path is an internal bug.
	ErrKeyNotFound = errors.New("key not found")
)

// PageStore persists pages and reads them back by id.  Page ids are dense,
// assigned in append order starting at 0.  Integrity is external; the store
// keeps no checksums.
type PageStore interface {
	// StorePage appends a page and returns its id.
	StorePage(p encoding.Page) (encoding.PageID, error)

	// ReadPage random-reads a previously stored page.
	ReadPage(id encoding.PageID) (encoding.Page, error)

	// OverwritePage random-writes at an existing id.
	OverwritePage(id encoding.PageID, p encoding.Page) error

	// Len returns the number of pages stored.
	Len() uint64

	Shutdown()
}
