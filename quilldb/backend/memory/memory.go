package memory

import (
	"sync"

	"github.com/quillsearch/quill/quilldb/backend"
	"github.com/quillsearch/quill/quilldb/encoding"
)

// store keeps pages in memory.  Used for tests and for indexes that never
// persist.
type store struct {
	mtx   sync.RWMutex
	pages []encoding.Page
}

func New() backend.PageStore {
	return &store{}
}

func (s *store) StorePage(p encoding.Page) (encoding.PageID, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.pages = append(s.pages, p)
	return encoding.PageID(len(s.pages) - 1), nil
}

func (s *store) ReadPage(id encoding.PageID) (encoding.Page, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if uint64(id) >= uint64(len(s.pages)) {
		return encoding.Page{}, backend.ErrKeyNotFound
	}
	return s.pages[id], nil
}

func (s *store) OverwritePage(id encoding.PageID, p encoding.Page) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if uint64(id) >= uint64(len(s.pages)) {
		return backend.ErrKeyNotFound
	}
	s.pages[id] = p
	return nil
}

func (s *store) Len() uint64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return uint64(len(s.pages))
}

func (s *store) Shutdown() {}
