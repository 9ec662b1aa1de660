package local

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/quillsearch/quill/quilldb/backend"
	"github.com/quillsearch/quill/quilldb/encoding"
)

const dataFileName = "data.bin"

type Config struct {
	Path string `yaml:"path"`
}

// store persists pages as a dense sequence in data.bin.  The page id is the
// byte offset divided by the page size; there is no header.  All reads go
// through ReadAt so concurrent readers never race on a file cursor.
type store struct {
	mtx   sync.Mutex
	file  *os.File
	pages uint64
}

func New(cfg *Config) (backend.PageStore, error) {
	err := os.MkdirAll(cfg.Path, os.ModePerm)
	if err != nil {
		return nil, errors.Wrap(err, "creating backing directory")
	}

	f, err := os.OpenFile(filepath.Join(cfg.Path, dataFileName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening backing file")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "statting backing file")
	}

	return &store{
		file:  f,
		pages: uint64(info.Size()) / encoding.PageBytes,
	}, nil
}

func (s *store) StorePage(p encoding.Page) (encoding.PageID, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	id := encoding.PageID(s.pages)
	if err := s.writeAt(id, p); err != nil {
		return encoding.NoPage, err
	}
	s.pages++
	return id, nil
}

func (s *store) ReadPage(id encoding.PageID) (encoding.Page, error) {
	s.mtx.Lock()
	pages := s.pages
	s.mtx.Unlock()

	var p encoding.Page
	if uint64(id) >= pages {
		return p, backend.ErrKeyNotFound
	}

	buf := make([]byte, encoding.PageBytes)
	if _, err := s.file.ReadAt(buf, int64(id)*encoding.PageBytes); err != nil {
		return p, errors.Wrap(err, "reading page")
	}
	for i := range p {
		copy(p[i][:], buf[i*encoding.BlockSize:(i+1)*encoding.BlockSize])
	}
	return p, nil
}

func (s *store) OverwritePage(id encoding.PageID, p encoding.Page) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if uint64(id) >= s.pages {
		return backend.ErrKeyNotFound
	}
	return s.writeAt(id, p)
}

func (s *store) Len() uint64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.pages
}

func (s *store) Shutdown() {
	s.file.Close()
}

func (s *store) writeAt(id encoding.PageID, p encoding.Page) error {
	buf := make([]byte, 0, encoding.PageBytes)
	for i := range p {
		buf = append(buf, p[i][:]...)
	}
	_, err := s.file.WriteAt(buf, int64(id)*encoding.PageBytes)
	return errors.Wrap(err, "writing page")
}
