package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/quilldb/backend"
	"github.com/quillsearch/quill/quilldb/encoding"
)

func testPage(stamp byte) encoding.Page {
	p := encoding.Page{}
	var b encoding.Block
	b[0] = stamp
	b[encoding.BlockSize-1] = stamp
	p.SetBlock(encoding.FirstBlockID, b)
	p.SetBlock(encoding.LastBlockID, b)
	return p
}

func TestStoreReadPage(t *testing.T) {
	s, err := New(&Config{Path: t.TempDir()})
	require.NoError(t, err)
	defer s.Shutdown()

	id0, err := s.StorePage(testPage(1))
	require.NoError(t, err)
	assert.Equal(t, encoding.PageID(0), id0)

	id1, err := s.StorePage(testPage(2))
	require.NoError(t, err)
	assert.Equal(t, encoding.PageID(1), id1)
	assert.Equal(t, uint64(2), s.Len())

	p, err := s.ReadPage(id0)
	require.NoError(t, err)
	assert.Equal(t, testPage(1), p)

	p, err = s.ReadPage(id1)
	require.NoError(t, err)
	assert.Equal(t, testPage(2), p)
}

func TestReadMissingPage(t *testing.T) {
	s, err := New(&Config{Path: t.TempDir()})
	require.NoError(t, err)
	defer s.Shutdown()

	_, err = s.ReadPage(0)
	assert.ErrorIs(t, err, backend.ErrKeyNotFound)
}

func TestOverwritePage(t *testing.T) {
	s, err := New(&Config{Path: t.TempDir()})
	require.NoError(t, err)
	defer s.Shutdown()

	id, err := s.StorePage(testPage(1))
	require.NoError(t, err)

	require.NoError(t, s.OverwritePage(id, testPage(9)))
	p, err := s.ReadPage(id)
	require.NoError(t, err)
	assert.Equal(t, testPage(9), p)

	assert.ErrorIs(t, s.OverwritePage(5, testPage(3)), backend.ErrKeyNotFound)
}

func TestReopenPersistedPages(t *testing.T) {
	dir := t.TempDir()

	s, err := New(&Config{Path: dir})
	require.NoError(t, err)
	_, err = s.StorePage(testPage(1))
	require.NoError(t, err)
	_, err = s.StorePage(testPage(2))
	require.NoError(t, err)
	s.Shutdown()

	s, err = New(&Config{Path: dir})
	require.NoError(t, err)
	defer s.Shutdown()

	assert.Equal(t, uint64(2), s.Len())
	p, err := s.ReadPage(1)
	require.NoError(t, err)
	assert.Equal(t, testPage(2), p)

	// Ids keep growing densely after reopen.
	id, err := s.StorePage(testPage(3))
	require.NoError(t, err)
	assert.Equal(t, encoding.PageID(2), id)
}
