package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/quilldb/backend"
	"github.com/quillsearch/quill/quilldb/backend/memory"
	"github.com/quillsearch/quill/quilldb/encoding"
)

func stampedBlock(v byte) encoding.Block {
	var b encoding.Block
	b[0] = v
	return b
}

func TestActiveFillAndRead(t *testing.T) {
	store := memory.New()
	c := New(store)

	id, err := c.StoreBlock(stampedBlock(1))
	require.NoError(t, err)

	// Active pages are served from memory; nothing is persisted yet.
	assert.Equal(t, uint64(0), store.Len())

	require.NoError(t, c.StoreInPlace(id, 1, stampedBlock(2)))
	require.NoError(t, c.StoreInPlace(id, 2, stampedBlock(3)))

	for slot, want := range []byte{1, 2, 3} {
		b, err := c.ReadBlock(id, encoding.BlockID(slot))
		require.NoError(t, err)
		assert.Equal(t, want, b[0])
	}
}

func TestStoreInPlaceUnknownPage(t *testing.T) {
	c := New(memory.New())
	err := c.StoreInPlace(42, 0, stampedBlock(1))
	assert.ErrorIs(t, err, backend.ErrKeyNotFound)
}

func TestFlushPage(t *testing.T) {
	store := memory.New()
	c := New(store)

	id, err := c.StoreBlock(stampedBlock(7))
	require.NoError(t, err)

	final, err := c.FlushPage(id)
	require.NoError(t, err)
	assert.Equal(t, encoding.PageID(0), final)
	assert.Equal(t, uint64(1), store.Len())

	// The provisional id is gone, the final id reads from the store.
	_, err = c.ReadBlock(id, 0)
	assert.Error(t, err)

	b, err := c.ReadBlock(final, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(7), b[0])

	// Flushing twice is an error.
	_, err = c.FlushPage(id)
	assert.ErrorIs(t, err, backend.ErrKeyNotFound)
}

func TestFlushUnfull(t *testing.T) {
	store := memory.New()
	c := New(store)

	id, err := c.StoreBlock(stampedBlock(1))
	require.NoError(t, err)
	require.NoError(t, c.StoreInPlace(id, 1, stampedBlock(2)))

	u, err := c.FlushUnfull(id, 2)
	require.NoError(t, err)
	assert.Equal(t, encoding.PageID(0), u.ID)
	assert.Equal(t, encoding.FirstBlockID, u.From)
	assert.Equal(t, encoding.BlockID(2), u.To)
	assert.Equal(t, 2, u.BlockCount())
	assert.Equal(t, uint64(1), store.Len())

	b, err := c.ReadBlock(u.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(2), b[0])

	// Deleting the descriptor leaves the page bytes in the store.
	c.DeleteUnfull(u.ID)
	assert.Equal(t, uint64(1), store.Len())
}

func TestProvisionalIDsDoNotCollide(t *testing.T) {
	store := memory.New()
	c := New(store)

	active, err := c.StoreBlock(stampedBlock(9))
	require.NoError(t, err)

	// Persist a different page; its final id must not alias the active
	// page still being filled.
	other, err := c.StoreBlock(stampedBlock(1))
	require.NoError(t, err)
	final, err := c.FlushPage(other)
	require.NoError(t, err)
	assert.NotEqual(t, active, final)

	b, err := c.ReadBlock(active, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(9), b[0])
}
