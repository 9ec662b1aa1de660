package cache

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quillsearch/quill/quilldb/backend"
	"github.com/quillsearch/quill/quilldb/encoding"
)

var (
	metricActivePages = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quilldb",
		Name:      "cache_active_pages",
		Help:      "Pages currently being filled in memory.",
	})
	metricUnfullPages = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quilldb",
		Name:      "cache_unfull_pages",
		Help:      "Committed unfull-page descriptors held by the cache.",
	})
	metricPagesFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quilldb",
		Name:      "cache_pages_flushed_total",
		Help:      "Total pages persisted to the backing store.",
	})
)

// Active-fill pages carry provisional ids from a separate id space so they
// can never collide with ids the backing store assigns.
const provisionalBase = encoding.PageID(1) << 63

// PageCache stages pages that are still being filled between listings and
// the page store.  One writer mutates it; concurrent readers obtain blocks
// through ReadBlock.
type PageCache struct {
	mtx    sync.RWMutex
	store  backend.PageStore
	active map[encoding.PageID]*encoding.Page
	unfull map[encoding.PageID]encoding.UnfullPage
	nextID encoding.PageID
}

func New(store backend.PageStore) *PageCache {
	return &PageCache{
		store:  store,
		active: make(map[encoding.PageID]*encoding.Page),
		unfull: make(map[encoding.PageID]encoding.UnfullPage),
		nextID: provisionalBase,
	}
}

// StoreBlock allocates a fresh active-fill page with block at slot 0 and
// returns its provisional id.
func (c *PageCache) StoreBlock(block encoding.Block) (encoding.PageID, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	id := c.nextID
	c.nextID++

	p := &encoding.Page{}
	p.SetBlock(encoding.FirstBlockID, block)
	c.active[id] = p
	metricActivePages.Set(float64(len(c.active)))
	return id, nil
}

// StoreInPlace extends an active-fill page at the given slot.
func (c *PageCache) StoreInPlace(id encoding.PageID, blockID encoding.BlockID, block encoding.Block) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	p, ok := c.active[id]
	if !ok {
		return errors.Wrapf(backend.ErrKeyNotFound, "no active page %d", id)
	}
	p.SetBlock(blockID, block)
	return nil
}

// FlushPage persists a fully-used page and returns its final backing id.
func (c *PageCache) FlushPage(id encoding.PageID) (encoding.PageID, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	p, ok := c.active[id]
	if !ok {
		return encoding.NoPage, errors.Wrapf(backend.ErrKeyNotFound, "no active page %d", id)
	}
	final, err := c.store.StorePage(*p)
	if err != nil {
		return encoding.NoPage, err
	}
	delete(c.active, id)
	metricActivePages.Set(float64(len(c.active)))
	metricPagesFlushed.Inc()
	return final, nil
}

// FlushUnfull persists a page whose slots [0, to) are in use and retains the
// descriptor so the owner can later unravel it.
func (c *PageCache) FlushUnfull(id encoding.PageID, to encoding.BlockID) (encoding.UnfullPage, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	p, ok := c.active[id]
	if !ok {
		return encoding.UnfullPage{}, errors.Wrapf(backend.ErrKeyNotFound, "no active page %d", id)
	}
	final, err := c.store.StorePage(*p)
	if err != nil {
		return encoding.UnfullPage{}, err
	}
	delete(c.active, id)

	u := encoding.UnfullPage{ID: final, From: encoding.FirstBlockID, To: to}
	c.unfull[final] = u
	metricActivePages.Set(float64(len(c.active)))
	metricUnfullPages.Set(float64(len(c.unfull)))
	metricPagesFlushed.Inc()
	return u, nil
}

// DeleteUnfull drops the cached descriptor.  The page bytes stay in the
// backing store unreferenced; this core does not garbage-collect them.
func (c *PageCache) DeleteUnfull(id encoding.PageID) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	delete(c.unfull, id)
	metricUnfullPages.Set(float64(len(c.unfull)))
}

// ReadBlock serves a block, from memory for pages not yet flushed.
func (c *PageCache) ReadBlock(id encoding.PageID, blockID encoding.BlockID) (encoding.Block, error) {
	c.mtx.RLock()
	if p, ok := c.active[id]; ok {
		block := p.Block(blockID)
		c.mtx.RUnlock()
		return block, nil
	}
	c.mtx.RUnlock()

	p, err := c.store.ReadPage(id)
	if err != nil {
		return encoding.Block{}, err
	}
	return p.Block(blockID), nil
}
