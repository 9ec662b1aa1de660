package quilldb

import (
	"io"

	"github.com/pkg/errors"

	"github.com/quillsearch/quill/quilldb/cache"
	"github.com/quillsearch/quill/quilldb/encoding"
)

// ErrPostingTooLarge is returned when a single posting's encoding cannot fit
// one block.  A block never splits a posting, so such a posting cannot be
// stored at the current block size.
var ErrPostingTooLarge = errors.New("posting too large for one block")

// shipInterval is how often the add loop checks whether a block can be
// compressed and shipped.
const shipInterval = 16

// Listing accumulates the postings of one term, compresses them into blocks
// and ships the blocks through the page cache.  Single writer; decoders
// observe a snapshot taken at construction.
type Listing struct {
	pages        encoding.Pages
	currentPage  encoding.PageID
	blockBiases  []encoding.DocID
	blockCounter encoding.BlockID
	// blockStart is the bias of the block currently being filled;
	// blockEnd is the last doc id accepted overall.
	blockStart encoding.DocID
	blockEnd   encoding.DocID
	fresh      bool
	buffer     encoding.BiasedRingBuffer
	total      uint32

	compressor encoding.PositionalCompressor
}

func NewListing() *Listing {
	return &Listing{
		currentPage: encoding.NoPage,
		fresh:       true,
	}
}

// restoredListing rebuilds a listing from its persisted state.  The in-flight
// state resumes as if the last commit had just happened.
func restoredListing(pages encoding.Pages, biases []encoding.DocID, total uint32) *Listing {
	l := &Listing{
		pages:       pages,
		blockBiases: biases,
		currentPage: encoding.NoPage,
		total:       total,
		fresh:       true,
	}
	if len(biases) > 0 {
		l.blockStart = biases[len(biases)-1]
	}
	l.buffer.SetBase(l.blockStart)
	return l
}

// Len returns the number of postings accepted so far.
func (l *Listing) Len() int {
	return int(l.total)
}

// Add appends postings in doc id order.  Consecutive postings with equal doc
// ids collapse to the first.  If the listing was committed, the trailing
// unfull page is unraveled before the new postings are buffered.
func (l *Listing) Add(postings []encoding.Posting, c *cache.PageCache) error {
	if l.pages.HasUnfull() {
		if err := l.unravelUnfull(c); err != nil {
			return err
		}
	}
	for i, p := range postings {
		if !l.fresh && p.DocID == l.blockEnd {
			continue
		}
		if !l.compressor.PostingFits(p) {
			return errors.Wrapf(ErrPostingTooLarge, "doc %d with %d positions", p.DocID, len(p.Positions))
		}
		l.fresh = false
		l.blockEnd = p.DocID
		l.buffer.PushBack(p)
		l.total++
		if i%shipInterval == 0 {
			if err := l.compressAndShip(c, false); err != nil {
				return err
			}
		}
	}
	return l.compressAndShip(c, false)
}

// Commit drains the buffer, padding the final block, and parks the current
// page as unfull so a later Add can resume filling it.
func (l *Listing) Commit(c *cache.PageCache) error {
	if err := l.compressAndShip(c, true); err != nil {
		return err
	}
	if l.currentPage != encoding.NoPage {
		u, err := c.FlushUnfull(l.currentPage, l.blockCounter)
		if err != nil {
			return err
		}
		l.pages.AddUnfull(u)
		l.currentPage = encoding.NoPage
		l.blockCounter = encoding.FirstBlockID
	}
	return nil
}

// Decoder constructs a posting decoder over a snapshot of this listing.
func (l *Listing) Decoder(c *cache.PageCache) *encoding.PostingDecoder {
	biases := append([]encoding.DocID(nil), l.blockBiases...)
	return encoding.NewPostingDecoder(encoding.NewBlockIter(c, l.pages.Clone()), biases, l.total)
}

func (l *Listing) compressAndShip(c *cache.PageCache, force bool) error {
	for {
		block, ok := l.compressor.Compress(&l.buffer)
		if !ok {
			break
		}
		if err := l.ship(block, c); err != nil {
			return err
		}
	}
	if force && l.buffer.Count() > 0 {
		if err := l.ship(l.compressor.ForceCompress(&l.buffer), c); err != nil {
			return err
		}
	}
	return nil
}

// ship places one block on the current page, records the block's bias, and
// flushes the page once its last slot is used.  All-or-nothing per block: on
// error no in-memory state has changed.
func (l *Listing) ship(block encoding.Block, c *cache.PageCache) error {
	if l.blockCounter == encoding.FirstBlockID {
		id, err := c.StoreBlock(block)
		if err != nil {
			return err
		}
		l.currentPage = id
	} else {
		if err := c.StoreInPlace(l.currentPage, l.blockCounter, block); err != nil {
			return err
		}
	}
	l.blockBiases = append(l.blockBiases, l.blockStart)

	if l.blockCounter == encoding.LastBlockID {
		final, err := c.FlushPage(l.currentPage)
		if err != nil {
			return err
		}
		l.pages.Push(final)
		l.currentPage = encoding.NoPage
		l.blockCounter = encoding.FirstBlockID
	} else {
		l.blockCounter++
	}

	// The next block's bias: its first posting if already buffered,
	// otherwise the last doc id shipped.
	if p, ok := l.buffer.PeekFront(); ok {
		l.blockStart = p.DocID
	} else {
		l.blockStart = l.blockEnd
	}
	l.buffer.SetBase(l.blockStart)
	return nil
}

// unravelUnfull rewinds the listing to the state before its last unfull page
// was shipped: the page's postings are decoded, the biases and counters
// truncated, and the postings re-added through the normal path.  Append after
// commit is correct but not free; callers should batch.
func (l *Listing) unravelUnfull(c *cache.PageCache) error {
	u, ok := l.pages.TakeUnfull()
	if !ok {
		return nil
	}
	k := u.BlockCount()
	cut := len(l.blockBiases) - k
	firstBias := l.blockBiases[cut]

	l.buffer.SetBase(firstBias)
	dec := encoding.NewPostingDecoder(
		encoding.NewBlockIter(c, encoding.Pages{Unfull: &u}),
		l.blockBiases[cut:],
		l.total,
	)
	var decoded []encoding.Posting
	for {
		p, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "unraveling unfull page")
		}
		decoded = append(decoded, p)
	}

	l.blockBiases = l.blockBiases[:cut]
	l.total -= uint32(len(decoded))
	l.blockCounter = encoding.FirstBlockID
	l.currentPage = encoding.NoPage
	l.blockStart = firstBias
	l.fresh = true

	c.DeleteUnfull(u.ID)
	return l.Add(decoded, c)
}
