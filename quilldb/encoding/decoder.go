package encoding

import (
	"io"
	"sort"

	"github.com/pkg/errors"
)

// BlockReader serves single blocks by page and slot.  The RAM page cache
// implements it; pages still being filled are served from memory.
type BlockReader interface {
	ReadBlock(id PageID, block BlockID) (Block, error)
}

// BlockIter addresses a listing's blocks by their global index across the
// listing's page sequence.
type BlockIter struct {
	reader BlockReader
	pages  Pages
}

func NewBlockIter(reader BlockReader, pages Pages) *BlockIter {
	return &BlockIter{reader: reader, pages: pages}
}

// Count returns the total number of blocks addressed.
func (it *BlockIter) Count() int {
	return it.pages.BlockCount()
}

// Block fetches the i-th block of the listing.
func (it *BlockIter) Block(i int) (Block, error) {
	full := len(it.pages.IDs) * PageBlocks
	if i < full {
		return it.reader.ReadBlock(it.pages.IDs[i/PageBlocks], BlockID(i%PageBlocks))
	}
	u := it.pages.Unfull
	if u == nil || i >= full+u.BlockCount() {
		return Block{}, errors.Errorf("block %d out of range", i)
	}
	return it.reader.ReadBlock(u.ID, u.From+BlockID(i-full))
}

// PostingDecoder iterates a listing's postings in doc id order.  It is
// constructed from a block iterator plus the listing's block biases and total
// posting count, and observes a snapshot taken at construction.
type PostingDecoder struct {
	blocks *BlockIter
	biases []DocID
	total  uint32

	blockIdx int
	data     Block
	off      int
	running  DocID
}

func NewPostingDecoder(blocks *BlockIter, biases []DocID, total uint32) *PostingDecoder {
	return &PostingDecoder{
		blocks:   blocks,
		biases:   biases,
		total:    total,
		blockIdx: -1,
	}
}

// Len returns the number of postings in the listing.
func (d *PostingDecoder) Len() int {
	return int(d.total)
}

// Next yields the next posting, or io.EOF once the listing is exhausted.
func (d *PostingDecoder) Next() (Posting, error) {
	for {
		if d.blockIdx == -1 || d.off >= BlockSize {
			if err := d.enterBlock(d.blockIdx + 1); err != nil {
				return Posting{}, err
			}
		}

		v, n := Uvarint(d.data[d.off:])
		if n == 0 {
			return Posting{}, errors.Wrap(ErrCorruptedIndexFile, "posting record straddles a block boundary")
		}
		if v == 0 {
			// Terminator: the rest of this block is padding.
			if err := d.enterBlock(d.blockIdx + 1); err != nil {
				return Posting{}, err
			}
			continue
		}
		d.off += n
		doc := d.running + DocID(v-1)
		d.running = doc

		count, n := Uvarint(d.data[d.off:])
		if n == 0 {
			return Posting{}, errors.Wrap(ErrCorruptedIndexFile, "truncated positions length")
		}
		d.off += n
		positions := make([]uint32, 0, count)
		var pos uint32
		for i := uint64(0); i < count; i++ {
			delta, n := Uvarint(d.data[d.off:])
			if n == 0 {
				return Posting{}, errors.Wrap(ErrCorruptedIndexFile, "truncated position delta")
			}
			d.off += n
			pos += uint32(delta)
			positions = append(positions, pos)
		}
		return Posting{DocID: doc, Positions: positions}, nil
	}
}

// NextSeek yields the first posting with doc id >= target.  Subsequent Next
// calls match the forward-only traversal from that point.  For monotonically
// non-decreasing targets each block is read at most once.
func (d *PostingDecoder) NextSeek(target DocID) (Posting, error) {
	// Largest bias < target anchors the first block that could contain it.
	// A bias equal to the target does not: that block's bias may be the
	// previous block's last doc id.
	k := sort.Search(len(d.biases), func(i int) bool {
		return d.biases[i] >= target
	}) - 1
	if k < 0 {
		k = 0
	}

	if k > d.blockIdx {
		if err := d.enterBlock(k); err != nil {
			return Posting{}, err
		}
	}

	for {
		p, err := d.Next()
		if err != nil {
			return Posting{}, err
		}
		if p.DocID >= target {
			return p, nil
		}
	}
}

func (d *PostingDecoder) enterBlock(i int) error {
	if i >= d.blocks.Count() {
		return io.EOF
	}
	if i >= len(d.biases) {
		return errors.Wrap(ErrCorruptedIndexFile, "block without a bias")
	}
	block, err := d.blocks.Block(i)
	if err != nil {
		return err
	}
	d.blockIdx = i
	d.data = block
	d.off = 0
	// The running doc id re-bases on every block entry; records inside the
	// block are deltas against this anchor.
	d.running = d.biases[i]
	return nil
}
