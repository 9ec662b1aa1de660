package encoding

// Compressor packs a run of postings into one block and back.  Changing the
// codec changes the per-block byte format only; block biases and block count
// remain the contract.
type Compressor interface {
	// Compress drains enough postings to fill one block, if the buffer
	// holds that many, and returns the filled block.  It never partially
	// drains: when everything buffered still fits with room to spare it
	// returns false and waits for more.
	Compress(buf *BiasedRingBuffer) (Block, bool)

	// ForceCompress drains whatever is buffered into one terminated
	// block.  Used only at commit time, after Compress has been looped to
	// exhaustion.
	ForceCompress(buf *BiasedRingBuffer) Block

	// Decompress appends the block's postings to the buffer until the
	// terminator or the block end.
	Decompress(block Block, buf *BiasedRingBuffer)
}

// PositionalCompressor is the vbyte codec used by the engine.  A block is a
// stream of records delta-encoded against the block's bias:
//
//	<vbyte delta_doc+1> <vbyte positions_len> <vbyte pos_0> <vbyte pos_delta_1> ...
//
// For record 0 the delta is taken against the bias itself, afterwards against
// the previous record's doc id.  The doc delta is shifted by +1 so that a raw
// zero varint terminates the block; a block whose records leave bytes free
// carries that terminator right after its last record.  A record never
// straddles blocks.
type PositionalCompressor struct{}

// PostingFits reports whether a posting can ever be packed into one block
// under this codec, using the worst-case doc delta.
func (PositionalCompressor) PostingFits(p Posting) bool {
	return worstRecordLen(p) <= BlockSize
}

func (PositionalCompressor) Compress(buf *BiasedRingBuffer) (Block, bool) {
	n, _ := packable(buf)
	if n == buf.Count() {
		// Everything still fits; the block is not full yet.
		return Block{}, false
	}
	return emit(buf, n), true
}

func (PositionalCompressor) ForceCompress(buf *BiasedRingBuffer) Block {
	return emit(buf, buf.Count())
}

func (PositionalCompressor) Decompress(block Block, buf *BiasedRingBuffer) {
	off := 0
	var prev DocID
	for off < BlockSize {
		v, n := Uvarint(block[off:])
		if n == 0 || v == 0 {
			return
		}
		off += n
		doc := prev + DocID(v-1)
		prev = doc

		count, n := Uvarint(block[off:])
		if n == 0 {
			return
		}
		off += n
		positions := make([]uint32, 0, count)
		var pos uint32
		for i := uint64(0); i < count; i++ {
			d, n := Uvarint(block[off:])
			if n == 0 {
				return
			}
			off += n
			pos += uint32(d)
			positions = append(positions, pos)
		}
		buf.PushBackBiased(Posting{DocID: doc, Positions: positions})
	}
}

// packable walks the buffer from the front and returns how many postings fit
// into one block, along with their encoded size.
func packable(buf *BiasedRingBuffer) (int, int) {
	size := 0
	var prev DocID
	for i := 0; i < buf.Count(); i++ {
		p := buf.at(i)
		v := p.DocID - buf.Base()
		rec := recordLen(v-prev, p.Positions)
		if size+rec > BlockSize {
			return i, size
		}
		size += rec
		prev = v
	}
	return buf.Count(), size
}

// emit drains n postings into a fresh block.
func emit(buf *BiasedRingBuffer, n int) Block {
	var block Block
	off := 0
	var prev DocID
	for i := 0; i < n; i++ {
		p, _ := buf.PopFrontBiased()
		off += PutUvarint(block[off:], uint64(p.DocID-prev)+1)
		prev = p.DocID
		off += PutUvarint(block[off:], uint64(len(p.Positions)))
		var last uint32
		for _, pos := range p.Positions {
			off += PutUvarint(block[off:], uint64(pos-last))
			last = pos
		}
	}
	if off < BlockSize {
		// Zero bytes are continuation bytes in this vbyte convention, so the
		// padding alone does not end the block.
		PutUvarint(block[off:], 0)
	}
	return block
}

func recordLen(delta DocID, positions []uint32) int {
	n := UvarintLen(uint64(delta)+1) + UvarintLen(uint64(len(positions)))
	var last uint32
	for _, pos := range positions {
		n += UvarintLen(uint64(pos - last))
		last = pos
	}
	return n
}

func worstRecordLen(p Posting) int {
	return recordLen(p.DocID, p.Positions)
}
