package encoding

// RingCapacity bounds the number of postings staged for compression.  It must
// hold at least one block's worth of postings plus the ship interval, so the
// compress-and-ship loop always drains before an add can overflow.
const RingCapacity = 64

// RingBuffer is a fixed-capacity FIFO of postings.  Pushing past capacity is
// a programmer error and panics.
type RingBuffer struct {
	buff  [RingCapacity]Posting
	start int
	count int
}

func (r *RingBuffer) PushBack(p Posting) {
	if r.count == RingCapacity {
		panic("ring buffer overflow")
	}
	r.buff[(r.start+r.count)%RingCapacity] = p
	r.count++
}

func (r *RingBuffer) PopFront() (Posting, bool) {
	if r.count == 0 {
		return Posting{}, false
	}
	p := r.buff[r.start]
	r.count--
	r.start = (r.start + 1) % RingCapacity
	return p, true
}

func (r *RingBuffer) PeekFront() (Posting, bool) {
	if r.count == 0 {
		return Posting{}, false
	}
	return r.buff[r.start], true
}

// at returns the i-th element from the front without consuming it.
func (r *RingBuffer) at(i int) Posting {
	return r.buff[(r.start+i)%RingCapacity]
}

func (r *RingBuffer) Count() int {
	return r.count
}

func (r *RingBuffer) IsEmpty() bool {
	return r.count == 0
}

func (r *RingBuffer) Flush() {
	r.start = 0
	r.count = 0
}

// BiasedRingBuffer is a ring buffer with a subtractable base doc id.  The
// bias applies to doc ids only, never to positions.  Compressors emit deltas;
// the bias lets a freshly re-opened listing resume deltas from the last
// block's first doc id without re-reading prior blocks.
type BiasedRingBuffer struct {
	RingBuffer
	base DocID
}

func (b *BiasedRingBuffer) SetBase(base DocID) {
	b.base = base
}

func (b *BiasedRingBuffer) Base() DocID {
	return b.base
}

// PushBackBiased stores p with the base added to its doc id.
func (b *BiasedRingBuffer) PushBackBiased(p Posting) {
	p.DocID += b.base
	b.PushBack(p)
}

// PopFrontBiased returns the front posting with the base subtracted from its
// doc id.
func (b *BiasedRingBuffer) PopFrontBiased() (Posting, bool) {
	p, ok := b.PopFront()
	if !ok {
		return Posting{}, false
	}
	p.DocID -= b.base
	return p, true
}
