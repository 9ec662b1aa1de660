package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBufferPushPop(t *testing.T) {
	b := &RingBuffer{}
	assert.Equal(t, 0, b.Count())
	assert.True(t, b.IsEmpty())

	b.PushBack(NewPosting(10))
	assert.Equal(t, 1, b.Count())

	p, ok := b.PopFront()
	assert.True(t, ok)
	assert.Equal(t, DocID(10), p.DocID)
	assert.Equal(t, 0, b.Count())

	_, ok = b.PopFront()
	assert.False(t, ok)
}

func TestRingBufferOrdering(t *testing.T) {
	b := &RingBuffer{}
	b.PushBack(NewPosting(5))
	b.PushBack(NewPosting(10))
	b.PushBack(NewPosting(15))

	assert.Equal(t, 3, b.Count())
	p, _ := b.PopFront()
	assert.Equal(t, DocID(5), p.DocID)
	p, _ = b.PopFront()
	assert.Equal(t, DocID(10), p.DocID)
	assert.Equal(t, 1, b.Count())
}

func TestRingBufferFull(t *testing.T) {
	b := &RingBuffer{}
	for i := 0; i < RingCapacity; i++ {
		b.PushBack(NewPosting(DocID(i)))
	}
	assert.Equal(t, RingCapacity, b.Count())

	p, _ := b.PopFront()
	assert.Equal(t, DocID(0), p.DocID)
	p, _ = b.PopFront()
	assert.Equal(t, DocID(1), p.DocID)
	assert.Equal(t, RingCapacity-2, b.Count())

	// Wrap around the backing array.
	b.PushBack(NewPosting(100))
	b.PushBack(NewPosting(101))
	assert.Equal(t, RingCapacity, b.Count())
}

func TestRingBufferOverflowPanics(t *testing.T) {
	b := &RingBuffer{}
	for i := 0; i < RingCapacity; i++ {
		b.PushBack(NewPosting(DocID(i)))
	}
	assert.Panics(t, func() { b.PushBack(NewPosting(999)) })
}

func TestRingBufferFlush(t *testing.T) {
	b := &RingBuffer{}
	b.PushBack(NewPosting(10))
	b.PushBack(NewPosting(9))
	assert.Equal(t, 2, b.Count())

	p, _ := b.PopFront()
	assert.Equal(t, DocID(10), p.DocID)

	b.Flush()
	_, ok := b.PopFront()
	assert.False(t, ok)
	assert.True(t, b.IsEmpty())
}

func TestRingBufferPeek(t *testing.T) {
	b := &RingBuffer{}
	_, ok := b.PeekFront()
	assert.False(t, ok)

	b.PushBack(NewPosting(7))
	p, ok := b.PeekFront()
	assert.True(t, ok)
	assert.Equal(t, DocID(7), p.DocID)
	assert.Equal(t, 1, b.Count())
}

func TestBiasedRingBuffer(t *testing.T) {
	b := &BiasedRingBuffer{}
	b.SetBase(100)

	// Biased pop subtracts the base from the doc id only.
	b.PushBack(NewPosting(110, 4, 8))
	p, ok := b.PopFrontBiased()
	assert.True(t, ok)
	assert.Equal(t, DocID(10), p.DocID)
	assert.Equal(t, []uint32{4, 8}, p.Positions)

	// Biased push adds the base back.
	b.PushBackBiased(NewPosting(10))
	p, ok = b.PopFront()
	assert.True(t, ok)
	assert.Equal(t, DocID(110), p.DocID)
}

func TestBiasedRingBufferRebase(t *testing.T) {
	b := &BiasedRingBuffer{}
	b.PushBack(NewPosting(5))
	b.SetBase(5)
	b.PushBack(NewPosting(9))

	p, _ := b.PopFrontBiased()
	assert.Equal(t, DocID(0), p.DocID)
	p, _ = b.PopFrontBiased()
	assert.Equal(t, DocID(4), p.DocID)
}
