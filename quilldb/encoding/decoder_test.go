package encoding

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shipPostings runs the compressor over postings the way a listing does,
// building pages, biases and the unfull tail for decoder tests.
func shipPostings(t *testing.T, postings []Posting) (mapReader, Pages, []DocID) {
	t.Helper()

	c := PositionalCompressor{}
	buf := &BiasedRingBuffer{}
	reader := mapReader{}
	pages := Pages{}

	var biases []DocID
	var blockStart, blockEnd DocID
	var current *Page
	var nextPage PageID
	var slot BlockID

	ship := func(block Block) {
		if slot == FirstBlockID {
			current = &Page{}
		}
		current.SetBlock(slot, block)
		biases = append(biases, blockStart)
		if slot == LastBlockID {
			reader[nextPage] = current
			pages.Push(nextPage)
			nextPage++
			current = nil
			slot = FirstBlockID
		} else {
			slot++
		}
		if p, ok := buf.PeekFront(); ok {
			blockStart = p.DocID
		} else {
			blockStart = blockEnd
		}
		buf.SetBase(blockStart)
	}

	for i, p := range postings {
		blockEnd = p.DocID
		buf.PushBack(p)
		if i%16 == 0 {
			for {
				block, ok := c.Compress(buf)
				if !ok {
					break
				}
				ship(block)
			}
		}
	}
	for {
		block, ok := c.Compress(buf)
		if !ok {
			break
		}
		ship(block)
	}
	if buf.Count() > 0 {
		ship(c.ForceCompress(buf))
	}
	if current != nil {
		reader[nextPage] = current
		pages.AddUnfull(UnfullPage{ID: nextPage, From: FirstBlockID, To: slot})
	}

	return reader, pages, biases
}

func makePostings(n int) []Posting {
	postings := make([]Posting, 0, n)
	for i := 0; i < n; i++ {
		postings = append(postings, NewPosting(DocID(i*3), uint32(i%7), uint32(i%7+2)))
	}
	return postings
}

func TestDecoderRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 33, 500, 5000} {
		postings := makePostings(n)
		reader, pages, biases := shipPostings(t, postings)

		dec := NewPostingDecoder(NewBlockIter(reader, pages), biases, uint32(n))
		require.Equal(t, n, dec.Len())

		for i := 0; i < n; i++ {
			p, err := dec.Next()
			require.NoError(t, err, "posting %d of %d", i, n)
			assert.Equal(t, postings[i].DocID, p.DocID)
			assert.Equal(t, postings[i].Positions, p.Positions)
		}
		_, err := dec.Next()
		assert.Equal(t, io.EOF, err)
	}
}

func TestDecoderMonotoneDocIDs(t *testing.T) {
	postings := makePostings(2000)
	reader, pages, biases := shipPostings(t, postings)

	dec := NewPostingDecoder(NewBlockIter(reader, pages), biases, uint32(len(postings)))
	last := -1
	for {
		p, err := dec.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Greater(t, int(p.DocID), last)
		last = int(p.DocID)
	}
}

func TestDecoderSeek(t *testing.T) {
	postings := makePostings(5000)
	reader, pages, biases := shipPostings(t, postings)

	dec := NewPostingDecoder(NewBlockIter(reader, pages), biases, uint32(len(postings)))

	// Seek to an exact doc id.
	p, err := dec.NextSeek(300)
	require.NoError(t, err)
	assert.Equal(t, DocID(300), p.DocID)

	// Seek between doc ids lands on the next one.
	p, err = dec.NextSeek(301)
	require.NoError(t, err)
	assert.Equal(t, DocID(303), p.DocID)

	// Forward iteration continues from the seek point.
	p, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, DocID(306), p.DocID)

	// Far jump across many blocks.
	p, err = dec.NextSeek(3 * 4998)
	require.NoError(t, err)
	assert.Equal(t, DocID(3*4998), p.DocID)

	// Past the end.
	_, err = dec.NextSeek(DocID(3*5000 + 1))
	assert.Equal(t, io.EOF, err)
}

func TestDecoderSeekMatchesForward(t *testing.T) {
	postings := makePostings(700)
	reader, pages, biases := shipPostings(t, postings)

	for _, target := range []DocID{0, 1, 47, 48, 1000, 2000, 2097} {
		dec := NewPostingDecoder(NewBlockIter(reader, pages), biases, uint32(len(postings)))
		p, err := dec.NextSeek(target)
		require.NoError(t, err)

		// The forward-only answer: first posting with doc id >= target.
		var expected Posting
		for _, candidate := range postings {
			if candidate.DocID >= target {
				expected = candidate
				break
			}
		}
		assert.Equal(t, expected.DocID, p.DocID, "target %d", target)
		assert.Equal(t, expected.Positions, p.Positions)
	}
}

func TestDecoderBiasAnchoring(t *testing.T) {
	postings := makePostings(5000)
	reader, pages, biases := shipPostings(t, postings)

	it := NewBlockIter(reader, pages)
	require.Equal(t, len(biases), it.Count())

	// Every block's bias is <= the first doc id decoded from it and below
	// the next block's bias.
	for k := range biases {
		dec := NewPostingDecoder(it, biases, uint32(len(postings)))
		p, err := dec.NextSeek(biases[k])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.DocID, biases[k])
		if k+1 < len(biases) {
			assert.Less(t, biases[k], biases[k+1])
		}
	}
}

func TestDecoderEmptyListing(t *testing.T) {
	dec := NewPostingDecoder(NewBlockIter(mapReader{}, Pages{}), nil, 0)
	_, err := dec.Next()
	assert.Equal(t, io.EOF, err)
	_, err = dec.NextSeek(5)
	assert.Equal(t, io.EOF, err)
}
