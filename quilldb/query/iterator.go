package query

import (
	"io"

	"github.com/quillsearch/quill/quilldb/encoding"
)

// Iterator is the uniform surface every query operator exposes: forward
// iteration plus seek-by-doc-id.  All iterators yield postings with strictly
// increasing doc ids and report io.EOF once exhausted.
type Iterator interface {
	Next() (encoding.Posting, error)
	NextSeek(target encoding.DocID) (encoding.Posting, error)
}

// NewEmpty returns an iterator over nothing, used for terms absent from the
// vocabulary.
func NewEmpty() Iterator {
	return emptyIterator{}
}

type emptyIterator struct{}

func (emptyIterator) Next() (encoding.Posting, error) {
	return encoding.Posting{}, io.EOF
}

func (emptyIterator) NextSeek(encoding.DocID) (encoding.Posting, error) {
	return encoding.Posting{}, io.EOF
}

// AtomIterator wraps a posting decoder as a query leaf.  The relative
// position aligns the atom inside a positional operator.
type AtomIterator struct {
	relativePosition int
	inner            Iterator
}

func NewAtom(dec *encoding.PostingDecoder, relativePosition int) *AtomIterator {
	return &AtomIterator{
		relativePosition: relativePosition,
		inner:            dec,
	}
}

func (a *AtomIterator) Next() (encoding.Posting, error) {
	return a.inner.Next()
}

func (a *AtomIterator) NextSeek(target encoding.DocID) (encoding.Posting, error) {
	return a.inner.NextSeek(target)
}

func (a *AtomIterator) RelativePosition() int {
	return a.relativePosition
}
