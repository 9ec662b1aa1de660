package query

import (
	"io"

	"github.com/quillsearch/quill/quilldb/encoding"
)

// notIterator yields postings from sand whose doc id does not appear in
// sieve.  The sieve is advanced with NextSeek so skipped documents never
// decode their postings.
type notIterator struct {
	sand      Iterator
	sieve     Iterator
	sievePeek *encoding.Posting
	sieveDone bool
}

func NewNot(sand, sieve Iterator) Iterator {
	return &notIterator{sand: sand, sieve: sieve}
}

func (n *notIterator) Next() (encoding.Posting, error) {
	for {
		p, err := n.sand.Next()
		if err != nil {
			return encoding.Posting{}, err
		}
		blocked, err := n.sieved(p.DocID)
		if err != nil {
			return encoding.Posting{}, err
		}
		if !blocked {
			return p, nil
		}
	}
}

func (n *notIterator) NextSeek(target encoding.DocID) (encoding.Posting, error) {
	p, err := n.sand.NextSeek(target)
	for {
		if err != nil {
			return encoding.Posting{}, err
		}
		blocked, serr := n.sieved(p.DocID)
		if serr != nil {
			return encoding.Posting{}, serr
		}
		if !blocked {
			return p, nil
		}
		p, err = n.sand.Next()
	}
}

func (n *notIterator) sieved(doc encoding.DocID) (bool, error) {
	if n.sieveDone {
		return false, nil
	}
	if n.sievePeek == nil || n.sievePeek.DocID < doc {
		p, err := n.sieve.NextSeek(doc)
		if err == io.EOF {
			n.sieveDone = true
			return false, nil
		}
		if err != nil {
			return false, err
		}
		n.sievePeek = &p
	}
	return n.sievePeek.DocID == doc, nil
}
