package encoding

import "math"

// DocID identifies a document within one index.  Ids are dense and assigned
// in indexing order.
type DocID uint32

// NoDocID is the all-ones sentinel; it never names a real document.
const NoDocID DocID = math.MaxUint32

// Posting records one term-document pair: the document id and the term's
// offsets within that document.  Positions are strictly increasing; an empty
// position list is allowed for boolean-only atoms.
type Posting struct {
	DocID     DocID
	Positions []uint32
}

func NewPosting(doc DocID, positions ...uint32) Posting {
	return Posting{DocID: doc, Positions: positions}
}
