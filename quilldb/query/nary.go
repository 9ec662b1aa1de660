package query

import (
	"io"
	"sort"

	"github.com/quillsearch/quill/quilldb/encoding"
)

// andIterator yields postings whose doc id appears in every child, using a
// leapfrog strategy: the lagging child is sought to the leading child's doc
// id until all children agree.  The emitted posting is the first child's.
type andIterator struct {
	children []Iterator
	// curr caches each child's latest posting so the leapfrog never
	// re-seeks a child already sitting on the target.
	curr []*encoding.Posting
	next encoding.DocID
	done bool
}

func NewAnd(children ...Iterator) Iterator {
	if len(children) == 0 {
		return NewEmpty()
	}
	return &andIterator{
		children: children,
		curr:     make([]*encoding.Posting, len(children)),
	}
}

func (a *andIterator) Next() (encoding.Posting, error) {
	return a.align(a.next)
}

func (a *andIterator) NextSeek(target encoding.DocID) (encoding.Posting, error) {
	if target < a.next {
		target = a.next
	}
	return a.align(target)
}

func (a *andIterator) align(target encoding.DocID) (encoding.Posting, error) {
	if a.done {
		return encoding.Posting{}, io.EOF
	}
	for {
		agreed := true
		for i, c := range a.children {
			if a.curr[i] == nil || a.curr[i].DocID < target {
				p, err := c.NextSeek(target)
				if err != nil {
					a.done = true
					return encoding.Posting{}, err
				}
				a.curr[i] = &p
			}
			if a.curr[i].DocID > target {
				target = a.curr[i].DocID
				agreed = false
			}
		}
		if agreed {
			a.next = target + 1
			return *a.curr[0], nil
		}
	}
}

// orIterator yields postings in ascending doc id order, taking the minimum
// among children each step and merging positions when several children match
// the same document.
type orIterator struct {
	children []Iterator
	peeks    []*encoding.Posting
	done     []bool
}

func NewOr(children ...Iterator) Iterator {
	if len(children) == 0 {
		return NewEmpty()
	}
	return &orIterator{
		children: children,
		peeks:    make([]*encoding.Posting, len(children)),
		done:     make([]bool, len(children)),
	}
}

func (o *orIterator) Next() (encoding.Posting, error) {
	for i, c := range o.children {
		if o.done[i] || o.peeks[i] != nil {
			continue
		}
		p, err := c.Next()
		if err == io.EOF {
			o.done[i] = true
			continue
		}
		if err != nil {
			return encoding.Posting{}, err
		}
		o.peeks[i] = &p
	}
	return o.emitMin()
}

func (o *orIterator) NextSeek(target encoding.DocID) (encoding.Posting, error) {
	for i, c := range o.children {
		if o.done[i] {
			continue
		}
		if o.peeks[i] != nil && o.peeks[i].DocID >= target {
			continue
		}
		o.peeks[i] = nil
		p, err := c.NextSeek(target)
		if err == io.EOF {
			o.done[i] = true
			continue
		}
		if err != nil {
			return encoding.Posting{}, err
		}
		o.peeks[i] = &p
	}
	return o.emitMin()
}

func (o *orIterator) emitMin() (encoding.Posting, error) {
	min := encoding.NoDocID
	for _, p := range o.peeks {
		if p != nil && p.DocID < min {
			min = p.DocID
		}
	}
	if min == encoding.NoDocID {
		return encoding.Posting{}, io.EOF
	}

	var matched []encoding.Posting
	for i, p := range o.peeks {
		if p != nil && p.DocID == min {
			matched = append(matched, *p)
			o.peeks[i] = nil
		}
	}
	if len(matched) == 1 {
		return matched[0], nil
	}
	return encoding.Posting{DocID: min, Positions: unionPositions(matched)}, nil
}

func unionPositions(postings []encoding.Posting) []uint32 {
	var all []uint32
	for _, p := range postings {
		all = append(all, p.Positions...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	out := all[:0]
	for i, pos := range all {
		if i == 0 || pos != out[len(out)-1] {
			out = append(out, pos)
		}
	}
	return out
}

// inOrderIterator matches documents where the atoms occur at positions
// consistent with their relative offsets: there must be a base position p
// such that every atom i has position p + relative_pos_i.
type inOrderIterator struct {
	atoms []*AtomIterator
	curr  []*encoding.Posting
	next  encoding.DocID
	done  bool
}

func NewInOrder(atoms ...*AtomIterator) Iterator {
	if len(atoms) == 0 {
		return NewEmpty()
	}
	return &inOrderIterator{
		atoms: atoms,
		curr:  make([]*encoding.Posting, len(atoms)),
	}
}

func (it *inOrderIterator) Next() (encoding.Posting, error) {
	return it.align(it.next)
}

func (it *inOrderIterator) NextSeek(target encoding.DocID) (encoding.Posting, error) {
	if target < it.next {
		target = it.next
	}
	return it.align(target)
}

func (it *inOrderIterator) align(target encoding.DocID) (encoding.Posting, error) {
	if it.done {
		return encoding.Posting{}, io.EOF
	}
	for {
		agreed := true
		for i, a := range it.atoms {
			if it.curr[i] == nil || it.curr[i].DocID < target {
				p, err := a.NextSeek(target)
				if err != nil {
					it.done = true
					return encoding.Posting{}, err
				}
				it.curr[i] = &p
			}
			if it.curr[i].DocID > target {
				target = it.curr[i].DocID
				agreed = false
			}
		}
		if !agreed {
			continue
		}
		if bases := it.alignedBases(); len(bases) > 0 {
			it.next = target + 1
			return *it.curr[0], nil
		}
		target++
	}
}

// alignedBases intersects the atoms' position sets after shifting each by
// its relative offset.
func (it *inOrderIterator) alignedBases() []int64 {
	bases := shifted(*it.curr[0], it.atoms[0].RelativePosition())
	for i := 1; i < len(it.atoms) && len(bases) > 0; i++ {
		bases = intersectSorted(bases, shifted(*it.curr[i], it.atoms[i].RelativePosition()))
	}
	return bases
}

func shifted(p encoding.Posting, rel int) []int64 {
	out := make([]int64, 0, len(p.Positions))
	for _, pos := range p.Positions {
		out = append(out, int64(pos)-int64(rel))
	}
	return out
}

func intersectSorted(a, b []int64) []int64 {
	var out []int64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
