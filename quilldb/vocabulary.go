package quilldb

import (
	"github.com/willf/bloom"
)

// TermID is an opaque handle into the listing table, assigned densely in
// first-seen order.
type TermID uint64

// vocabulary maps terms to ids.  A bloom filter in front of the map lets
// queries over absent terms short-circuit without a lookup.
type vocabulary struct {
	ids    map[string]TermID
	terms  []string
	filter *bloom.BloomFilter
}

func newVocabulary(estimatedTerms uint, falsePositive float64) *vocabulary {
	return &vocabulary{
		ids:    make(map[string]TermID),
		filter: bloom.NewWithEstimates(estimatedTerms, falsePositive),
	}
}

// getOrAdd returns the term's id, assigning the next free one on first
// sight.
func (v *vocabulary) getOrAdd(term string) TermID {
	if id, ok := v.ids[term]; ok {
		return id
	}
	id := TermID(len(v.terms))
	v.ids[term] = id
	v.terms = append(v.terms, term)
	v.filter.Add([]byte(term))
	return id
}

// get looks the term up.  The bloom filter answers the common miss cheaply;
// a filter hit still consults the map, false positives are possible.
func (v *vocabulary) get(term string) (TermID, bool) {
	if !v.filter.Test([]byte(term)) {
		return 0, false
	}
	id, ok := v.ids[term]
	return id, ok
}

func (v *vocabulary) len() int {
	return len(v.terms)
}
