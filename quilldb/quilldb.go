package quilldb

import (
	"io"
	"sort"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"

	"github.com/quillsearch/quill/quilldb/backend"
	"github.com/quillsearch/quill/quilldb/backend/local"
	"github.com/quillsearch/quill/quilldb/backend/memory"
	"github.com/quillsearch/quill/quilldb/cache"
	"github.com/quillsearch/quill/quilldb/encoding"
	"github.com/quillsearch/quill/quilldb/pool"
	"github.com/quillsearch/quill/quilldb/query"
)

var (
	metricDocumentsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quilldb",
		Name:      "documents_indexed_total",
		Help:      "Total number of documents indexed.",
	})
	metricQueriesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quilldb",
		Name:      "queries_executed_total",
		Help:      "Total number of queries executed.",
	})
	metricQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quilldb",
		Name:      "query_duration_seconds",
		Help:      "Time spent building and draining query iterators.",
		Buckets:   prometheus.ExponentialBuckets(.0001, 4, 8),
	})
	metricCommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quilldb",
		Name:      "commit_duration_seconds",
		Help:      "Time spent committing listings and persisting the index.",
		Buckets:   prometheus.ExponentialBuckets(.001, 4, 8),
	})
)

// Term is one token of a document together with its position.  Positions are
// term offsets, not byte offsets.
type Term struct {
	Text     string
	Position uint32
}

// QueryMetrics counts the work one query performed.
type QueryMetrics struct {
	Atoms       *atomic.Int32
	BloomSkips  *atomic.Int32
	MissedTerms *atomic.Int32
}

func newQueryMetrics() *QueryMetrics {
	return &QueryMetrics{
		Atoms:       atomic.NewInt32(0),
		BloomSkips:  atomic.NewInt32(0),
		MissedTerms: atomic.NewInt32(0),
	}
}

// Stats is a point-in-time summary of the index.
type Stats struct {
	Documents uint32
	Terms     int
	Postings  uint64
	Pages     uint64
}

// Index is the engine facade: it owns the vocabulary, the per-term listings,
// the RAM page cache and the page store.  One goroutine writes; any number
// may query committed state.
type Index struct {
	cfg    *Config
	logger log.Logger
	meta   IndexMeta

	store    backend.PageStore
	cache    *cache.PageCache
	pool     *pool.Pool
	vocab    *vocabulary
	listings []*Listing
	docCount uint32
}

// New creates an empty index.  With the local backend the directory is
// created; with the memory backend nothing is ever persisted.
func New(cfg *Config, logger log.Logger) (*Index, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	level.Info(logger).Log("msg", "index created", "backend", cfg.Backend)

	return &Index{
		cfg:    cfg,
		logger: logger,
		meta:   newIndexMeta(),
		store:  store,
		cache:  cache.New(store),
		pool:   pool.New(cfg.Pool),
		vocab:  newVocabulary(cfg.BloomEstimatedTerms, cfg.BloomFalsePositive),
	}, nil
}

func openStore(cfg *Config) (backend.PageStore, error) {
	switch cfg.Backend {
	case BackendLocal:
		return local.New(cfg.Local)
	case BackendMemory:
		return memory.New(), nil
	}
	return nil, errors.Wrapf(ErrUnknownBackend, "%q", cfg.Backend)
}

// IndexDocument indexes one document given as an ordered token stream and
// returns the assigned doc id.
func (i *Index) IndexDocument(tokens []string) (encoding.DocID, error) {
	terms := make([]Term, 0, len(tokens))
	for pos, text := range tokens {
		terms = append(terms, Term{Text: text, Position: uint32(pos)})
	}
	return i.IndexTerms(terms)
}

// IndexTerms indexes one document given as explicitly positioned terms.  A
// term occurring twice at the same position collapses silently to one
// occurrence.
func (i *Index) IndexTerms(terms []Term) (encoding.DocID, error) {
	docID := encoding.DocID(i.docCount)

	positionsByTerm := make(map[string][]uint32)
	var order []string
	for _, t := range terms {
		positions, seen := positionsByTerm[t.Text]
		if !seen {
			order = append(order, t.Text)
		}
		positionsByTerm[t.Text] = insertPosition(positions, t.Position)
	}

	for _, text := range order {
		id := i.vocab.getOrAdd(text)
		if int(id) == len(i.listings) {
			i.listings = append(i.listings, NewListing())
		}
		p := encoding.Posting{DocID: docID, Positions: positionsByTerm[text]}
		if err := i.listings[id].Add([]encoding.Posting{p}, i.cache); err != nil {
			return 0, errors.Wrapf(err, "indexing term %q", text)
		}
	}

	i.docCount++
	metricDocumentsIndexed.Inc()
	return docID, nil
}

// insertPosition keeps positions sorted and drops duplicates.
func insertPosition(positions []uint32, pos uint32) []uint32 {
	n := sort.Search(len(positions), func(i int) bool { return positions[i] >= pos })
	if n < len(positions) && positions[n] == pos {
		return positions
	}
	positions = append(positions, 0)
	copy(positions[n+1:], positions[n:])
	positions[n] = pos
	return positions
}

// Commit flushes every listing's buffered postings and, on the local
// backend, persists the vocabulary, statistics, listing directory, bloom
// filter and meta file.
func (i *Index) Commit() error {
	start := time.Now()
	defer func() { metricCommitDuration.Observe(time.Since(start).Seconds()) }()

	for id, l := range i.listings {
		if err := l.Commit(i.cache); err != nil {
			return errors.Wrapf(err, "committing listing %d", id)
		}
	}

	if i.cfg.Backend == BackendLocal {
		if err := i.persist(); err != nil {
			return err
		}
	}

	level.Info(i.logger).Log("msg", "index committed", "documents", i.docCount, "terms", i.vocab.len())
	return nil
}

// Results streams the doc id projection of a query's matches.
type Results struct {
	it query.Iterator
}

// Next returns the next matching doc id, or io.EOF when the result set is
// drained.
func (r *Results) Next() (encoding.DocID, error) {
	p, err := r.it.Next()
	if err != nil {
		return 0, err
	}
	return p.DocID, nil
}

// Collect drains the remaining results into a slice.
func (r *Results) Collect() ([]encoding.DocID, error) {
	var out []encoding.DocID
	for {
		id, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, id)
	}
}

// ExecuteQuery composes the iterator tree for q over committed state and
// returns a lazy doc id stream.
func (i *Index) ExecuteQuery(q Query) (*Results, *QueryMetrics, error) {
	start := time.Now()
	defer func() { metricQueryDuration.Observe(time.Since(start).Seconds()) }()
	metricQueriesExecuted.Inc()

	m := newQueryMetrics()
	it, err := i.buildIterator(q, m)
	if err != nil {
		return nil, m, err
	}
	return &Results{it: it}, m, nil
}

// ExecuteQueries evaluates a batch of queries concurrently over the worker
// pool and returns the collected doc ids per query, in query order.
func (i *Index) ExecuteQueries(queries []Query) ([][]encoding.DocID, error) {
	payloads := make([]interface{}, 0, len(queries))
	for _, q := range queries {
		payloads = append(payloads, q)
	}

	results, err := i.pool.RunJobs(payloads, func(payload interface{}) (interface{}, error) {
		res, _, err := i.ExecuteQuery(payload.(Query))
		if err != nil {
			return nil, err
		}
		return res.Collect()
	})
	if err != nil {
		return nil, err
	}

	out := make([][]encoding.DocID, len(results))
	for n, r := range results {
		if r != nil {
			out[n] = r.([]encoding.DocID)
		}
	}
	return out, nil
}

func (i *Index) buildIterator(q Query, m *QueryMetrics) (query.Iterator, error) {
	switch node := q.(type) {
	case Atom:
		return i.buildAtom(node, m), nil

	case NAry:
		children := make([]query.Iterator, 0, len(node.Operands))
		for _, op := range node.Operands {
			child, err := i.buildIterator(op, m)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		switch node.Operator {
		case And:
			return query.NewAnd(children...), nil
		case Or:
			return query.NewOr(children...), nil
		}
		return nil, errors.Errorf("unknown boolean operator %d", node.Operator)

	case Positional:
		atoms := make([]*query.AtomIterator, 0, len(node.Atoms))
		for _, a := range node.Atoms {
			atom, ok := i.buildAtom(a, m).(*query.AtomIterator)
			if !ok {
				// A missing term can never align.
				return query.NewEmpty(), nil
			}
			atoms = append(atoms, atom)
		}
		return query.NewInOrder(atoms...), nil

	case Filter:
		sand, err := i.buildIterator(node.Sand, m)
		if err != nil {
			return nil, err
		}
		sieve, err := i.buildIterator(node.Sieve, m)
		if err != nil {
			return nil, err
		}
		return query.NewNot(sand, sieve), nil
	}
	return nil, errors.Errorf("unknown query node %T", q)
}

func (i *Index) buildAtom(a Atom, m *QueryMetrics) query.Iterator {
	m.Atoms.Inc()
	id, ok := i.vocab.get(a.Term)
	if !ok {
		if !i.vocab.filter.Test([]byte(a.Term)) {
			m.BloomSkips.Inc()
		}
		m.MissedTerms.Inc()
		return query.NewEmpty()
	}
	return query.NewAtom(i.listings[id].Decoder(i.cache), a.RelativePosition)
}

// Stats summarizes the index.
func (i *Index) Stats() Stats {
	var postings uint64
	for _, l := range i.listings {
		postings += uint64(l.Len())
	}
	return Stats{
		Documents: i.docCount,
		Terms:     i.vocab.len(),
		Postings:  postings,
		Pages:     i.store.Len(),
	}
}

// DocumentCount returns the number of documents indexed.
func (i *Index) DocumentCount() uint32 {
	return i.docCount
}

// Shutdown releases the worker pool and the backing store.
func (i *Index) Shutdown() {
	i.pool.Shutdown()
	i.store.Shutdown()
}
