package quilldb

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/willf/bloom"

	"github.com/quillsearch/quill/quilldb/encoding"
)

const (
	metaFileName       = "meta.json"
	vocabularyFileName = "vocabulary.bin"
	statisticsFileName = "statistics.bin"
	listingsFileName   = "listings.bin"
	bloomFileName      = "bloom.bin"

	formatVersion = 1
)

// IndexMeta identifies a persisted index directory and pins the page
// geometry it was written with.
type IndexMeta struct {
	IndexID    uuid.UUID `json:"index_id"`
	Created    time.Time `json:"created"`
	Version    int       `json:"version"`
	BlockSize  int       `json:"block_size"`
	PageBlocks int       `json:"page_blocks"`
}

func newIndexMeta() IndexMeta {
	return IndexMeta{
		IndexID:    uuid.New(),
		Created:    time.Now(),
		Version:    formatVersion,
		BlockSize:  encoding.BlockSize,
		PageBlocks: encoding.PageBlocks,
	}
}

// persist writes the vocabulary, statistics, listing directory, bloom filter
// and meta file next to data.bin.
func (i *Index) persist() error {
	dir := i.cfg.Local.Path

	if err := i.writeMeta(filepath.Join(dir, metaFileName)); err != nil {
		return err
	}
	if err := i.writeVocabulary(filepath.Join(dir, vocabularyFileName)); err != nil {
		return err
	}
	if err := i.writeStatistics(filepath.Join(dir, statisticsFileName)); err != nil {
		return err
	}
	if err := i.writeListings(filepath.Join(dir, listingsFileName)); err != nil {
		return err
	}
	return i.writeBloom(filepath.Join(dir, bloomFileName))
}

func (i *Index) writeMeta(path string) error {
	b, err := json.Marshal(i.meta)
	if err != nil {
		return errors.Wrap(err, "marshaling meta")
	}
	return errors.Wrap(os.WriteFile(path, b, 0o644), "writing meta")
}

// The vocabulary file is a sequence of <term id><byte length><term bytes>
// records in term id order, all integers vbyte encoded.  EOF terminates.
func (i *Index) writeVocabulary(path string) error {
	return writeFile(path, func(w *bufio.Writer) error {
		for id, term := range i.vocab.terms {
			if _, err := encoding.WriteUvarint(w, uint64(id)); err != nil {
				return err
			}
			if _, err := encoding.WriteUvarint(w, uint64(len(term))); err != nil {
				return err
			}
			if _, err := w.WriteString(term); err != nil {
				return err
			}
		}
		return nil
	})
}

// The statistics file holds a single vbyte integer: the document count.
func (i *Index) writeStatistics(path string) error {
	return writeFile(path, func(w *bufio.Writer) error {
		_, err := encoding.WriteUvarint(w, uint64(i.docCount))
		return err
	})
}

// The listing directory is parallel to the vocabulary: one record per term
// id giving the listing's page sequence, delta-encoded block biases and
// total posting count.
func (i *Index) writeListings(path string) error {
	return writeFile(path, func(w *bufio.Writer) error {
		for _, l := range i.listings {
			if err := writeListingRecord(w, l); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeListingRecord(w *bufio.Writer, l *Listing) error {
	if _, err := encoding.WriteUvarint(w, uint64(len(l.pages.IDs))); err != nil {
		return err
	}
	for _, id := range l.pages.IDs {
		if _, err := encoding.WriteUvarint(w, uint64(id)); err != nil {
			return err
		}
	}

	if u := l.pages.Unfull; u != nil {
		for _, v := range []uint64{1, uint64(u.ID), uint64(u.From), uint64(u.To)} {
			if _, err := encoding.WriteUvarint(w, v); err != nil {
				return err
			}
		}
	} else {
		if _, err := encoding.WriteUvarint(w, 0); err != nil {
			return err
		}
	}

	if _, err := encoding.WriteUvarint(w, uint64(len(l.blockBiases))); err != nil {
		return err
	}
	var prev encoding.DocID
	for n, bias := range l.blockBiases {
		v := uint64(bias)
		if n > 0 {
			v = uint64(bias - prev)
		}
		if _, err := encoding.WriteUvarint(w, v); err != nil {
			return err
		}
		prev = bias
	}

	_, err := encoding.WriteUvarint(w, uint64(l.total))
	return err
}

func (i *Index) writeBloom(path string) error {
	return writeFile(path, func(w *bufio.Writer) error {
		_, err := i.vocab.filter.WriteTo(w)
		return err
	})
}

func writeFile(path string, fill func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Base(path))
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		return errors.Wrapf(err, "writing %s", filepath.Base(path))
	}
	return errors.Wrapf(w.Flush(), "flushing %s", filepath.Base(path))
}

// Open reloads a previously committed index from its directory.  A record
// that fails to decode surfaces ErrCorruptedIndexFile; nothing is skipped
// silently.
func Open(cfg *Config, logger log.Logger) (*Index, error) {
	cfg.applyDefaults()
	if cfg.Backend != BackendLocal {
		return nil, errors.Wrap(ErrEmptyPersistPath, "opening an index requires the local backend")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	i, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}

	dir := cfg.Local.Path
	if err := i.readMeta(filepath.Join(dir, metaFileName)); err != nil {
		i.Shutdown()
		return nil, err
	}
	if err := i.readVocabulary(filepath.Join(dir, vocabularyFileName)); err != nil {
		i.Shutdown()
		return nil, err
	}
	if err := i.readStatistics(filepath.Join(dir, statisticsFileName)); err != nil {
		i.Shutdown()
		return nil, err
	}
	if err := i.readListings(filepath.Join(dir, listingsFileName)); err != nil {
		i.Shutdown()
		return nil, err
	}
	if err := i.readBloom(filepath.Join(dir, bloomFileName)); err != nil {
		i.Shutdown()
		return nil, err
	}

	level.Info(logger).Log("msg", "index opened", "id", i.meta.IndexID, "documents", i.docCount, "terms", i.vocab.len())
	return i, nil
}

func (i *Index) readMeta(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading meta")
	}
	meta := IndexMeta{}
	if err := json.Unmarshal(b, &meta); err != nil {
		return errors.Wrap(encoding.ErrCorruptedIndexFile, "undecodable meta file")
	}
	if meta.BlockSize != encoding.BlockSize || meta.PageBlocks != encoding.PageBlocks {
		return errors.Errorf("index geometry %dx%d does not match this build (%dx%d)",
			meta.PageBlocks, meta.BlockSize, encoding.PageBlocks, encoding.BlockSize)
	}
	i.meta = meta
	return nil
}

func (i *Index) readVocabulary(path string) error {
	return readFile(path, func(r *bufio.Reader) error {
		dec := encoding.NewVByteDecoder(r)
		for {
			id, err := dec.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if id != uint64(i.vocab.len()) {
				return errors.Wrapf(encoding.ErrCorruptedIndexFile, "vocabulary term id %d out of order", id)
			}
			length, err := dec.Next()
			if err != nil {
				return badEOF(err)
			}
			buf := make([]byte, length)
			if _, err := io.ReadFull(r, buf); err != nil {
				return errors.Wrap(encoding.ErrCorruptedIndexFile, "term bytes exceed remaining file")
			}
			i.vocab.getOrAdd(string(buf))
		}
	})
}

func (i *Index) readStatistics(path string) error {
	return readFile(path, func(r *bufio.Reader) error {
		count, err := encoding.NewVByteDecoder(r).Next()
		if err != nil {
			return badEOF(err)
		}
		i.docCount = uint32(count)
		return nil
	})
}

func (i *Index) readListings(path string) error {
	return readFile(path, func(r *bufio.Reader) error {
		dec := encoding.NewVByteDecoder(r)
		for range i.vocab.terms {
			l, err := readListingRecord(dec)
			if err != nil {
				return badEOF(err)
			}
			i.listings = append(i.listings, l)
		}
		return nil
	})
}

func readListingRecord(dec *encoding.VByteDecoder) (*Listing, error) {
	pageCount, err := dec.Next()
	if err != nil {
		return nil, err
	}
	pages := encoding.Pages{}
	for n := uint64(0); n < pageCount; n++ {
		id, err := dec.Next()
		if err != nil {
			return nil, err
		}
		pages.Push(encoding.PageID(id))
	}

	hasUnfull, err := dec.Next()
	if err != nil {
		return nil, err
	}
	if hasUnfull != 0 {
		var vals [3]uint64
		for n := range vals {
			if vals[n], err = dec.Next(); err != nil {
				return nil, err
			}
		}
		pages.AddUnfull(encoding.UnfullPage{
			ID:   encoding.PageID(vals[0]),
			From: encoding.BlockID(vals[1]),
			To:   encoding.BlockID(vals[2]),
		})
	}

	biasCount, err := dec.Next()
	if err != nil {
		return nil, err
	}
	biases := make([]encoding.DocID, 0, biasCount)
	var prev encoding.DocID
	for n := uint64(0); n < biasCount; n++ {
		delta, err := dec.Next()
		if err != nil {
			return nil, err
		}
		prev += encoding.DocID(delta)
		biases = append(biases, prev)
	}

	total, err := dec.Next()
	if err != nil {
		return nil, err
	}
	return restoredListing(pages, biases, uint32(total)), nil
}

func (i *Index) readBloom(path string) error {
	return readFile(path, func(r *bufio.Reader) error {
		filter := bloom.New(1, 1)
		if _, err := filter.ReadFrom(r); err != nil {
			return errors.Wrap(encoding.ErrCorruptedIndexFile, "undecodable bloom filter")
		}
		i.vocab.filter = filter
		return nil
	})
}

func readFile(path string, drain func(r *bufio.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", filepath.Base(path))
	}
	defer f.Close()

	return errors.Wrapf(drain(bufio.NewReader(f)), "reading %s", filepath.Base(path))
}

// badEOF promotes a clean EOF in the middle of a record to corruption.
func badEOF(err error) error {
	if err == io.EOF {
		return errors.Wrap(encoding.ErrCorruptedIndexFile, "file truncated mid-record")
	}
	return err
}
