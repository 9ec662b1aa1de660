package main

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/quillsearch/quill/quilldb"
)

type queryCmd struct {
	Dir   string   `arg:"" help:"index directory"`
	Terms []string `arg:"" help:"query terms"`

	Any     bool     `help:"match documents containing any term instead of all"`
	Phrase  bool     `help:"match the terms as a consecutive phrase"`
	Without []string `help:"exclude documents containing any of these terms"`
}

func (cmd *queryCmd) Run(opts *globalOptions, logger log.Logger) error {
	cfg, err := loadConfig(cmd.Dir, opts)
	if err != nil {
		return err
	}

	idx, err := quilldb.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer idx.Shutdown()

	q, err := cmd.buildQuery()
	if err != nil {
		return err
	}

	results, metrics, err := idx.ExecuteQuery(q)
	if err != nil {
		return err
	}
	docs, err := results.Collect()
	if err != nil {
		return err
	}

	for _, doc := range docs {
		fmt.Println(doc)
	}
	level.Debug(logger).Log(
		"msg", "query done",
		"matches", len(docs),
		"atoms", metrics.Atoms.Load(),
		"bloom_skips", metrics.BloomSkips.Load(),
	)
	return nil
}

func (cmd *queryCmd) buildQuery() (quilldb.Query, error) {
	if len(cmd.Terms) == 0 {
		return nil, errors.New("at least one query term is required")
	}
	if cmd.Phrase && cmd.Any {
		return nil, errors.New("--phrase and --any are mutually exclusive")
	}

	var q quilldb.Query
	switch {
	case cmd.Phrase:
		q = quilldb.NewPhraseQuery(cmd.Terms...)
	case len(cmd.Terms) == 1:
		q = quilldb.NewTermQuery(cmd.Terms[0])
	default:
		op := quilldb.And
		if cmd.Any {
			op = quilldb.Or
		}
		operands := make([]quilldb.Query, 0, len(cmd.Terms))
		for _, t := range cmd.Terms {
			operands = append(operands, quilldb.NewTermQuery(t))
		}
		q = quilldb.NAry{Operator: op, Operands: operands}
	}

	if len(cmd.Without) > 0 {
		sieves := make([]quilldb.Query, 0, len(cmd.Without))
		for _, t := range cmd.Without {
			sieves = append(sieves, quilldb.NewTermQuery(t))
		}
		sieve := sieves[0]
		if len(sieves) > 1 {
			sieve = quilldb.NAry{Operator: quilldb.Or, Operands: sieves}
		}
		q = quilldb.Filter{Operator: quilldb.Not, Sand: q, Sieve: sieve}
	}
	return q, nil
}
