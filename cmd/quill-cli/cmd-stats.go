package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"

	"github.com/quillsearch/quill/quilldb"
	"github.com/quillsearch/quill/quilldb/encoding"
)

type statsCmd struct {
	Dir string `arg:"" help:"index directory"`
}

func (cmd *statsCmd) Run(opts *globalOptions, logger log.Logger) error {
	cfg, err := loadConfig(cmd.Dir, opts)
	if err != nil {
		return err
	}

	idx, err := quilldb.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer idx.Shutdown()

	stats := idx.Stats()
	fmt.Printf("documents: %s\n", humanize.Comma(int64(stats.Documents)))
	fmt.Printf("terms:     %s\n", humanize.Comma(int64(stats.Terms)))
	fmt.Printf("postings:  %s\n", humanize.Comma(int64(stats.Postings)))
	fmt.Printf("pages:     %s (%s on disk)\n",
		humanize.Comma(int64(stats.Pages)),
		humanize.Bytes(stats.Pages*encoding.PageBytes),
	)
	return nil
}
