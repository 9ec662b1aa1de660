package main

import (
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/pkg/errors"

	"github.com/quillsearch/quill/quilldb"
)

type indexCmd struct {
	Dir   string   `arg:"" help:"index directory"`
	Files []string `arg:"" help:"documents to index, one document per file" type:"existingfile"`
}

func (cmd *indexCmd) Run(opts *globalOptions, logger log.Logger) error {
	cfg, err := loadConfig(cmd.Dir, opts)
	if err != nil {
		return err
	}

	var idx *quilldb.Index
	if indexExists(cmd.Dir) {
		idx, err = quilldb.Open(cfg, logger)
	} else {
		idx, err = quilldb.New(cfg, logger)
	}
	if err != nil {
		return err
	}
	defer idx.Shutdown()

	for _, file := range cmd.Files {
		b, err := os.ReadFile(file)
		if err != nil {
			return errors.Wrapf(err, "reading %s", file)
		}
		docID, err := idx.IndexDocument(tokenize(string(b)))
		if err != nil {
			return errors.Wrapf(err, "indexing %s", file)
		}
		fmt.Printf("%s -> doc %d\n", file, docID)
	}

	return idx.Commit()
}
