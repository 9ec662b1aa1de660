package main

import (
	"os"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/quillsearch/quill/quilldb"
	"github.com/quillsearch/quill/quilldb/backend/local"
)

// loadConfig builds the engine config for an index directory, applying the
// optional yaml config file on top.
func loadConfig(dir string, opts *globalOptions) (*quilldb.Config, error) {
	cfg := &quilldb.Config{}

	if opts.ConfigFile != "" {
		b, err := os.ReadFile(opts.ConfigFile)
		if err != nil {
			return nil, errors.Wrap(err, "reading config file")
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, errors.Wrap(err, "parsing config file")
		}
	}

	cfg.Backend = quilldb.BackendLocal
	cfg.Local = &local.Config{Path: dir}
	return cfg, nil
}

// tokenize lowercases and splits on anything that is not a letter or digit.
// Deliberately thin; real deployments bring their own analyzer.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func indexExists(dir string) bool {
	_, err := os.Stat(dir + "/meta.json")
	return err == nil
}
