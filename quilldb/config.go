package quilldb

import (
	"github.com/pkg/errors"

	"github.com/quillsearch/quill/quilldb/backend/local"
	"github.com/quillsearch/quill/quilldb/pool"
)

var (
	// ErrEmptyPersistPath is returned when the local backend is selected
	// without a path to persist to.
	ErrEmptyPersistPath = errors.New("persist path not specified")

	ErrUnknownBackend = errors.New("unknown backend")
)

const (
	BackendLocal  = "local"
	BackendMemory = "memory"
)

type Config struct {
	Backend string        `yaml:"backend"`
	Local   *local.Config `yaml:"local"`

	BloomEstimatedTerms uint    `yaml:"bloom_estimated_terms"`
	BloomFalsePositive  float64 `yaml:"bloom_filter_false_positive"`

	Pool *pool.Config `yaml:"pool"`
}

func (cfg *Config) applyDefaults() {
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}
	if cfg.BloomEstimatedTerms == 0 {
		cfg.BloomEstimatedTerms = 100_000
	}
	if cfg.BloomFalsePositive == 0 {
		cfg.BloomFalsePositive = 0.01
	}
}

func (cfg *Config) validate() error {
	switch cfg.Backend {
	case BackendMemory:
	case BackendLocal:
		if cfg.Local == nil || cfg.Local.Path == "" {
			return ErrEmptyPersistPath
		}
	default:
		return errors.Wrapf(ErrUnknownBackend, "%q", cfg.Backend)
	}
	return nil
}
