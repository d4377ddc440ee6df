package pipeline

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/neurlang/spatialvote/encoder"
	"github.com/neurlang/spatialvote/ensemble"
	"github.com/neurlang/spatialvote/features"
	"github.com/neurlang/spatialvote/parallel"
)

// Config holds every fixed parameter of the pipeline. None of it is learned.
type Config struct {
	// Threads is the number of goroutines processing samples of a batch.
	// Zero means parallel.DefaultThreads(), 1 processes the batch sequentially.
	// The value never affects output.
	Threads int `yaml:"threads"`

	Encoder  encoder.Config  `yaml:"encoder"`
	Features features.Config `yaml:"features"`
	Ensemble ensemble.Config `yaml:"ensemble"`
}

// DefaultConfig returns the 784 -> 256 -> 45 -> 26 pipeline.
func DefaultConfig() Config {
	return Config{
		Encoder:  encoder.DefaultConfig(),
		Features: features.DefaultConfig(),
		Ensemble: ensemble.DefaultConfig(),
	}
}

// Validate checks each stage and that the stages fit together.
func (c Config) Validate() error {
	if c.Threads < 0 {
		return errors.Errorf("pipeline: threads must not be negative, got %d", c.Threads)
	}
	if err := c.Encoder.Validate(); err != nil {
		return err
	}
	if err := c.Features.Validate(); err != nil {
		return err
	}
	if err := c.Ensemble.Validate(); err != nil {
		return err
	}
	if c.Encoder.Columns != c.Features.Size {
		return errors.Errorf("pipeline: encoder yields %d columns, expander expects %d", c.Encoder.Columns, c.Features.Size)
	}
	if c.Features.Length() != c.Ensemble.Features {
		return errors.Errorf("pipeline: expander yields %d features, classifier expects %d", c.Features.Length(), c.Ensemble.Features)
	}
	return nil
}

func (c Config) threads() int {
	if c.Threads == 0 {
		return parallel.DefaultThreads()
	}
	return c.Threads
}

// LoadConfig reads a YAML file over DefaultConfig, so a file only needs the
// fields it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read pipeline config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse pipeline config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "pipeline config %s", path)
	}
	return cfg, nil
}
