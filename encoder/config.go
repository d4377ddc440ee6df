package encoder

import "github.com/pkg/errors"

// Config holds the fixed parameters of the spatial encoder.
type Config struct {
	InputSize  int     `yaml:"input_size"` // length of a raw input vector
	Columns    int     `yaml:"columns"`    // length of the sparse output
	Fields     int     `yaml:"fields"`     // input position i feeds every column c with c%Fields == i%Fields
	Normalizer float64 `yaml:"normalizer"` // overlap sums are divided by this
	Active     int     `yaml:"active"`     // maximum number of active columns
	Floor      float64 `yaml:"floor"`      // a column activates only when its overlap is strictly above this

	// InnerThreads is the number of goroutines computing the column overlaps of
	// one sample. 1 or less computes them sequentially. Never affects output.
	InnerThreads int `yaml:"inner_threads"`
}

// DefaultConfig returns the 784 to 256 encoder keeping at most 20 columns.
func DefaultConfig() Config {
	return Config{
		InputSize:  784,
		Columns:    256,
		Fields:     4,
		Normalizer: 196,
		Active:     20,
		Floor:      0.1,
	}
}

// Validate reports whether the configuration can build an encoder.
func (c Config) Validate() error {
	switch {
	case c.InputSize <= 0:
		return errors.Errorf("encoder: input size must be positive, got %d", c.InputSize)
	case c.Columns <= 0:
		return errors.Errorf("encoder: columns must be positive, got %d", c.Columns)
	case c.Fields <= 0 || c.Fields > c.Columns || c.Fields > c.InputSize:
		return errors.Errorf("encoder: fields must be in [1, %d], got %d", min(c.Columns, c.InputSize), c.Fields)
	case !(c.Normalizer > 0):
		return errors.Errorf("encoder: normalizer must be positive, got %v", c.Normalizer)
	case c.Active < 0 || c.Active > c.Columns:
		return errors.Errorf("encoder: active must be in [0, %d], got %d", c.Columns, c.Active)
	}
	return nil
}
