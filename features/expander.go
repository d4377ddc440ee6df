// Package features expands a sparse binary code into a fixed-length vector of
// real-valued statistics followed by deterministic padding.
package features

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/neurlang/spatialvote/parallel"
)

// ErrInvalidInputLength is returned for a sparse representation of the wrong length.
var ErrInvalidInputLength = errors.New("invalid input length")

// Stat identifies one of the named statistics at the head of a feature vector.
type Stat int

const (
	Mean       Stat = iota // mean of all entries
	Norm                   // Euclidean norm
	Count                  // entries above the threshold
	Positional             // sum of index * value
	Row                    // sum of (index / row width) * value
	Roughness              // sum of absolute differences of neighbours
	Indicator              // sum of the indicator of entries above the threshold
	EvenCount              // entries at even indices above the threshold

	// Stats is the number of named statistics.
	Stats = iota
)

var statNames = [Stats]string{"mean", "norm", "count", "positional", "row", "roughness", "indicator", "even_count"}

func (s Stat) String() string {
	if s < 0 || s >= Stats {
		return "unknown"
	}
	return statNames[s]
}

// Config holds the fixed parameters of the expander.
type Config struct {
	Size      int     `yaml:"size"`      // length of the sparse input
	RowWidth  int     `yaml:"row_width"` // divisor of the coarse row statistic
	Padding   int     `yaml:"padding"`   // number of padding values after the statistics
	Threshold float64 `yaml:"threshold"` // an entry counts as set when strictly above this

	// InnerThreads is the number of goroutines computing the statistics of
	// one sample. 1 or less computes them sequentially. Never affects output.
	InnerThreads int `yaml:"inner_threads"`
}

// DefaultConfig returns the 256 to 45 expander.
func DefaultConfig() Config {
	return Config{
		Size:      256,
		RowWidth:  16,
		Padding:   37,
		Threshold: 0.5,
	}
}

// Validate reports whether the configuration can build an expander.
func (c Config) Validate() error {
	switch {
	case c.Size < 2:
		return errors.Errorf("features: size must be at least 2, got %d", c.Size)
	case c.RowWidth <= 0:
		return errors.Errorf("features: row width must be positive, got %d", c.RowWidth)
	case c.Padding < 0:
		return errors.Errorf("features: padding must not be negative, got %d", c.Padding)
	case math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0):
		return errors.Errorf("features: threshold must be finite, got %v", c.Threshold)
	}
	return nil
}

// Length is the length of the produced feature vectors.
func (c Config) Length() int {
	return Stats + c.Padding
}

// Expander turns sparse representations into feature vectors. It holds only
// immutable data and is safe for concurrent use.
type Expander struct {
	cfg Config

	// per-index weights for the positional and row statistics
	positions []float64
	rows      []float64
}

// New builds an expander and precomputes its weight vectors.
func New(cfg Config) (*Expander, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	x := &Expander{
		cfg:       cfg,
		positions: make([]float64, cfg.Size),
		rows:      make([]float64, cfg.Size),
	}
	for i := 0; i < cfg.Size; i++ {
		x.positions[i] = float64(i)
		x.rows[i] = float64(i / cfg.RowWidth)
	}
	return x, nil
}

// MustNew is New that panics on an invalid configuration.
func MustNew(cfg Config) *Expander {
	x, err := New(cfg)
	if err != nil {
		panic(err.Error())
	}
	return x
}

// Config returns the configuration the expander was built with.
func (x *Expander) Config() Config {
	return x.cfg
}

// Statistic computes one named statistic of a sparse vector of the configured size.
func (x *Expander) Statistic(s Stat, sparse []float64) (float64, error) {
	if err := x.check(sparse); err != nil {
		return 0, err
	}
	if s < 0 || s >= Stats {
		return 0, errors.Errorf("features: unknown statistic %d", s)
	}
	return x.statistic(s, sparse), nil
}

func (x *Expander) check(sparse []float64) error {
	if len(sparse) != x.cfg.Size {
		return errors.Wrapf(ErrInvalidInputLength, "sparse representation has %d values, want %d", len(sparse), x.cfg.Size)
	}
	return nil
}

func (x *Expander) statistic(s Stat, sparse []float64) float64 {
	switch s {
	case Mean:
		return floats.Sum(sparse) / float64(len(sparse))
	case Norm:
		return floats.Norm(sparse, 2)
	case Count, Indicator:
		// the same reduction under two names, both are kept as separate features
		return x.above(sparse, 1)
	case Positional:
		return floats.Dot(sparse, x.positions)
	case Row:
		return floats.Dot(sparse, x.rows)
	case Roughness:
		return floats.Distance(sparse[1:], sparse[:len(sparse)-1], 1)
	case EvenCount:
		return x.above(sparse, 2)
	}
	panic("features: unknown statistic")
}

// above counts entries above the threshold, visiting every step-th index from 0.
func (x *Expander) above(sparse []float64, step int) float64 {
	var n int
	for i := 0; i < len(sparse); i += step {
		if sparse[i] > x.cfg.Threshold {
			n++
		}
	}
	return float64(n)
}

// Pad returns the padding value j for a sparse vector summing to sum:
// (j * sum) mod 1, in [0, 1).
func Pad(j int, sum float64) float64 {
	p := math.Mod(float64(j)*sum, 1.0)
	if p < 0 {
		p += 1.0
	}
	return p
}

// Expand returns the feature vector of sparse: the named statistics in Stat
// order followed by the padding values.
func (x *Expander) Expand(sparse []float64) ([]float64, error) {
	if err := x.check(sparse); err != nil {
		return nil, err
	}
	out := make([]float64, x.cfg.Length())
	parallel.ForEach(Stats, x.cfg.InnerThreads, func(s int) {
		out[s] = x.statistic(Stat(s), sparse)
	})
	sum := floats.Sum(sparse)
	for j := 0; j < x.cfg.Padding; j++ {
		out[Stats+j] = Pad(j, sum)
	}
	return out, nil
}

// ExpandBatch expands every sparse representation using threads goroutines.
// Output order follows input order.
func (x *Expander) ExpandBatch(ctx context.Context, sparse [][]float64, threads int) ([][]float64, error) {
	return parallel.MapContext(ctx, len(sparse), threads, func(i int) ([]float64, error) {
		f, err := x.Expand(sparse[i])
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", i)
		}
		return f, nil
	})
}
