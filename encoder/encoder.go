// Package encoder implements the spatial encoder: a dense raw input vector is
// reduced to a sparse binary code in which only the strongest responding
// columns survive global inhibition.
package encoder

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/pkg/errors"

	"github.com/neurlang/spatialvote/parallel"
)

var (
	// ErrInvalidInputLength is returned for a raw input vector of the wrong length.
	ErrInvalidInputLength = errors.New("invalid input length")

	// ErrInvalidInput is returned for a raw input vector holding NaN or infinity.
	ErrInvalidInput = errors.New("invalid input")
)

// ReceptiveField lists, for every field, the raw input positions feeding it.
// Column c reads field c % len(ReceptiveField).
type ReceptiveField [][]int

// NewReceptiveField builds the modulo map of inputSize positions onto fields.
func NewReceptiveField(inputSize, fields int) ReceptiveField {
	rf := make(ReceptiveField, fields)
	for f := range rf {
		rf[f] = make([]int, 0, (inputSize+fields-1)/fields)
	}
	for i := 0; i < inputSize; i++ {
		rf[i%fields] = append(rf[i%fields], i)
	}
	return rf
}

// Of returns a copy of the input positions feeding column.
func (rf ReceptiveField) Of(column int) []int {
	return slices.Clone(rf.of(column))
}

func (rf ReceptiveField) of(column int) []int {
	return rf[column%len(rf)]
}

// Clone returns a deep copy of rf.
func (rf ReceptiveField) Clone() ReceptiveField {
	out := make(ReceptiveField, len(rf))
	for f := range rf {
		out[f] = slices.Clone(rf[f])
	}
	return out
}

// Encoder is the spatial encoder. It holds only immutable data and is safe
// for concurrent use.
type Encoder struct {
	cfg   Config
	field ReceptiveField
}

// New builds an encoder and precomputes its receptive field.
func New(cfg Config) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{
		cfg:   cfg,
		field: NewReceptiveField(cfg.InputSize, cfg.Fields),
	}, nil
}

// MustNew is New that panics on an invalid configuration.
func MustNew(cfg Config) *Encoder {
	e, err := New(cfg)
	if err != nil {
		panic(err.Error())
	}
	return e
}

// Config returns the configuration the encoder was built with.
func (e *Encoder) Config() Config {
	return e.cfg
}

// Field returns a copy of the receptive field shared by all samples.
func (e *Encoder) Field() ReceptiveField {
	return e.field.Clone()
}

func (e *Encoder) check(input []float64) error {
	if len(input) != e.cfg.InputSize {
		return errors.Wrapf(ErrInvalidInputLength, "raw input has %d values, want %d", len(input), e.cfg.InputSize)
	}
	for i, v := range input {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidInput, "raw input value %d is %v", i, v)
		}
	}
	return nil
}

// Overlaps returns the overlap score of every column.
func (e *Encoder) Overlaps(input []float64) ([]float64, error) {
	if err := e.check(input); err != nil {
		return nil, err
	}
	return e.overlaps(input), nil
}

func (e *Encoder) overlaps(input []float64) []float64 {
	scores := make([]float64, e.cfg.Columns)
	parallel.ForEach(len(scores), e.cfg.InnerThreads, func(c int) {
		var sum float64
		for _, i := range e.field.of(c) {
			sum += input[i]
		}
		scores[c] = sum / e.cfg.Normalizer
	})
	return scores
}

// inhibit ranks the columns by score descending, equal scores by ascending
// column index, and keeps the winners above the floor in rank order.
func (e *Encoder) inhibit(scores []float64) []int {
	order := make([]int, len(scores))
	for c := range order {
		order[c] = c
	}
	slices.SortFunc(order, func(a, b int) int {
		if scores[a] != scores[b] {
			return cmp.Compare(scores[b], scores[a])
		}
		return cmp.Compare(a, b)
	})

	active := make([]int, 0, e.cfg.Active)
	for _, c := range order[:e.cfg.Active] {
		if scores[c] > e.cfg.Floor {
			active = append(active, c)
		}
	}
	return active
}

// Active returns the indices of the active columns for input, best first.
func (e *Encoder) Active(input []float64) ([]int, error) {
	if err := e.check(input); err != nil {
		return nil, err
	}
	return e.inhibit(e.overlaps(input)), nil
}

// Encode returns the sparse representation of input: 1.0 at every active
// column, 0.0 elsewhere.
func (e *Encoder) Encode(input []float64) ([]float64, error) {
	active, err := e.Active(input)
	if err != nil {
		return nil, err
	}
	sparse := make([]float64, e.cfg.Columns)
	for _, c := range active {
		sparse[c] = 1.0
	}
	return sparse, nil
}

// EncodeBatch encodes every input using threads goroutines. Output order
// follows input order. The first invalid input (lowest index) fails the batch.
func (e *Encoder) EncodeBatch(ctx context.Context, inputs [][]float64, threads int) ([][]float64, error) {
	return parallel.MapContext(ctx, len(inputs), threads, func(i int) ([]float64, error) {
		sparse, err := e.Encode(inputs[i])
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", i)
		}
		return sparse, nil
	})
}
