// Package ensemble implements the ensemble classifier: five cheap scoring
// methods each nominate a class, and a fixed-weight vote picks the label.
package ensemble

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/neurlang/spatialvote/parallel"
)

var (
	// ErrInvalidInputLength is returned for a feature vector of the wrong length.
	ErrInvalidInputLength = errors.New("invalid input length")

	// ErrInvalidInput is returned for an empty feature vector or a method
	// score that is not a finite number.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClassOutOfRange reports a method class outside the alphabet.
	// The class mapping never produces one.
	ErrClassOutOfRange = errors.New("class out of range")
)

// Method identifies one scoring method of the ensemble.
type Method int

const (
	Sum        Method = iota // sum of all entries
	Max                      // maximum entry
	SumSquares               // sum of squares
	Mean                     // sum divided by length
	Norm                     // square root of the sum of squares

	// Methods is the number of scoring methods.
	Methods = iota
)

var methodNames = [Methods]string{"sum", "max", "sum_squares", "mean", "norm"}

func (m Method) String() string {
	if m < 0 || m >= Methods {
		return "unknown"
	}
	return methodNames[m]
}

// Config holds the fixed parameters of the classifier.
type Config struct {
	Features int       `yaml:"features"` // length of a feature vector
	Classes  int       `yaml:"classes"`  // size of the label alphabet
	Weights  []float64 `yaml:"weights"`  // vote weight of each method, in Method order

	// InnerThreads is the number of goroutines computing the method scores of
	// one sample. 1 or less computes them sequentially. Never affects output.
	InnerThreads int `yaml:"inner_threads"`
}

// DefaultConfig returns the 45 feature, 26 class classifier.
func DefaultConfig() Config {
	return Config{
		Features: 45,
		Classes:  len(Alphabet),
		Weights:  []float64{3.0, 2.5, 2.0, 1.5, 1.0},
	}
}

// Validate reports whether the configuration can build a classifier.
func (c Config) Validate() error {
	switch {
	case c.Features <= 0:
		return errors.Errorf("ensemble: features must be positive, got %d", c.Features)
	case c.Classes <= 0 || c.Classes > len(Alphabet):
		return errors.Errorf("ensemble: classes must be in [1, %d], got %d", len(Alphabet), c.Classes)
	case len(c.Weights) != Methods:
		return errors.Errorf("ensemble: need %d weights, got %d", Methods, len(c.Weights))
	}
	for m, w := range c.Weights {
		if !(w >= 0) || math.IsInf(w, 0) {
			return errors.Errorf("ensemble: weight of %s must be finite and not negative, got %v", Method(m), w)
		}
	}
	return nil
}

// Classifier maps feature vectors to labels. It holds only immutable data and
// is safe for concurrent use.
type Classifier struct {
	cfg Config
}

// New builds a classifier. The weights are copied.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Weights = append([]float64(nil), cfg.Weights...)
	return &Classifier{cfg: cfg}, nil
}

// MustNew is New that panics on an invalid configuration.
func MustNew(cfg Config) *Classifier {
	c, err := New(cfg)
	if err != nil {
		panic(err.Error())
	}
	return c
}

// Config returns a copy of the configuration the classifier was built with.
func (c *Classifier) Config() Config {
	cfg := c.cfg
	cfg.Weights = append([]float64(nil), c.cfg.Weights...)
	return cfg
}

// Score computes the raw score of one method. features must not be empty.
func (c *Classifier) Score(m Method, features []float64) float64 {
	switch m {
	case Sum:
		return floats.Sum(features)
	case Max:
		return floats.Max(features)
	case SumSquares:
		return floats.Dot(features, features)
	case Mean:
		return floats.Sum(features) / float64(len(features))
	case Norm:
		return math.Sqrt(floats.Dot(features, features))
	}
	panic("ensemble: unknown method")
}

// ClassOf maps a method score to a class: floor(score * classes) mod classes.
// A negative scaled score saturates to class 0. Scores close to a multiple of
// 1/classes are sensitive to rounding; that is part of the mapping, not
// something to correct.
func (c *Classifier) ClassOf(score float64) (Label, error) {
	var k = float64(c.cfg.Classes)
	scaled := score * k
	if math.IsNaN(scaled) || math.IsInf(scaled, 0) {
		return 0, errors.Wrapf(ErrInvalidInput, "score %v", score)
	}
	if scaled < 0 {
		return 0, nil
	}
	m := math.Mod(math.Floor(scaled), k)
	class := Label(m)
	if class < 0 || int(class) >= c.cfg.Classes {
		return 0, errors.Wrapf(ErrClassOutOfRange, "score %v gave class %d", score, class)
	}
	return class, nil
}

// Decision is the outcome of one vote.
type Decision struct {
	Label   Label     // the winning class
	Methods []Label   // the class nominated by each method, in Method order
	Tally   []float64 // accumulated weight per class
}

// Agreement is the share of the total vote weight that went to the winner.
func (d Decision) Agreement() float64 {
	var total = floats.Sum(d.Tally)
	if total == 0 {
		return 0
	}
	return d.Tally[d.Label] / total
}

// Unanimous reports whether every method nominated the winner.
func (d Decision) Unanimous() bool {
	for _, m := range d.Methods {
		if m != d.Label {
			return false
		}
	}
	return true
}

// Decide runs every method on features and votes.
func (c *Classifier) Decide(features []float64) (Decision, error) {
	if len(features) == 0 {
		return Decision{}, errors.Wrap(ErrInvalidInput, "empty feature vector")
	}
	if len(features) != c.cfg.Features {
		return Decision{}, errors.Wrapf(ErrInvalidInputLength, "feature vector has %d values, want %d", len(features), c.cfg.Features)
	}

	methods := make([]Label, Methods)
	errs := make([]error, Methods)
	parallel.ForEach(Methods, c.cfg.InnerThreads, func(m int) {
		methods[m], errs[m] = c.ClassOf(c.Score(Method(m), features))
	})
	for m, err := range errs {
		if err != nil {
			return Decision{}, errors.Wrapf(err, "method %s", Method(m))
		}
	}

	tally := make([]float64, c.cfg.Classes)
	for m, class := range methods {
		tally[class] += c.cfg.Weights[m]
	}
	return Decision{
		Label:   Vote(tally),
		Methods: methods,
		Tally:   tally,
	}, nil
}

// Vote returns the class with the strictly highest weight; among equal
// weights the lowest class wins. An empty tally votes 0.
func Vote(tally []float64) Label {
	var best Label
	for class := range tally {
		if tally[class] > tally[best] {
			best = Label(class)
		}
	}
	return best
}

// Classify returns the label of features.
func (c *Classifier) Classify(features []float64) (Label, error) {
	d, err := c.Decide(features)
	if err != nil {
		return 0, err
	}
	return d.Label, nil
}

// ClassifyBatch classifies every feature vector using threads goroutines.
// Output order follows input order.
func (c *Classifier) ClassifyBatch(ctx context.Context, features [][]float64, threads int) ([]Label, error) {
	return parallel.MapContext(ctx, len(features), threads, func(i int) (Label, error) {
		l, err := c.Classify(features[i])
		if err != nil {
			return 0, errors.Wrapf(err, "sample %d", i)
		}
		return l, nil
	})
}
