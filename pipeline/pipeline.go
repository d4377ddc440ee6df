// Package pipeline chains the spatial encoder, the feature expander and the
// ensemble classifier into one batch transform from raw input vectors to
// letter labels.
//
// Every stage is a pure, order-preserving parallel map over the batch: the
// output for sample i is always at index i, and the number of goroutines
// never changes a value.
package pipeline

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/neurlang/spatialvote/encoder"
	"github.com/neurlang/spatialvote/ensemble"
	"github.com/neurlang/spatialvote/features"
	"github.com/neurlang/spatialvote/parallel"
)

// Pipeline is safe for concurrent use. Only the recorded stage timings are
// shared between calls.
type Pipeline struct {
	cfg     Config
	threads int

	enc *encoder.Encoder
	exp *features.Expander
	cls *ensemble.Classifier

	logger  logrus.FieldLogger
	metrics *Metrics

	mu   sync.Mutex
	last []Stats
}

// Option configures the surroundings of a pipeline, never its output.
type Option func(*Pipeline)

// WithLogger sets the logger stage timings and rejected samples are logged to.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics stage timings are exported to.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// New builds the three stages from cfg.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:     cfg,
		threads: cfg.threads(),
		logger:  discardLogger(),
	}
	var err error
	if p.enc, err = encoder.New(cfg.Encoder); err != nil {
		return nil, err
	}
	if p.exp, err = features.New(cfg.Features); err != nil {
		return nil, err
	}
	if p.cls, err = ensemble.New(cfg.Ensemble); err != nil {
		return nil, err
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// MustNew is New that panics on an invalid configuration.
func MustNew(cfg Config, opts ...Option) *Pipeline {
	p, err := New(cfg, opts...)
	if err != nil {
		panic(err.Error())
	}
	return p
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Threads returns the number of goroutines a batch is processed on.
func (p *Pipeline) Threads() int {
	return p.threads
}

// LastStats returns the stage timings of the most recently finished call.
func (p *Pipeline) LastStats() []Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Stats(nil), p.last...)
}

// timer collects the stage timings of one call.
type timer struct {
	p     *Pipeline
	stats []Stats
}

func (p *Pipeline) timer() *timer {
	return &timer{p: p}
}

func (t *timer) stage(stage Stage, samples int, start time.Time) {
	s := Stats{Stage: stage, Samples: samples, Elapsed: time.Since(start)}
	t.stats = append(t.stats, s)
	t.p.metrics.observe(s)
	t.p.logger.WithFields(logrus.Fields{
		"stage":   s.Stage,
		"samples": s.Samples,
		"elapsed": s.Elapsed,
	}).Debug("stage finished")
}

func (t *timer) fail(stage Stage, err error) error {
	t.p.metrics.reject(stage)
	t.p.logger.WithField("stage", stage).WithError(err).Debug("batch rejected")
	return err
}

func (t *timer) done() {
	t.p.mu.Lock()
	t.p.last = t.stats
	t.p.mu.Unlock()
}

// EncodeBatch maps raw input vectors to sparse representations.
func (p *Pipeline) EncodeBatch(inputs [][]float64) ([][]float64, error) {
	t := p.timer()
	defer t.done()
	return p.encode(context.Background(), t, inputs)
}

// ExpandBatch maps sparse representations to feature vectors.
func (p *Pipeline) ExpandBatch(sparse [][]float64) ([][]float64, error) {
	t := p.timer()
	defer t.done()
	return p.expand(context.Background(), t, sparse)
}

// ClassifyBatch maps feature vectors to labels.
func (p *Pipeline) ClassifyBatch(feats [][]float64) ([]ensemble.Label, error) {
	t := p.timer()
	defer t.done()
	return p.classify(context.Background(), t, feats)
}

func (p *Pipeline) encode(ctx context.Context, t *timer, inputs [][]float64) ([][]float64, error) {
	start := time.Now()
	out, err := p.enc.EncodeBatch(ctx, inputs, p.threads)
	if err != nil {
		return nil, t.fail(StageEncode, errors.Wrap(err, string(StageEncode)))
	}
	t.stage(StageEncode, len(inputs), start)
	return out, nil
}

func (p *Pipeline) expand(ctx context.Context, t *timer, sparse [][]float64) ([][]float64, error) {
	start := time.Now()
	out, err := p.exp.ExpandBatch(ctx, sparse, p.threads)
	if err != nil {
		return nil, t.fail(StageExpand, errors.Wrap(err, string(StageExpand)))
	}
	t.stage(StageExpand, len(sparse), start)
	return out, nil
}

func (p *Pipeline) classify(ctx context.Context, t *timer, feats [][]float64) ([]ensemble.Label, error) {
	start := time.Now()
	out, err := p.cls.ClassifyBatch(ctx, feats, p.threads)
	if err != nil {
		return nil, t.fail(StageClassify, errors.Wrap(err, string(StageClassify)))
	}
	t.stage(StageClassify, len(feats), start)
	return out, nil
}

// Run classifies a batch of raw input vectors, stage by stage. The first
// invalid sample (lowest index) fails the whole batch.
func (p *Pipeline) Run(inputs [][]float64) ([]ensemble.Label, error) {
	return p.RunContext(context.Background(), inputs)
}

// RunContext is Run that stops scheduling samples once ctx is done.
func (p *Pipeline) RunContext(ctx context.Context, inputs [][]float64) ([]ensemble.Label, error) {
	t := p.timer()
	defer t.done()
	start := time.Now()

	sparse, err := p.encode(ctx, t, inputs)
	if err != nil {
		return nil, err
	}
	feats, err := p.expand(ctx, t, sparse)
	if err != nil {
		return nil, err
	}
	labels, err := p.classify(ctx, t, feats)
	if err != nil {
		return nil, err
	}
	t.stage(StageRun, len(inputs), start)
	return labels, nil
}

// Result is the outcome of one sample in RunIsolated.
type Result struct {
	ensemble.Decision

	// Err is set when the sample was rejected, with Stage naming the stage.
	Err   error
	Stage Stage
}

// Decide passes one raw input vector through all three stages.
func (p *Pipeline) Decide(input []float64) Result {
	sparse, err := p.enc.Encode(input)
	if err != nil {
		return Result{Err: err, Stage: StageEncode}
	}
	feats, err := p.exp.Expand(sparse)
	if err != nil {
		return Result{Err: err, Stage: StageExpand}
	}
	d, err := p.cls.Decide(feats)
	if err != nil {
		return Result{Err: err, Stage: StageClassify}
	}
	return Result{Decision: d}
}

// RunIsolated passes every sample through all three stages on its own, so an
// invalid sample yields its own error and the rest of the batch still gets
// classified. Samples are handed to the goroutines in a work-stealing manner;
// results are stored by sample index.
func (p *Pipeline) RunIsolated(inputs [][]float64) []Result {
	t := p.timer()
	defer t.done()
	start := time.Now()

	results := make([]Result, len(inputs))
	parallel.Loop(p.threads).Range(len(inputs), func(i int) bool {
		results[i] = p.Decide(inputs[i])
		return false
	})

	for i, r := range results {
		if r.Err == nil {
			continue
		}
		p.metrics.reject(r.Stage)
		p.logger.WithFields(logrus.Fields{
			"sample": i,
			"stage":  r.Stage,
		}).WithError(r.Err).Warn("sample rejected")
	}
	t.stage(StageRun, len(inputs), start)
	return results
}
