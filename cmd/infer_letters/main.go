package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/neurlang/spatialvote/datasets/emnist"
	"github.com/neurlang/spatialvote/datasets/synthetic"
	"github.com/neurlang/spatialvote/ensemble"
	"github.com/neurlang/spatialvote/pipeline"
)

func main() {
	config := flag.String("config", "", "pipeline config .yaml file")
	threads := flag.Int("threads", 0, "goroutines per batch, 0 keeps the config value")
	count := flag.Int("synthetic", 1000, "number of synthetic images when no dataset is given")
	seed := flag.Uint("seed", 1, "seed of the synthetic images")
	pattern := flag.String("pattern", "random", "synthetic image pattern: random or strokes")
	dir := flag.String("emnist", "", "directory holding the EMNIST letters files, \"auto\" searches the defaults")
	limit := flag.Int("limit", -1, "classify at most this many dataset images")
	significance := flag.Uint("significance", 0, "evaluate only a sample sufficient for this confidence level (90, 95, 99), 0 evaluates all")
	verbose := flag.Bool("v", false, "log every stage")
	flag.Bool("pgo", false, "write a cpu profile to default.pgo")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := run(logger, *config, *threads, *count, *pattern, uint32(*seed), *dir, *limit, byte(*significance)); err != nil {
		logger.WithError(err).Error("inference failed")
		if stopProfile != nil {
			stopProfile()
		}
		os.Exit(1)
	}
	if stopProfile != nil {
		stopProfile()
	}
}

func run(logger *logrus.Logger, config string, threads, count int, pattern string, seed uint32, dir string, limit int, significance byte) error {
	cfg := pipeline.DefaultConfig()
	if config != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(config); err != nil {
			return err
		}
	}
	if threads > 0 {
		cfg.Threads = threads
	}

	reg := prometheus.NewRegistry()
	metrics, err := pipeline.NewMetrics(reg)
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg, pipeline.WithLogger(logger), pipeline.WithMetrics(metrics))
	if err != nil {
		return err
	}

	var inputs [][]float64
	var truth []ensemble.Label
	switch dir {
	case "":
		if count < 0 {
			return errors.Errorf("synthetic sample count must not be negative, got %d", count)
		}
		switch pattern {
		case "random":
			inputs = synthetic.Random(count, seed)
		case "strokes":
			inputs = synthetic.Strokes(count, seed)
		default:
			return errors.Errorf("unknown synthetic pattern %q", pattern)
		}
		logger.WithFields(logrus.Fields{"samples": count, "seed": seed, "pattern": pattern}).Info("synthetic batch")
	default:
		var dirs []string
		if dir != "auto" {
			dirs = []string{dir}
		}
		_, test, err := emnist.New(dirs...)
		if err != nil {
			return err
		}
		test = test.Head(limit)
		if significance > 0 {
			test = test.Head(pipeline.SampleSize(test.Len(), significance))
		}
		inputs, truth = test.Inputs(), test.Labels
		logger.WithField("samples", test.Len()).Info("emnist letters test split")
	}

	labels, err := p.Run(inputs)
	if err != nil {
		return err
	}
	for _, s := range p.LastStats() {
		fmt.Printf("%-9s %7d samples %12v %12.0f samples/s\n", s.Stage, s.Samples, s.Elapsed, s.Throughput())
	}
	fmt.Println("threads", p.Threads(), "fingerprint", pipeline.FingerprintOf(labels, p.Threads()))

	if truth != nil {
		ev, err := p.Evaluate(inputs, truth)
		if err != nil {
			return err
		}
		report(ev)
	}

	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil && len(m.GetLabel()) > 0 {
				logger.WithFields(logrus.Fields{
					"metric": mf.GetName(),
					"stage":  m.GetLabel()[0].GetValue(),
					"value":  c.GetValue(),
				}).Debug("metric")
			}
		}
	}
	return nil
}

func report(ev pipeline.Evaluation) {
	fmt.Printf("accuracy %.4f (%d/%d), mean agreement %.4f, %d rejected\n",
		ev.Accuracy(), ev.Correct, ev.Samples-ev.Rejected, ev.Agreement, ev.Rejected)
	for l, n := range ev.Histogram {
		if n > 0 {
			fmt.Printf("%s:%d ", ensemble.Label(l), n)
		}
	}
	fmt.Println()
	fmt.Println("evaluation fingerprint", ev.Fingerprint)
}
