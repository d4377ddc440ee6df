package pipeline

import (
	"math"

	"github.com/pkg/errors"

	"github.com/neurlang/spatialvote/ensemble"
	"github.com/neurlang/spatialvote/parallel"
)

// rejectedMark stands for a rejected sample in an evaluation fingerprint.
const rejectedMark = 0xffff

// SampleSize returns how many of n samples are enough to estimate accuracy
// at the given confidence level in percent (90, 95 or 99), assuming the worst
// case proportion of 0.5 and a margin of error of 100-significance percent.
// A significance of 0 or 100 and above keeps all n samples.
func SampleSize(n int, significance byte) int {
	if significance == 0 || significance >= 100 || n <= 1 {
		return n
	}
	z := zScoreFromAlpha(100 - significance)
	const p = 0.5
	e := float64(100-significance) * 0.01

	ss := z * z * p * (1 - p) / (e * e)
	corrected := int(math.Ceil(ss * float64(n) / (float64(n) - 1 + ss)))
	if corrected > n {
		return n
	}
	return corrected
}

func zScoreFromAlpha(alpha byte) float64 {
	switch {
	case alpha <= 1:
		return 2.576
	case alpha <= 5:
		return 1.96
	case alpha <= 10:
		return 1.645
	default:
		return 1.96
	}
}

// Evaluation summarizes predictions against known labels.
type Evaluation struct {
	Samples  int
	Correct  int
	Rejected int

	// Agreement is the mean agreement over the classified samples.
	Agreement float64

	// Histogram counts the predicted labels.
	Histogram []int

	// Fingerprint covers the predictions in sample order, rejected ones
	// included.
	Fingerprint Fingerprint
}

// Accuracy returns the share of classified samples that matched their label.
func (e Evaluation) Accuracy() float64 {
	classified := e.Samples - e.Rejected
	if classified == 0 {
		return 0
	}
	return float64(e.Correct) / float64(classified)
}

// Evaluate classifies inputs sample by sample and compares the predictions
// with truth.
func (p *Pipeline) Evaluate(inputs [][]float64, truth []ensemble.Label) (Evaluation, error) {
	if len(inputs) != len(truth) {
		return Evaluation{}, errors.Errorf("evaluate: %d inputs but %d labels", len(inputs), len(truth))
	}
	results := p.RunIsolated(inputs)

	h := parallel.NewUint16Hasher(len(results))
	parallel.ForEach(len(results), p.threads, func(i int) {
		if results[i].Err != nil {
			h.MustPutUint16(i, rejectedMark)
			return
		}
		h.MustPutUint16(i, uint16(results[i].Label))
	})

	ev := Evaluation{
		Samples:   len(results),
		Histogram: make([]int, p.cfg.Ensemble.Classes),
	}
	for i, r := range results {
		if r.Err != nil {
			ev.Rejected++
			continue
		}
		ev.Agreement += r.Agreement()
		ev.Histogram[r.Label]++
		if r.Label == truth[i] {
			ev.Correct++
		}
	}
	if classified := ev.Samples - ev.Rejected; classified > 0 {
		ev.Agreement /= float64(classified)
	}
	ev.Fingerprint = h.Sum()
	return ev, nil
}
