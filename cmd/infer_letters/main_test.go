package main

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/neurlang/spatialvote/datasets/emnist"
)

func TestRunSynthetic(t *testing.T) {
	logger, _ := test.NewNullLogger()
	for _, pattern := range []string{"random", "strokes"} {
		assert.NoError(t, run(logger, "", 3, 25, pattern, 1, "", -1, 0), pattern)
	}
	assert.Error(t, run(logger, "", 3, 25, "noise", 1, "", -1, 0))
}

func TestRunRejectsNegativeCount(t *testing.T) {
	logger, _ := test.NewNullLogger()
	assert.Error(t, run(logger, "", 2, -1, "random", 1, "", -1, 0))
	assert.NoError(t, run(logger, "", 2, 0, "random", 1, "", -1, 0))
}

func TestRunMissingInputs(t *testing.T) {
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()

	err := run(logger, "", 1, 1, "random", 1, dir, -1, 0)
	assert.True(t, errors.Is(err, emnist.ErrNotFound))

	assert.Error(t, run(logger, filepath.Join(dir, "missing.yaml"), 1, 1, "random", 1, "", -1, 0))
}
