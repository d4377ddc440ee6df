// Package synthetic generates reproducible batches of raw input vectors with
// the modular hash, so the pipeline can run and be benchmarked without any
// dataset on disk.
package synthetic

import (
	"github.com/neurlang/spatialvote/hash"
	"github.com/neurlang/spatialvote/parallel"
)

// InputSize is the length of the generated raw input vectors.
const InputSize = 784

// Random returns n vectors of pixel intensities in [0, 1]. The same seed
// always yields the same batch.
func Random(n int, seed uint32) [][]float64 {
	return RandomSized(n, InputSize, seed)
}

// RandomSized is Random for vectors of the given size.
func RandomSized(n, size int, seed uint32) [][]float64 {
	out := make([][]float64, n)
	parallel.ForEach(n, parallel.DefaultThreads(), func(i int) {
		out[i] = vector(i, size, seed)
	})
	return out
}

func vector(sample, size int, seed uint32) []float64 {
	positions := make([]uint32, size)
	salts := make([]uint32, size)
	pixels := make([]uint32, size)
	salt := hash.Hash(uint32(sample), seed, 0xffffffff)
	for i := range positions {
		positions[i] = uint32(i)
		salts[i] = salt
	}
	hash.HashVectorized(pixels, positions, salts, 256)

	v := make([]float64, size)
	for i, p := range pixels {
		v[i] = float64(p) / 255
	}
	return v
}

// Width is the row length of a generated image.
const Width = 28

// Strokes returns n images in which every image column has its own intensity
// ceiling drawn from the seed, so samples differ in which receptive field
// responds strongest. Values are in [0, 1].
func Strokes(n int, seed uint32) [][]float64 {
	out := make([][]float64, n)
	parallel.ForEach(n, parallel.DefaultThreads(), func(i int) {
		out[i] = strokes(i, seed)
	})
	return out
}

func strokes(sample int, seed uint32) []float64 {
	salt := hash.Hash(uint32(sample), seed, 0xffffffff)
	positions := make([]uint32, InputSize)
	salts := make([]uint32, InputSize)
	ceilings := make([]uint32, InputSize)
	pixels := make([]uint32, InputSize)
	for i := range positions {
		positions[i] = uint32(i)
		salts[i] = salt
		ceilings[i] = 1 + uint32(hash.Byte(uint32(i%Width), salt))
	}
	hash.HashVectorizedDistinct(pixels, positions, salts, ceilings)

	v := make([]float64, InputSize)
	for i, p := range pixels {
		v[i] = float64(p) / 255
	}
	return v
}

// Constant returns n vectors with every value set to value.
func Constant(n int, value float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		v := make([]float64, InputSize)
		for j := range v {
			v[j] = value
		}
		out[i] = v
	}
	return out
}
