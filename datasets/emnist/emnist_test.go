package emnist

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/spatialvote/ensemble"
)

// column-major image whose pixel (x, y) holds x + y
func columnMajor() []byte {
	raw := make([]byte, ImgSize*ImgSize)
	for x := 0; x < ImgSize; x++ {
		for y := 0; y < ImgSize; y++ {
			raw[x*ImgSize+y] = byte(x + 2*y)
		}
	}
	return raw
}

func imagesFile(t *testing.T, n int) []byte {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [4]uint32{imagesMagic, uint32(n), ImgSize, ImgSize}))
	for i := 0; i < n; i++ {
		buf.Write(columnMajor())
	}
	return buf.Bytes()
}

func labelsFile(t *testing.T, labels ...byte) []byte {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [2]uint32{labelsMagic, uint32(len(labels))}))
	buf.Write(labels)
	return buf.Bytes()
}

func writeGzip(t *testing.T, path string, data []byte) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestReadImagesTransposes(t *testing.T) {
	images, err := ReadImages(bytes.NewReader(imagesFile(t, 2)))
	require.NoError(t, err)
	require.Len(t, images, 2)
	for y := 0; y < ImgSize; y++ {
		for x := 0; x < ImgSize; x++ {
			assert.Equal(t, byte(x+2*y), images[1][y*ImgSize+x])
		}
	}
}

func TestReadImagesErrors(t *testing.T) {
	data := imagesFile(t, 1)
	data[3] = 0x01
	_, err := ReadImages(bytes.NewReader(data))
	assert.Error(t, err)

	_, err = ReadImages(bytes.NewReader(imagesFile(t, 2)[:100]))
	assert.Error(t, err)

	_, err = ReadImages(bytes.NewReader(nil))
	assert.Error(t, err)
}

// a header announcing more samples than follow fails without allocating them
func TestHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [4]uint32{imagesMagic, 0xffffffff, ImgSize, ImgSize}))
	_, err := ReadImages(bytes.NewReader(buf.Bytes()))
	assert.True(t, errors.Is(err, io.EOF), "%v", err)

	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.BigEndian, [2]uint32{labelsMagic, 0xffffffff}))
	_, err = ReadLabels(bytes.NewReader(buf.Bytes()))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "%v", err)

	_, err = ReadLabels(bytes.NewReader(labelsFile(t, 1, 2, 3)[:9]))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "%v", err)
}

func TestReadLabels(t *testing.T) {
	labels, err := ReadLabels(bytes.NewReader(labelsFile(t, 1, 26, 3)))
	require.NoError(t, err)
	assert.Equal(t, []ensemble.Label{0, 25, 2}, labels)

	_, err = ReadLabels(bytes.NewReader(labelsFile(t, 0)))
	assert.Error(t, err)
	_, err = ReadLabels(bytes.NewReader(labelsFile(t, 27)))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeGzip(t, filepath.Join(dir, trainSetImg), imagesFile(t, 3))
	writeGzip(t, filepath.Join(dir, trainSetVal), labelsFile(t, 1, 2, 3))
	writeGzip(t, filepath.Join(dir, testSetImg), imagesFile(t, 2))
	writeGzip(t, filepath.Join(dir, testSetVal), labelsFile(t, 25, 26))

	train, test, err := New(filepath.Join(dir, "missing"), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, train.Len())
	assert.Equal(t, 2, test.Len())
	assert.Equal(t, []ensemble.Label{24, 25}, test.Labels)

	inputs := test.Inputs()
	require.Len(t, inputs, 2)
	require.Len(t, inputs[0], ImgSize*ImgSize)
	assert.Equal(t, 0.0, inputs[0][0])
	assert.Equal(t, float64(1+2*2)/255, inputs[0][2*ImgSize+1])

	assert.Equal(t, 1, train.Head(1).Len())
	assert.Equal(t, 3, train.Head(10).Len())
}

func TestLoadMismatch(t *testing.T) {
	dir := t.TempDir()
	writeGzip(t, filepath.Join(dir, trainSetImg), imagesFile(t, 3))
	writeGzip(t, filepath.Join(dir, trainSetVal), labelsFile(t, 1, 2))
	writeGzip(t, filepath.Join(dir, testSetImg), imagesFile(t, 1))
	writeGzip(t, filepath.Join(dir, testSetVal), labelsFile(t, 1))

	_, _, err := Load(dir)
	assert.Error(t, err)
}

func writeSplits(t *testing.T, dir string) {
	writeGzip(t, filepath.Join(dir, trainSetImg), imagesFile(t, 1))
	writeGzip(t, filepath.Join(dir, trainSetVal), labelsFile(t, 4))
	writeGzip(t, filepath.Join(dir, testSetImg), imagesFile(t, 1))
	writeGzip(t, filepath.Join(dir, testSetVal), labelsFile(t, 5))
}

func sumOf(t *testing.T, path string) string {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func TestLoadVerifiesChecksums(t *testing.T) {
	dir := t.TempDir()
	writeSplits(t, dir)

	listing := sumOf(t, filepath.Join(dir, trainSetImg)) + "  " + trainSetImg + "\n" +
		sumOf(t, filepath.Join(dir, testSetVal)) + " *" + testSetVal + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, Checksums), []byte(listing), 0o644))
	_, test, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []ensemble.Label{4}, test.Labels)

	// the listed test labels no longer match
	writeGzip(t, filepath.Join(dir, testSetVal), labelsFile(t, 6))
	_, _, err = Load(dir)
	assert.True(t, errors.Is(err, ErrChecksum), "%v", err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, Checksums), []byte("abc  "+trainSetImg+"\n"), 0o644))
	_, _, err = Load(dir)
	assert.Error(t, err)
}

func TestReadChecksums(t *testing.T) {
	digest := strings.Repeat("ab", sha256.Size)
	sums, err := ReadChecksums(strings.NewReader(digest + "  a.gz\n\n" + strings.ToUpper(digest) + " *b.gz\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.gz": digest, "b.gz": digest}, sums)

	_, err = ReadChecksums(strings.NewReader(strings.Repeat("zz", sha256.Size) + "  a.gz\n"))
	assert.Error(t, err)
	_, err = ReadChecksums(strings.NewReader(digest + "\n"))
	assert.Error(t, err)
}

func TestNotFound(t *testing.T) {
	_, _, err := New(t.TempDir())
	assert.True(t, errors.Is(err, ErrNotFound))
}
