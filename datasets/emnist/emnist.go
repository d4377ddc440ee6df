// Package emnist loads the EMNIST letters split from the gzipped IDX files
// published with the dataset. Images are returned row-major with pixel values
// scaled to [0, 1], labels as classes 0 ('A') through 25 ('Z').
package emnist

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/neurlang/spatialvote/ensemble"
)

// ImgSize is the width and height of an image.
const ImgSize = 28

const (
	imagesMagic = 0x00000803
	labelsMagic = 0x00000801
)

// preallocate caps how many images are allocated up front.
const preallocate = 1 << 12

// Checksums names the optional sha256sum listing Load verifies the archives
// against when it is present in the dataset directory.
const Checksums = "SHA256SUMS"

const (
	trainSetImg = "emnist-letters-train-images-idx3-ubyte.gz"
	trainSetVal = "emnist-letters-train-labels-idx1-ubyte.gz"
	testSetImg  = "emnist-letters-test-images-idx3-ubyte.gz"
	testSetVal  = "emnist-letters-test-labels-idx1-ubyte.gz"
)

var (
	// ErrNotFound is returned when no search directory holds the four files.
	ErrNotFound = errors.New("emnist letters dataset not found")

	// ErrChecksum is returned when an archive does not match its listed digest.
	ErrChecksum = errors.New("emnist archive checksum mismatch")
)

// Image is one row-major grayscale image.
type Image [ImgSize * ImgSize]byte

// Input returns the image as a raw input vector with values in [0, 1].
func (img *Image) Input() []float64 {
	v := make([]float64, len(img))
	for i, p := range img {
		v[i] = float64(p) / 255
	}
	return v
}

// Split is one half of the dataset, images and labels aligned by index.
type Split struct {
	Images []Image
	Labels []ensemble.Label
}

// Len returns the number of samples.
func (s *Split) Len() int {
	return len(s.Labels)
}

// Inputs returns every image as a raw input vector.
func (s *Split) Inputs() [][]float64 {
	out := make([][]float64, len(s.Images))
	for i := range s.Images {
		out[i] = s.Images[i].Input()
	}
	return out
}

// Head returns a split holding at most the first n samples.
func (s *Split) Head(n int) *Split {
	if n < 0 || n >= s.Len() {
		return s
	}
	return &Split{Images: s.Images[:n], Labels: s.Labels[:n]}
}

// SearchDirectories returns the default places the files are looked up in.
func SearchDirectories() []string {
	var dirs = []string{"/tmp/emnist/"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".cache", "emnist"))
	}
	return dirs
}

// New loads the train and test splits from the first directory holding all
// four files. With no directories given SearchDirectories is used.
func New(dirs ...string) (train, test *Split, err error) {
	if len(dirs) == 0 {
		dirs = SearchDirectories()
	}
	var lastErr error = ErrNotFound
	for _, dir := range dirs {
		train, test, err = Load(dir)
		if err == nil {
			return train, test, nil
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

// Load loads the train and test splits from dir. When dir holds a Checksums
// file the archives it lists are verified first.
func Load(dir string) (train, test *Split, err error) {
	for _, name := range []string{trainSetImg, trainSetVal, testSetImg, testSetVal} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, nil, errors.Wrapf(ErrNotFound, "%s", err)
		}
	}
	if err := verify(dir); err != nil {
		return nil, nil, err
	}
	if train, err = loadSplit(dir, trainSetImg, trainSetVal); err != nil {
		return nil, nil, err
	}
	if test, err = loadSplit(dir, testSetImg, testSetVal); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func loadSplit(dir, images, labels string) (*Split, error) {
	var s Split
	err := readGzip(filepath.Join(dir, images), func(r io.Reader) (err error) {
		s.Images, err = ReadImages(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = readGzip(filepath.Join(dir, labels), func(r io.Reader) (err error) {
		s.Labels, err = ReadLabels(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(s.Images) != len(s.Labels) {
		return nil, errors.Errorf("%s holds %d images but %s holds %d labels", images, len(s.Images), labels, len(s.Labels))
	}
	return &s, nil
}

func readGzip(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	gz, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return errors.Wrapf(err, "gzip %s", path)
	}
	defer gz.Close()
	return errors.Wrapf(read(gz), "read %s", path)
}

// ReadImages decodes an uncompressed IDX3 image file. EMNIST stores every
// image column-major; the images are transposed to row-major.
func ReadImages(r io.Reader) ([]Image, error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "images header")
	}
	if header[0] != imagesMagic {
		return nil, errors.Errorf("images magic %#08x, want %#08x", header[0], imagesMagic)
	}
	if header[2] != ImgSize || header[3] != ImgSize {
		return nil, errors.Errorf("images are %dx%d, want %dx%d", header[2], header[3], ImgSize, ImgSize)
	}

	// the header count is not trusted for allocation, images grow as read
	images := make([]Image, 0, min(header[1], preallocate))
	var raw, img Image
	for i := uint32(0); i < header[1]; i++ {
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, errors.Wrapf(err, "image %d of %d", i, header[1])
		}
		for y := 0; y < ImgSize; y++ {
			for x := 0; x < ImgSize; x++ {
				img[y*ImgSize+x] = raw[x*ImgSize+y]
			}
		}
		images = append(images, img)
	}
	return images, nil
}

// ReadLabels decodes an uncompressed IDX1 label file. The letters split
// numbers its classes from 1.
func ReadLabels(r io.Reader) ([]ensemble.Label, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "labels header")
	}
	if header[0] != labelsMagic {
		return nil, errors.Errorf("labels magic %#08x, want %#08x", header[0], labelsMagic)
	}
	raw, err := io.ReadAll(io.LimitReader(r, int64(header[1])))
	if err != nil {
		return nil, errors.Wrap(err, "labels")
	}
	if len(raw) != int(header[1]) {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "labels: got %d of %d", len(raw), header[1])
	}
	labels := make([]ensemble.Label, len(raw))
	for i, v := range raw {
		if v < 1 || int(v) > len(ensemble.Alphabet) {
			return nil, errors.Errorf("label %d is %d, want 1..%d", i, v, len(ensemble.Alphabet))
		}
		labels[i] = ensemble.Label(v - 1)
	}
	return labels, nil
}

// ReadChecksums parses sha256sum output: one "<hex digest>  <file name>" per
// line, the name optionally prefixed by '*'.
func ReadChecksums(r io.Reader) (map[string]string, error) {
	sums := make(map[string]string)
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 || len(fields[0]) != 2*sha256.Size {
			return nil, errors.Errorf("checksums line %d is malformed", line)
		}
		if _, err := hex.DecodeString(fields[0]); err != nil {
			return nil, errors.Wrapf(err, "checksums line %d", line)
		}
		sums[strings.TrimPrefix(fields[1], "*")] = strings.ToLower(fields[0])
	}
	return sums, errors.Wrap(sc.Err(), "read checksums")
}

// verify checks every archive listed in dir's Checksums file. Without the
// file nothing is checked.
func verify(dir string) error {
	f, err := os.Open(filepath.Join(dir, Checksums))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "open checksums")
	}
	sums, err := ReadChecksums(f)
	f.Close()
	if err != nil {
		return err
	}
	for _, name := range []string{trainSetImg, trainSetVal, testSetImg, testSetVal} {
		want, ok := sums[name]
		if !ok {
			continue
		}
		got, err := digest(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if got != want {
			return errors.Wrapf(ErrChecksum, "%s has sha256 %s, want %s", name, got, want)
		}
	}
	return nil
}

func digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
