package pipeline

import (
	"encoding/hex"

	"github.com/neurlang/spatialvote/ensemble"
	"github.com/neurlang/spatialvote/parallel"
)

// Fingerprint is a digest of a label sequence. Two runs produced the same
// labels in the same order exactly when their fingerprints match.
type Fingerprint [32]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// FingerprintOf hashes labels on threads goroutines.
func FingerprintOf(labels []ensemble.Label, threads int) Fingerprint {
	h := parallel.NewUint16Hasher(len(labels))
	parallel.ForEach(len(labels), threads, func(i int) {
		h.MustPutUint16(i, uint16(labels[i]))
	})
	return h.Sum()
}
