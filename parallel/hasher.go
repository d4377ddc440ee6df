package parallel

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"math/bits"
	"sync"
)

// Hasher computes a sha256 over a sequence of uint16 values that may be put
// from many goroutines in any order. The digest depends only on the values
// and their positions.
//
// Values are packed 30 per 64-byte block. Bytes 0-1 and 62-63 of a block hold
// a bitmask of the filled slots; a block is fed to sha256 once every slot in
// it is filled, blocks are fed strictly in order.
type Hasher struct {
	mut  sync.Mutex
	sha  hash.Hash
	ate  int
	n    int
	data [][64]byte
}

const hasherSlots = 30

// NewUint16Hasher returns a Hasher for exactly n values.
func NewUint16Hasher(n int) *Hasher {
	return &Hasher{
		sha:  sha256.New(),
		n:    n,
		data: make([][64]byte, (hasherSlots-1+n)/hasherSlots),
	}
}

// slots reports the number of slots used in block b.
func (h *Hasher) slots(b int) int {
	if b == len(h.data)-1 && h.n%hasherSlots != 0 {
		return h.n % hasherSlots
	}
	return hasherSlots
}

func (h *Hasher) marks(b int) (lo, hi []byte) {
	return h.data[b][0:2], h.data[b][62:64]
}

func (h *Hasher) ready() bool {
	if h.ate >= len(h.data) {
		return false
	}
	var want = h.slots(h.ate)
	lo, hi := h.marks(h.ate)
	var filled = bits.OnesCount16(binary.BigEndian.Uint16(lo)) + bits.OnesCount16(binary.BigEndian.Uint16(hi))
	return filled == want
}

func (h *Hasher) eat() {
	h.sha.Write(h.data[h.ate][:])
	h.ate++
}

// MustPutUint16 stores value at position n. It panics when n is out of range
// or the position was already written.
func (h *Hasher) MustPutUint16(n int, value uint16) {
	if n < 0 || n >= h.n {
		panic("hasher position out of range")
	}
	block := n / hasherSlots
	position := n % hasherSlots
	offset := 2 + position*2

	h.mut.Lock()
	defer h.mut.Unlock()

	if block < h.ate {
		panic("already consumed block")
	}

	lo, hi := h.marks(block)
	var markBytes = lo
	var pos = uint(position)
	if position >= 15 {
		markBytes = hi
		pos = uint(position - 15)
	}
	currentMark := binary.BigEndian.Uint16(markBytes)
	mask := uint16(1) << pos
	if currentMark&mask != 0 {
		panic("duplicate write")
	}
	binary.BigEndian.PutUint16(markBytes, currentMark|mask)
	binary.LittleEndian.PutUint16(h.data[block][offset:offset+2], value)

	for h.ready() {
		h.eat()
	}
}

// Sum returns the digest. Every position must have been put; missing values
// hash as zero with their slot left unmarked. The Hasher is spent afterwards.
func (h *Hasher) Sum() (ret [32]byte) {
	h.mut.Lock()
	defer h.mut.Unlock()
	for h.ate < len(h.data) {
		h.eat()
	}
	copy(ret[:], h.sha.Sum(nil))
	h.data = nil
	return
}
