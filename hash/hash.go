// Package hash implements the fast modular hash used to generate reproducible
// input batches without touching the filesystem.
package hash

// Hash maps n salted by s into the range 0 to max-1. A zero max yields 0.
func Hash(n uint32, s uint32, max uint32) uint32 {
	// mixing stage, mix input with salt using subtraction
	var m = n - s

	// hashing stage, use xor shift with prime coefficients
	m ^= m << 2
	m ^= m << 3
	m ^= m >> 5
	m ^= m >> 7
	m ^= m << 11
	m ^= m << 13
	m ^= m >> 17
	m ^= m << 19

	// mixing stage 2, mix input with salt using addition
	m += s

	// modular stage, multiply shift instead of modulo
	// https://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction/
	return uint32((uint64(m) * uint64(max)) >> 32)
}

// Byte hashes n salted by s into a single byte.
func Byte(n uint32, s uint32) byte {
	return byte(Hash(n, s, 256))
}
