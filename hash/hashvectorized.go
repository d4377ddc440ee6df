package hash

// HashVectorized computes out[i] = Hash(n[i], s[i], max) for every i.
// The slices must have equal length.
func HashVectorized(out []uint32, n []uint32, s []uint32, max uint32) {
	n, s = n[:len(out)], s[:len(out)]
	for i := range out {
		out[i] = Hash(n[i], s[i], max)
	}
}

// HashVectorizedDistinct is HashVectorized with a distinct max per element.
func HashVectorizedDistinct(out []uint32, n []uint32, s []uint32, max []uint32) {
	n, s, max = n[:len(out)], s[:len(out)], max[:len(out)]
	for i := range out {
		out[i] = Hash(n[i], s[i], max[i])
	}
}
