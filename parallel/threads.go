package parallel

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// DefaultThreads returns the number of logical cores reported by the CPU,
// runtime.NumCPU() when the CPU does not report it.
func DefaultThreads() int {
	return threadsOf(cpuid.CPU.LogicalCores)
}

func threadsOf(logicalCores int) int {
	if logicalCores > 0 {
		return logicalCores
	}
	return runtime.NumCPU()
}
