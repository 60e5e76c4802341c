package core

import (
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/cpu"
)

// squaredEuclideanKernel is the loop used by SquaredEuclidean and Euclidean.
var squaredEuclideanKernel = squaredEuclideanScalar

// init selects the distance kernel for the current CPU.
func init() {
	if HasWideVectorUnits() {
		squaredEuclideanKernel = squaredEuclideanUnrolled
	}
}

// HasWideVectorUnits reports whether the CPU has AVX2 (amd64) or ASIMD (arm64).
func HasWideVectorUnits() bool {
	return cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD
}

// KernelName returns the name of the selected squared Euclidean kernel.
func KernelName() string {
	if HasWideVectorUnits() {
		return "unrolled"
	}
	return "scalar"
}

// LogCPUFeatures writes the detected vector features at debug level.
func LogCPUFeatures() {
	log.Debug().
		Bool("avx", cpu.X86.HasAVX).
		Bool("avx2", cpu.X86.HasAVX2).
		Bool("asimd", cpu.ARM64.HasASIMD).
		Str("kernel", KernelName()).
		Msg("Distance kernel selected")
}
