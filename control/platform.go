// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug probes shared by every platform.

package control

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// RegisterPlatformProbes sets runtime-level debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.goroutines", func() any {
		return runtime.NumGoroutine()
	})
	dp.RegisterProbe("platform.go", func() any {
		return runtime.Version()
	})
	dp.RegisterProbe("platform.cpu_features", func() any {
		return CPUFeatures()
	})
}

// CPUFeatures reports common instruction set extensions of the running CPU.
// Only flags of the current architecture are included.
func CPUFeatures() map[string]bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return map[string]bool{
			"sse2":    cpu.X86.HasSSE2,
			"sse42":   cpu.X86.HasSSE42,
			"avx":     cpu.X86.HasAVX,
			"avx2":    cpu.X86.HasAVX2,
			"avx512f": cpu.X86.HasAVX512F,
			"erms":    cpu.X86.HasERMS,
		}
	case "arm64":
		return map[string]bool{
			"asimd":   cpu.ARM64.HasASIMD,
			"atomics": cpu.ARM64.HasATOMICS,
			"crc32":   cpu.ARM64.HasCRC32,
			"sve":     cpu.ARM64.HasSVE,
		}
	default:
		return map[string]bool{}
	}
}
