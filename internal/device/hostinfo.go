package device

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// HostInfo describes the machine the host backend runs on, including
// the SIMD features that affect measured timings.
func HostInfo() string {
	var features []string
	if cpu.X86.HasAVX512F {
		features = append(features, "avx512f")
	}
	if cpu.X86.HasAVX2 {
		features = append(features, "avx2")
	}
	if cpu.X86.HasFMA {
		features = append(features, "fma")
	}
	if cpu.X86.HasSSE42 {
		features = append(features, "sse4.2")
	}
	if cpu.ARM64.HasASIMD {
		features = append(features, "asimd")
	}
	if cpu.ARM64.HasSVE {
		features = append(features, "sve")
	}
	if len(features) == 0 {
		return fmt.Sprintf("%s/%s, %d cpus", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	}
	return fmt.Sprintf("%s/%s, %d cpus, %s",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), strings.Join(features, " "))
}
