// Package device abstracts the execution target the tuner measures
// candidate kernels on. The interfaces follow the CUDA driver API
// shape so a real GPU backend can slot in; the built-in backend runs
// kernels on the host.
package device

import (
	"fmt"
	"strings"

	"github.com/samcharles93/looptile/internal/loopir"
)

// Dim3 is a three dimensional launch extent.
type Dim3 struct {
	X, Y, Z int
}

// Count returns the total number of elements in the extent.
func (d Dim3) Count() int {
	return d.X * d.Y * d.Z
}

// Buffer is a device allocation, sized in 8 byte words.
type Buffer interface {
	// Words returns the allocation size.
	Words() int
	// Free releases the allocation. Calling any other method after
	// Free is an error.
	Free() error
}

// Event marks a point in the device's execution stream.
type Event interface {
	// Record enqueues the event behind all previously submitted work.
	Record() error
	// Synchronize blocks until the event has completed.
	Synchronize() error
	// ElapsedMillis returns the time between an earlier recorded event
	// and this one. Both events must have completed.
	ElapsedMillis(start Event) (float64, error)
}

// Executable is a kernel prepared for launch on one executor.
type Executable interface {
	// Launch submits one execution over the given grid and block. The
	// argument order matches the kernel's declared arguments followed
	// by its promoted constants.
	Launch(grid, block Dim3, args ...Buffer) error
	// Free releases the compiled kernel.
	Free() error
}

// Executor owns a device and its submission stream. Implementations
// must serialize launches, copies, and events in submission order, the
// way a CUDA stream does.
type Executor interface {
	// Name identifies the backend.
	Name() string
	// Compile prepares a transformed kernel for launching.
	Compile(k *loopir.Kernel) (Executable, error)
	// Malloc allocates an uninitialized buffer of n words.
	Malloc(n int) (Buffer, error)
	// Upload copies host data into a buffer.
	Upload(dst Buffer, data []float64) error
	// Download copies a buffer back to the host.
	Download(src Buffer) ([]float64, error)
	// CopyDeviceToDevice copies src into dst. Both must be at least n
	// words long.
	CopyDeviceToDevice(dst, src Buffer, n int) error
	// NewEvent creates an unrecorded event on the executor's stream.
	NewEvent() (Event, error)
	// Close waits for outstanding work and releases the device.
	Close() error
}

// Open returns the executor for the named backend. The empty string
// selects the host backend.
func Open(name string) (Executor, error) {
	switch Normalize(name) {
	case "host":
		return newHostExecutor(), nil
	default:
		return nil, fmt.Errorf("unknown device backend %q", name)
	}
}

// Normalize maps backend aliases onto their canonical names. Unknown
// names pass through unchanged so Open can report them.
func Normalize(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "host", "cpu", "native":
		return "host"
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}
