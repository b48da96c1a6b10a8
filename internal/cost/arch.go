package cost

// Arch holds the hardware limits the static model is evaluated
// against. The defaults describe a Volta class part, which is what the
// constants in the occupancy estimate were calibrated on.
type Arch struct {
	// WarpSize is the number of lanes that issue together.
	WarpSize int
	// SharedMemPerSMKB is the total scratchpad available per
	// multiprocessor, in kilobytes.
	SharedMemPerSMKB float64
	// SharedMemPerBlockKB is the per-block scratchpad limit. A
	// configuration whose footprint exceeds this cannot launch at all.
	SharedMemPerBlockKB float64
	// MaxBlocksPerSM caps how many blocks a multiprocessor can hold
	// regardless of resource usage.
	MaxBlocksPerSM int
	// BytesPerWord is the size of one scalar in shared memory.
	BytesPerWord int
}

// DefaultArch returns the limits the model was tuned for.
func DefaultArch() Arch {
	return Arch{
		WarpSize:            32,
		SharedMemPerSMKB:    96,
		SharedMemPerBlockKB: 48,
		MaxBlocksPerSM:      32,
		BytesPerWord:        8,
	}
}
