package tune

// Measurement collects the timing samples of one candidate's rounds.
type Measurement struct {
	// SamplesMillis holds every round's elapsed time in submission
	// order, warmup rounds included.
	SamplesMillis []float64
	// Warmup is how many leading samples Mean discards.
	Warmup int
}

// Add appends one round's elapsed time.
func (m *Measurement) Add(ms float64) {
	m.SamplesMillis = append(m.SamplesMillis, ms)
}

// Mean returns the average of the samples after the warmup prefix.
// With no post-warmup samples it returns 0.
func (m *Measurement) Mean() float64 {
	if m.Warmup >= len(m.SamplesMillis) {
		return 0
	}
	kept := m.SamplesMillis[m.Warmup:]
	var sum float64
	for _, s := range kept {
		sum += s
	}
	return sum / float64(len(kept))
}
