// Package cost implements the static performance model used to rank
// tiling configurations before any of them are run. All quantities are
// dimensionless; EstimatedExecTime is only meaningful for comparing
// configurations of the same kernel against each other.
package cost

import (
	"fmt"
	"math"
	"sync"

	"github.com/samcharles93/looptile/internal/loopir"
	"github.com/samcharles93/looptile/internal/tile"
)

// Params are the kernel shape quantities the model depends on. They
// are extracted from the untransformed kernel, before constants are
// promoted to arguments.
type Params struct {
	// NQuad is the number of quadrature points per cell.
	NQuad int
	// NBasis is the number of output basis functions per cell.
	NBasis int
	// NumConstMatrices is the larger of the constant operator matrix
	// counts of the two matvec stages.
	NumConstMatrices int
	// NumFieldEvalVars is the number of per-cell intermediates carried
	// from the quadrature stage into the basis reduction.
	NumFieldEvalVars int
}

// ParamsFromProblem derives the model parameters for a tiling problem.
func ParamsFromProblem(p *tile.Problem) (Params, error) {
	return ParamsFromKernel(p.Kernel, p.Descriptor)
}

// ParamsFromKernel derives the model parameters from a kernel and its
// stage descriptor.
func ParamsFromKernel(k *loopir.Kernel, desc tile.StageDescriptor) (Params, error) {
	if err := desc.Validate(); err != nil {
		return Params{}, err
	}
	evalVars, err := tile.FieldEvalVars(k)
	if err != nil {
		return Params{}, fmt.Errorf("counting field evaluation variables: %w", err)
	}
	nconst, err := tile.ConstMatrixCount(k)
	if err != nil {
		return Params{}, fmt.Errorf("counting constant matrices: %w", err)
	}
	return Params{
		NQuad:            desc.NQuad,
		NBasis:           desc.NBasis(),
		NumConstMatrices: nconst,
		NumFieldEvalVars: len(evalVars),
	}, nil
}

// Model evaluates the cost estimates for one kernel on one
// architecture. It memoizes per-configuration results and is safe for
// concurrent use.
type Model struct {
	Params Params
	Arch   Arch

	mu        sync.RWMutex
	barriers  map[[4]int]int
	estimates map[tile.Config]float64
}

// NewModel returns a model for the given kernel parameters on the
// default architecture.
func NewModel(p Params) *Model {
	return &Model{
		Params:    p,
		Arch:      DefaultArch(),
		barriers:  make(map[[4]int]int),
		estimates: make(map[tile.Config]float64),
	}
}

// LocalBarriers returns the number of block level synchronizations one
// kernel execution performs: one per tile of each matvec sweep.
func (m *Model) LocalBarriers(t1r, t1c, t2r, t2c int) int {
	key := [4]int{t1r, t1c, t2r, t2c}
	m.mu.RLock()
	n, ok := m.barriers[key]
	m.mu.RUnlock()
	if ok {
		return n
	}
	n = ceilDiv(m.Params.NQuad, t1r)*ceilDiv(m.Params.NBasis, t1c) +
		ceilDiv(m.Params.NBasis, t2r)*ceilDiv(m.Params.NQuad, t2c)
	m.mu.Lock()
	m.barriers[key] = n
	m.mu.Unlock()
	return n
}

// TheoreticalWarpsPerSM returns how many warps of the configuration a
// multiprocessor can hold, limited only by shared memory and the block
// residency cap.
func (m *Model) TheoreticalWarpsPerSM(cfg tile.Config) float64 {
	maxFootprint := cfg.T1Row * cfg.T1Col
	if f := cfg.T2Row * cfg.T2Col; f > maxFootprint {
		maxFootprint = f
	}
	words := m.Params.NumConstMatrices*maxFootprint +
		m.Params.NQuad +
		m.Params.NumFieldEvalVars*m.Params.NQuad*cfg.CellsPerBlock
	usageKB := float64(words) * float64(m.Arch.BytesPerWord) * 1e-3

	blocksPerSM := 0.0
	if usageKB < m.Arch.SharedMemPerBlockKB {
		blocksPerSM = math.Floor(m.Arch.SharedMemPerSMKB / usageKB)
	}
	if cap := float64(m.Arch.MaxBlocksPerSM); blocksPerSM > cap {
		blocksPerSM = cap
	}
	warpsPerBlock := math.Floor(float64(cfg.ThreadsPerCell*cfg.CellsPerBlock) / float64(m.Arch.WarpSize))
	return blocksPerSM * warpsPerBlock
}

// WorkEfficiency returns the fraction of issued lane cycles that do
// useful work, in (0, 1]. It combines the wasted iterations where a
// tile row does not divide evenly across the threads of a cell with
// the idle lanes of a partially filled trailing warp.
func (m *Model) WorkEfficiency(cfg tile.Config) float64 {
	nq, nb := m.Params.NQuad, m.Params.NBasis
	nt := cfg.ThreadsPerCell

	wasted := nb * ((cfg.T1Row%nt)*(nq/cfg.T1Row) + (nq%cfg.T1Row)%nt)
	wasted += nq * ((cfg.T2Row%nt)*(nb/cfg.T2Row) + (nb%cfg.T2Row)%nt)
	wastedFraction := float64(wasted) / float64(2*nq*nb)

	tib := nt * cfg.CellsPerBlock
	pad := (m.Arch.WarpSize - tib%m.Arch.WarpSize) % m.Arch.WarpSize
	warpFill := float64(tib) / float64(tib+pad)

	return warpFill * (1 - wastedFraction)
}

// ActualWarpsPerSM scales the theoretical residency by the work
// efficiency.
func (m *Model) ActualWarpsPerSM(cfg tile.Config) float64 {
	return m.TheoreticalWarpsPerSM(cfg) * m.WorkEfficiency(cfg)
}

// EstimatedExecTime returns a quantity proportional to the expected
// execution time of the configuration: barriers divided by effective
// resident blocks. Configurations that cannot be resident at all get
// +Inf.
func (m *Model) EstimatedExecTime(cfg tile.Config) float64 {
	m.mu.RLock()
	est, ok := m.estimates[cfg]
	m.mu.RUnlock()
	if ok {
		return est
	}

	warps := m.ActualWarpsPerSM(cfg)
	if warps == 0 {
		est = math.Inf(1)
	} else {
		barriers := m.LocalBarriers(cfg.T1Row, cfg.T1Col, cfg.T2Row, cfg.T2Col)
		blocks := warps * float64(m.Arch.WarpSize) / float64(cfg.ThreadsPerCell*cfg.CellsPerBlock)
		est = float64(barriers) / blocks
	}

	m.mu.Lock()
	m.estimates[cfg] = est
	m.mu.Unlock()
	return est
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
