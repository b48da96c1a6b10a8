package cost

import (
	"math"
	"testing"

	"github.com/samcharles93/looptile/internal/tile"
)

func sampleParams(t *testing.T) Params {
	t.Helper()
	p, err := ParamsFromProblem(tile.SampleProblem(64))
	if err != nil {
		t.Fatalf("ParamsFromProblem: %v", err)
	}
	return p
}

func TestParamsFromProblem(t *testing.T) {
	p := sampleParams(t)
	want := Params{NQuad: 6, NBasis: 3, NumConstMatrices: 1, NumFieldEvalVars: 1}
	if p != want {
		t.Fatalf("params = %+v, want %+v", p, want)
	}
}

func TestLocalBarriers(t *testing.T) {
	m := NewModel(sampleParams(t))
	cases := []struct {
		t1r, t1c, t2r, t2c int
		want               int
	}{
		{6, 3, 3, 6, 2},
		{3, 3, 3, 3, 4},
		{2, 1, 1, 2, 18},
		{1, 1, 1, 1, 36},
	}
	for _, c := range cases {
		if got := m.LocalBarriers(c.t1r, c.t1c, c.t2r, c.t2c); got != c.want {
			t.Errorf("LocalBarriers(%d,%d,%d,%d) = %d, want %d",
				c.t1r, c.t1c, c.t2r, c.t2c, got, c.want)
		}
	}
	// Memoized path must agree with the first evaluation.
	if got := m.LocalBarriers(6, 3, 3, 6); got != 2 {
		t.Errorf("memoized LocalBarriers = %d, want 2", got)
	}
}

func TestLocalBarriersShrinkWithLargerTiles(t *testing.T) {
	m := NewModel(sampleParams(t))
	small := m.LocalBarriers(1, 1, 1, 1)
	large := m.LocalBarriers(6, 3, 3, 6)
	if large >= small {
		t.Fatalf("larger tiles should need fewer barriers: got %d >= %d", large, small)
	}
}

func TestTheoreticalWarpsPerSM(t *testing.T) {
	m := NewModel(sampleParams(t))

	cfg := tile.Config{
		CellsPerBlock: 32, ThreadsPerCell: 1,
		T1Row: 6, T1Col: 3, T2Row: 3, T2Col: 6,
	}
	// 1*18 + 6 + 1*6*32 words = 1.728 KB, 55 blocks fit but the
	// residency cap holds it to 32, one warp each.
	if got := m.TheoreticalWarpsPerSM(cfg); got != 32 {
		t.Errorf("TheoreticalWarpsPerSM = %v, want 32", got)
	}

	// A footprint past the per-block limit cannot launch.
	huge := cfg
	huge.CellsPerBlock = 2048
	if got := m.TheoreticalWarpsPerSM(huge); got != 0 {
		t.Errorf("oversized block: warps = %v, want 0", got)
	}
}

func TestWorkEfficiencyFullWarps(t *testing.T) {
	m := NewModel(sampleParams(t))
	cfg := tile.Config{
		CellsPerBlock: 32, ThreadsPerCell: 1,
		T1Row: 6, T1Col: 3, T2Row: 3, T2Col: 6,
	}
	// 32 threads fill a warp exactly and one thread per cell never
	// straddles a tile row, so nothing is wasted.
	if got := m.WorkEfficiency(cfg); got != 1 {
		t.Errorf("WorkEfficiency = %v, want 1", got)
	}
}

func TestWorkEfficiencyPartialWarp(t *testing.T) {
	m := NewModel(sampleParams(t))
	cfg := tile.Config{
		CellsPerBlock: 21, ThreadsPerCell: 3,
		T1Row: 6, T1Col: 3, T2Row: 3, T2Col: 6,
	}
	// Three threads divide both tile rows evenly, so the only loss is
	// the 63-thread block padding to two warps.
	got := m.WorkEfficiency(cfg)
	want := 63.0 / 64.0
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("WorkEfficiency = %v, want %v", got, want)
	}
}

func TestEstimatedExecTime(t *testing.T) {
	m := NewModel(sampleParams(t))
	cfg := tile.Config{
		CellsPerBlock: 32, ThreadsPerCell: 1,
		T1Row: 6, T1Col: 3, T2Row: 3, T2Col: 6,
	}
	// 2 barriers over 32 effective resident blocks.
	if got := m.EstimatedExecTime(cfg); got != 0.0625 {
		t.Errorf("EstimatedExecTime = %v, want 0.0625", got)
	}
	if got := m.EstimatedExecTime(cfg); got != 0.0625 {
		t.Errorf("memoized EstimatedExecTime = %v, want 0.0625", got)
	}
}

func TestEstimatedExecTimeNonResident(t *testing.T) {
	m := NewModel(sampleParams(t))
	cfg := tile.Config{
		CellsPerBlock: 2048, ThreadsPerCell: 1,
		T1Row: 6, T1Col: 3, T2Row: 3, T2Col: 6,
	}
	if got := m.EstimatedExecTime(cfg); !math.IsInf(got, 1) {
		t.Fatalf("EstimatedExecTime = %v, want +Inf", got)
	}
}

func TestEstimatedExecTimeConcurrent(t *testing.T) {
	m := NewModel(sampleParams(t))
	cfg := tile.Config{
		CellsPerBlock: 32, ThreadsPerCell: 1,
		T1Row: 6, T1Col: 3, T2Row: 3, T2Col: 6,
	}
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				if got := m.EstimatedExecTime(cfg); got != 0.0625 {
					t.Errorf("EstimatedExecTime = %v, want 0.0625", got)
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
