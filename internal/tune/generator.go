// Package tune enumerates tiling configurations, ranks them with the
// static cost model, and measures the shortlist on a device executor
// to pick the final kernel.
package tune

import (
	"fmt"
	"math"
	"sort"

	"github.com/samcharles93/looptile/internal/cost"
	"github.com/samcharles93/looptile/internal/tile"
)

// threadsToCells pairs a threads-per-cell count with the block cell
// counts worth trying at that width. The table is ordered by
// descending thread count so enumeration is deterministic.
var threadsToCells = []struct {
	threads int
	cells   []int
}{
	{9, []int{7}},
	{8, []int{4, 8, 16}},
	{7, []int{9}},
	{4, []int{8, 16}},
	{3, []int{21}},
	{2, []int{16, 32, 64}},
	{1, []int{32, 64}},
}

// footprintSimilarity is the pruning threshold on the relative
// difference between the two matvec tile footprints. Tiles whose
// scratch requirements differ more than this waste shared memory on
// the smaller stage.
const footprintSimilarity = 0.2

// Generator produces the ranked candidate shortlist for one kernel.
type Generator struct {
	Model *cost.Model
	// Count truncates the shortlist. Non-positive means no limit.
	Count int
}

// NewGenerator returns a generator over the model's kernel shape.
func NewGenerator(m *cost.Model, count int) *Generator {
	return &Generator{Model: m, Count: count}
}

// Candidates returns tiling configurations in ascending estimated cost
// order, at most Count of them.
func (g *Generator) Candidates() ([]tile.Config, error) {
	nq, nb := g.Model.Params.NQuad, g.Model.Params.NBasis
	if nq <= 0 || nb <= 0 {
		return nil, fmt.Errorf("cannot enumerate tiles for %d quadrature points and %d basis functions", nq, nb)
	}

	type tileShape struct {
		t1r, t1c, t2r, t2c int
	}
	var tiles []tileShape
	for i := 1; i <= ceilSqrt(nb); i++ {
		t1c := ceilDiv(nb, i)
		for j := 1; j <= ceilSqrt(nq); j++ {
			t1r := ceilDiv(nq, j)
			for k := 1; k <= ceilSqrt(nb); k++ {
				t2r := ceilDiv(nb, k)
				for l := 1; l <= ceilSqrt(nq); l++ {
					t2c := ceilDiv(nq, l)
					f1, f2 := t1r*t1c, t2r*t2c
					larger := f1
					if f2 > larger {
						larger = f2
					}
					if math.Abs(float64(f1-f2))/float64(larger) < footprintSimilarity {
						tiles = append(tiles, tileShape{t1r, t1c, t2r, t2c})
					}
				}
			}
		}
	}

	sort.SliceStable(tiles, func(a, b int) bool {
		return g.Model.LocalBarriers(tiles[a].t1r, tiles[a].t1c, tiles[a].t2r, tiles[a].t2c) <
			g.Model.LocalBarriers(tiles[b].t1r, tiles[b].t1c, tiles[b].t2r, tiles[b].t2c)
	})

	var configs []tile.Config
	for _, ts := range tiles {
		for _, tc := range threadsToCells {
			bestCells := 0
			bestEst := math.Inf(1)
			for _, cells := range tc.cells {
				cfg := measurementConfig(cells, tc.threads, ts.t1r, ts.t1c, ts.t2r, ts.t2c)
				if est := g.Model.EstimatedExecTime(cfg); est < bestEst {
					bestCells, bestEst = cells, est
				}
			}
			if bestCells != 0 {
				configs = append(configs, measurementConfig(bestCells, tc.threads, ts.t1r, ts.t1c, ts.t2r, ts.t2c))
			}
		}
	}

	sort.SliceStable(configs, func(a, b int) bool {
		return g.Model.EstimatedExecTime(configs[a]) < g.Model.EstimatedExecTime(configs[b])
	})

	if g.Count > 0 && len(configs) > g.Count {
		configs = configs[:g.Count]
	}
	return configs, nil
}

// measurementConfig builds the flag set candidates are measured with:
// constant matrices and quadrature weights staged to shared memory,
// everything else off.
func measurementConfig(cells, threads, t1r, t1c, t2r, t2c int) tile.Config {
	return tile.Config{
		CellsPerBlock:           cells,
		ThreadsPerCell:          threads,
		T1Row:                   t1r,
		T1Col:                   t1c,
		T2Row:                   t2r,
		T2Col:                   t2c,
		LoadMatsToShared:        true,
		LoadQuadWeightsToShared: true,
	}
}

func ceilSqrt(n int) int {
	return int(math.Ceil(math.Sqrt(float64(n))))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
