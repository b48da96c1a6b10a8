package tile

import (
	"fmt"

	"github.com/samcharles93/looptile/internal/loopir"
)

// Names introduced by the pipeline. Each is defined at the step that
// first creates it; no other step invents identifiers.
const (
	dimBlock = "iblock"
	dimCell  = "icell"

	dimRowTile1 = "irowtile_matvec1"
	dimColTile1 = "icoltile_matvec1"
	dimRowTile2 = "irowtile_matvec2"
	dimColTile2 = "icoltile_matvec2"

	tempInputPrefetch    = "input_dof_prftch"
	insnInputPrefetch    = "input_prcmpt_insn"
	dimInputPrefetch     = "input_prcmpt"
	tempQuadMatPrefetch  = "quad_cnst_mtrix_prftch"
	insnQuadPrefetch     = "quad_prftch_insn"
	dimQuadPrefetch      = "quad_prftch_iname"
	tempBasisMatPrefetch = "basis_cnst_mtrix_prftch"
	insnBasisPrefetch    = "basis_prftch_insn"
	dimBasisPrefetch     = "basis_prftch_iname"
	tempWeightPrefetch   = "cnst_quad_weight_prftch"
	insnWeightPrefetch   = "quad_wt_prftch_insn"
	dimWeightPrefetch    = "iprftch_qw"
)

// rewriter threads a kernel value through the pipeline, capturing the
// first error and skipping the rest.
type rewriter struct {
	k   *loopir.Kernel
	err error
}

func (r *rewriter) do(f func(*loopir.Kernel) (*loopir.Kernel, error)) {
	if r.err != nil {
		return
	}
	r.k, r.err = f(r.k)
}

func (r *rewriter) split(dim string, factor int, outer, inner string) {
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return loopir.SplitDim(k, dim, factor, outer, inner)
	})
}

func (r *rewriter) duplicate(dim, within, newName string) {
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return loopir.DuplicateDim(k, dim, within, newName)
	})
}

func (r *rewriter) rename(old, new string) {
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return loopir.RenameDim(k, old, new, true)
	})
}

func (r *rewriter) tag(dim, tag string) {
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return loopir.TagDim(k, dim, tag)
	})
}

func (r *rewriter) dependOn(target, dep string) {
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return loopir.AddDependency(k, target, dep)
	})
}

func (r *rewriter) dropDep(target, dep string) {
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return loopir.RemoveDependency(k, target, dep)
	})
}

// laneSplit divides a loop across threadsPerCell hardware lanes,
// leaving the remainder as sequential unrolled work per lane.
func (r *rewriter) laneSplit(dim string, lanes int) {
	outer, inner := dim+"_outer", dim+"_inner"
	r.split(dim, lanes, outer, inner)
	r.tag(inner, "l.0")
	r.tag(outer, "ilp")
}

// Transform rewrites a local-assembly kernel into a tiled,
// memory-staged, thread-mapped form according to cfg, and returns the
// transformed kernel together with the compile-time constant arrays
// promoted to kernel arguments. It is deterministic and pure: the
// input kernel is not modified and identical inputs produce identical
// outputs.
func Transform(k *loopir.Kernel, desc StageDescriptor, cfg Config) (*loopir.Kernel, []loopir.ConstantArg, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.LoadCoordinatesToShared {
		return nil, nil, &UnsupportedFeatureError{Feature: "staging cell coordinates to shared memory"}
	}
	nq, nb := desc.NQuad, desc.NBasis()
	if cfg.T1Col < nb {
		return nil, nil, &UnsupportedFeatureError{Feature: fmt.Sprintf(
			"matvec1 column tile %d narrower than the input DoF extent %d requires a column split of the quadrature wrap-up", cfg.T1Col, nb)}
	}
	if cfg.T2Col < nq {
		return nil, nil, &UnsupportedFeatureError{Feature: fmt.Sprintf(
			"matvec2 column tile %d narrower than the quadrature extent %d requires a column split of the scatter", cfg.T2Col, nq)}
	}
	if err := verifyStructure(k, desc); err != nil {
		return nil, nil, err
	}

	quadQ := desc.QuadIname + "_quad"
	quadB := desc.QuadIname + "_basis"
	inputIname := desc.InputDims[0].Name
	outputIname := desc.OutputDim.Name
	inputVar := desc.InputVars[0]

	r := &rewriter{k: k}

	// Step 1: the cell loop becomes the block/grid mapping.
	r.split(desc.CellIname, cfg.CellsPerBlock, dimBlock, dimCell)

	// Step 2: each matvec gets its own copy of the quadrature loop so
	// the two can be tiled independently.
	r.duplicate(desc.QuadIname, quadStageMatch, quadQ)
	r.duplicate(desc.QuadIname, "tag:"+StageBasisRedn, quadB)

	// Step 3: compile-time constant arrays become global kernel
	// arguments, uploaded once by the caller.
	var constArgs []loopir.ConstantArg
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		k2, promoted := loopir.PromoteConstants(k)
		constArgs = promoted
		return k2, nil
	})

	// Step 4: dead instructions and unused storage axes would break
	// the renames and fusions below.
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) { return loopir.RemoveNoOps(k), nil })
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) { return loopir.RemoveDeadCode(k), nil })
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) { return loopir.RemoveUnusedAxes(k), nil })

	// Step 5: field samples get a private copy per quadrature point
	// and per cell, resident in shared memory, so the two matvec
	// stages can exchange them within a block.
	var evalVars []string
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		vars, err := FieldEvalVars(k)
		if err != nil {
			return nil, err
		}
		if len(vars) == 0 {
			return nil, &StructuralAssumptionError{Reason: "no field-sample intermediate links the two matvec stages"}
		}
		evalVars = vars
		return k, nil
	})
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) { return loopir.PrivatizeTemps(k, quadQ, evalVars) })
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) { return loopir.PrivatizeTemps(k, dimCell, evalVars) })
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return loopir.SetTempSpace(k, evalVars, loopir.SpaceShared)
	})

	// Gather, init and scatter loops merge into the reduction loops
	// they feed, and the output accumulator becomes a scalar per lane.
	r.rename(desc.ScatterIname, outputIname)
	r.rename(desc.InputGatherIname, inputIname)
	if desc.OutputInitIname != outputIname {
		r.rename(desc.OutputInitIname, outputIname)
	}
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) { return loopir.RemoveUnnecessaryDeps(k), nil })
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) { return loopir.RemoveAxis(k, desc.OutputVar, 0) })

	// Steps 6 and 7: tile both matvecs.
	r.split(quadQ, cfg.T1Row, dimRowTile1, quadQ+"_inner")
	r.split(inputIname, cfg.T1Col, dimColTile1, inputIname+"_inner")
	r.split(outputIname, cfg.T2Row, dimRowTile2, outputIname+"_inner")
	r.split(quadB, cfg.T2Col, dimColTile2, quadB+"_inner")

	// Step 8: staging into shared memory.
	if cfg.LoadInputToShared {
		r.stageInput(cfg, inputIname, inputVar)
	}
	var quadScratch, basisScratch []string
	if cfg.LoadMatsToShared {
		quadScratch, basisScratch = r.stageConstMatrices(cfg, constArgs, quadQ, quadB, inputIname, outputIname)
	}
	if cfg.LoadQuadWeightsToShared {
		r.stageQuadWeights(cfg, constArgs, quadQ)
	}

	// Step 9: collapse the two matrix scratch buffers when their live
	// ranges within one block iteration never overlap.
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return mergeScratch(k, quadScratch, basisScratch, cfg.T1Row*cfg.T1Col, cfg.T2Row*cfg.T2Col)
	})

	// Step 10: reductions wait on the staging that feeds them, results
	// are written only after the matching wrap-up, and reductions
	// within one stage are free to schedule across tile columns. The
	// basis staging waiting on the whole quadrature stage is also what
	// makes the step-9 storage reuse safe.
	if cfg.LoadMatsToShared {
		r.dependOn("id:"+insnBasisPrefetch+"*", quadStageMatch)
		r.dependOn("tag:"+StageQuadRedn, "id:"+insnQuadPrefetch+"*")
		r.dependOn("tag:"+StageBasisRedn, "id:"+insnBasisPrefetch+"*")
	}
	r.dropDep("tag:"+StageQuadRedn, "tag:"+StageQuadRedn)
	r.dropDep("tag:"+StageBasisRedn, "tag:"+StageBasisRedn)
	r.dependOn("tag:"+StageQuadWrapUp, "tag:"+StageQuadRedn)
	r.dependOn("writes:"+desc.OutputVar, "tag:"+StageQuadWrapUp)

	// Step 11: per-tile work splits across the cell's parallel lanes.
	r.laneSplit(quadQ+"_inner", cfg.ThreadsPerCell)
	r.laneSplit(outputIname+"_inner", cfg.ThreadsPerCell)

	// Full-width column tiles keep the wrap-up/init and scatter/init
	// instructions inside the single column-tile iteration. (Narrower
	// tiles were rejected above.)
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return loopir.AddDimsToInstructions(k, dimColTile1,
			"tag:"+StageQuadWrapUp+" or tag:"+StageQuadInit)
	})
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return loopir.AddDimsToInstructions(k, dimColTile2,
			"tag:"+TagScatter+" or tag:"+TagGather+" and writes:"+desc.OutputVar)
	})

	// Step 12: hardware binding of the intra-block cell index and the
	// block index.
	r.tag(dimCell, "l.1")
	r.tag(dimBlock, "g.0")

	// Step 13: cleanup.
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) { return loopir.RemoveUnusedDims(k), nil })
	if r.err != nil {
		return nil, nil, r.err
	}
	r.k.LoopPriority = nil
	return r.k, constArgs, nil
}

// stageInput stages the gathered input-DoF vector into shared memory
// ahead of the quadrature reduction, per tile or as a whole array.
func (r *rewriter) stageInput(cfg Config, inputIname, inputVar string) {
	inner := inputIname + "_inner"
	var sweep, fetch, outer []string
	if cfg.TiledPrefetchOfInput {
		sweep = []string{inner, dimCell}
		fetch = []string{dimInputPrefetch, dimCell}
		outer = []string{dimBlock, dimColTile1, dimRowTile1}
	} else {
		sweep = []string{dimColTile1, inner, dimCell}
		fetch = []string{dimInputPrefetch + "_tile", dimInputPrefetch, dimCell}
		outer = []string{dimBlock}
	}
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return loopir.AddPrefetch(k, loopir.PrefetchSpec{
			Var:       inputVar,
			TempName:  tempInputPrefetch,
			InsnID:    insnInputPrefetch,
			SweepDims: sweep,
			FetchDims: fetch,
			OuterDims: outer,
			Within:    "tag:" + StageQuadRedn,
		})
	})
	r.split(dimInputPrefetch, cfg.ThreadsPerCell, dimInputPrefetch+"_outer", dimInputPrefetch+"_inner")
	r.tag(dimInputPrefetch+"_inner", "l.0")
}

// stageConstMatrices stages the constant operator matrices consumed by
// each matvec into shared memory, cooperatively fetched by the whole
// block. Returns the quad-stage and basis-stage scratch names.
func (r *rewriter) stageConstMatrices(cfg Config, constArgs []loopir.ConstantArg, quadQ, quadB, inputIname, outputIname string) (quadScratch, basisScratch []string) {
	if r.err != nil {
		return nil, nil
	}
	quadMats := r.constMatricesReadBy(constArgs, "tag:"+StageQuadRedn)
	basisMats := r.constMatricesReadBy(constArgs, "tag:"+StageBasisRedn)

	fetchQuad := []string{"iprftch_0", "iprftch_1"}
	for i, mat := range quadMats {
		spec := loopir.PrefetchSpec{
			Var:       mat,
			TempName:  numbered(tempQuadMatPrefetch, i),
			InsnID:    numbered(insnQuadPrefetch, i),
			SweepDims: []string{quadQ + "_inner", inputIname + "_inner"},
			FetchDims: fetchQuad,
			OuterDims: []string{dimBlock, dimColTile1, dimRowTile1},
			Within:    "tag:" + StageQuadRedn,
		}
		quadScratch = append(quadScratch, spec.TempName)
		r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) { return loopir.AddPrefetch(k, spec) })
	}
	r.joinAndSplitFetchLoop(fetchQuad, dimQuadPrefetch, cfg)

	fetchBasis := []string{"iprftch_2", "iprftch_3"}
	for i, mat := range basisMats {
		spec := loopir.PrefetchSpec{
			Var:       mat,
			TempName:  numbered(tempBasisMatPrefetch, i),
			InsnID:    numbered(insnBasisPrefetch, i),
			SweepDims: []string{outputIname + "_inner", quadB + "_inner"},
			FetchDims: fetchBasis,
			OuterDims: []string{dimBlock, dimColTile2, dimRowTile2},
			Within:    "tag:" + StageBasisRedn,
		}
		basisScratch = append(basisScratch, spec.TempName)
		r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) { return loopir.AddPrefetch(k, spec) })
	}
	r.joinAndSplitFetchLoop(fetchBasis, dimBasisPrefetch, cfg)
	return quadScratch, basisScratch
}

// joinAndSplitFetchLoop fuses a two-dimensional fetch loop and spreads
// it over the block's cells and lanes, unrolling the remainder.
func (r *rewriter) joinAndSplitFetchLoop(fetchDims []string, joined string, cfg Config) {
	if r.err != nil || !r.k.HasDim(fetchDims[0]) {
		return
	}
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) { return loopir.JoinDims(k, fetchDims, joined) })
	r.split(joined, cfg.CellsPerBlock*cfg.ThreadsPerCell, joined+"_outer", joined+"_inner")
	r.tag(joined+"_outer", "ilp")
	r.split(joined+"_inner", cfg.ThreadsPerCell, joined+"_inner_outer", joined+"_inner_inner")
	r.tag(joined+"_inner_outer", "l.1")
	r.tag(joined+"_inner_inner", "l.0")
}

// stageQuadWeights stages the quadrature-weight vector ahead of the
// pointwise wrap-up.
func (r *rewriter) stageQuadWeights(cfg Config, constArgs []loopir.ConstantArg, quadQ string) {
	if r.err != nil {
		return
	}
	var weights string
	for _, ca := range constArgs {
		if len(ca.Shape) == 1 {
			weights = ca.Name
			break
		}
	}
	if weights == "" {
		r.err = &StructuralAssumptionError{Reason: "no one-dimensional constant vector to stage as quadrature weights"}
		return
	}
	inner := quadQ + "_inner"
	var sweep, fetch, outer []string
	if cfg.TiledPrefetchOfQuadWeights {
		sweep = []string{inner}
		fetch = []string{dimWeightPrefetch}
		outer = []string{dimRowTile1, dimBlock}
	} else {
		sweep = []string{dimRowTile1, inner}
		fetch = []string{dimWeightPrefetch + "_tile", dimWeightPrefetch}
		outer = []string{dimBlock}
	}
	r.do(func(k *loopir.Kernel) (*loopir.Kernel, error) {
		return loopir.AddPrefetch(k, loopir.PrefetchSpec{
			Var:       weights,
			TempName:  tempWeightPrefetch,
			InsnID:    insnWeightPrefetch,
			SweepDims: sweep,
			FetchDims: fetch,
			OuterDims: outer,
			Within:    "tag:" + StageQuadWrapUp,
		})
	})
	r.split(dimWeightPrefetch, cfg.CellsPerBlock*cfg.ThreadsPerCell, dimWeightPrefetch+"_outer", dimWeightPrefetch+"_inner")
	r.tag(dimWeightPrefetch+"_outer", "ilp")
	r.split(dimWeightPrefetch+"_inner", cfg.ThreadsPerCell, dimWeightPrefetch+"_inner_outer", dimWeightPrefetch+"_inner_inner")
	r.tag(dimWeightPrefetch+"_inner_outer", "l.1")
	r.tag(dimWeightPrefetch+"_inner_inner", "l.0")
}

// constMatricesReadBy returns the promoted constant matrices (two or
// more axes) read by the instructions matching expr, sorted by name.
func (r *rewriter) constMatricesReadBy(constArgs []loopir.ConstantArg, expr string) []string {
	if r.err != nil {
		return nil
	}
	matrices := loopir.StringSet{}
	for _, ca := range constArgs {
		if len(ca.Shape) > 1 {
			matrices.Add(ca.Name)
		}
	}
	idx, err := loopir.MatchInstructions(r.k, expr)
	if err != nil {
		r.err = err
		return nil
	}
	read := loopir.StringSet{}
	for _, i := range idx {
		for v := range r.k.Instructions[i].Reads {
			if matrices.Has(v) {
				read.Add(v)
			}
		}
	}
	return read.Sorted()
}

func numbered(base string, i int) string {
	if i == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, i-1)
}
