package tile

import (
	"fmt"

	"github.com/samcharles93/looptile/internal/loopir"
)

// The six sequential pipeline stages of a local-assembly kernel, in
// program order. Instructions carry exactly one stage tag; gather and
// scatter instructions additionally carry TagGather/TagScatter.
const (
	StageJacobiEval = "jacobi_eval"
	StageQuadInit   = "quad_init"
	StageQuadRedn   = "quad_redn"
	StageQuadWrapUp = "quad_wrap_up"
	StageBasisRedn  = "basis_redn"
	StageScatter    = "scatter"

	TagGather  = "gather"
	TagScatter = "scatter"
)

// quadStageMatch selects every instruction of the quadrature stage.
const quadStageMatch = "tag:" + StageQuadInit + " or tag:" + StageQuadRedn + " or tag:" + StageQuadWrapUp

var stageOrder = []string{
	StageJacobiEval,
	StageQuadInit,
	StageQuadRedn,
	StageQuadWrapUp,
	StageBasisRedn,
	StageScatter,
}

// verifyStructure checks the kernel against the descriptor's six-stage
// single-field shape before any rewriting happens.
func verifyStructure(k *loopir.Kernel, desc StageDescriptor) error {
	for _, stage := range stageOrder {
		idx, err := loopir.MatchInstructions(k, "tag:"+stage)
		if err != nil {
			return err
		}
		if len(idx) == 0 {
			return &StructuralAssumptionError{Reason: fmt.Sprintf("kernel has no %s stage", stage)}
		}
	}
	scatters, err := loopir.MatchInstructions(k, "tag:"+StageScatter)
	if err != nil {
		return err
	}
	if len(scatters) != 1 {
		return &StructuralAssumptionError{Reason: fmt.Sprintf(
			"one-component kernels scatter exactly once, found %d scatter instructions", len(scatters))}
	}
	dims := []struct {
		name   string
		extent int
	}{
		{desc.CellIname, 0},
		{desc.QuadIname, desc.NQuad},
		{desc.InputDims[0].Name, desc.InputDims[0].Extent},
		{desc.OutputDim.Name, desc.OutputDim.Extent},
		{desc.InputGatherIname, 0},
		{desc.OutputInitIname, 0},
		{desc.ScatterIname, 0},
	}
	for _, d := range dims {
		ext, err := k.Extent(d.name)
		if err != nil {
			return &StructuralAssumptionError{Reason: fmt.Sprintf(
				"descriptor names dimension %q which the kernel does not have", d.name)}
		}
		if d.extent != 0 && ext != d.extent {
			return &StructuralAssumptionError{Reason: fmt.Sprintf(
				"dimension %q has extent %d in the kernel but %d in the descriptor", d.name, ext, d.extent)}
		}
	}
	for _, v := range []string{desc.CoordsVar, desc.InputVars[0], desc.OutputVar} {
		if _, ok := k.Temporaries[v]; !ok {
			return &StructuralAssumptionError{Reason: fmt.Sprintf(
				"descriptor names temporary %q which the kernel does not have", v)}
		}
	}
	return nil
}

// FieldEvalVars returns the per-cell field-sample intermediates: the
// temporaries written during quadrature wrap-up and read during the
// basis reduction. Sorted for determinism.
func FieldEvalVars(k *loopir.Kernel) ([]string, error) {
	written := loopir.StringSet{}
	wrapIdx, err := loopir.MatchInstructions(k, "tag:"+StageQuadWrapUp)
	if err != nil {
		return nil, err
	}
	for _, i := range wrapIdx {
		for v := range k.Instructions[i].Writes {
			written.Add(v)
		}
	}
	basisIdx, err := loopir.MatchInstructions(k, "tag:"+StageBasisRedn)
	if err != nil {
		return nil, err
	}
	read := loopir.StringSet{}
	for _, i := range basisIdx {
		for v := range k.Instructions[i].Reads {
			read.Add(v)
		}
	}
	return written.Intersection(read).Sorted(), nil
}

// ConstMatrixCount returns the number of constant operator matrices
// the cost model charges for: the larger of the counts consumed by the
// quadrature stage and by the basis reduction. Works on the
// untransformed kernel, where constants still carry initializers.
func ConstMatrixCount(k *loopir.Kernel) (int, error) {
	matrices := loopir.StringSet{}
	for name, tv := range k.Temporaries {
		if tv.Initializer != nil && len(tv.Shape) > 1 {
			matrices.Add(name)
		}
	}
	inQuad, err := constMatricesIn(k, quadStageMatch, matrices)
	if err != nil {
		return 0, err
	}
	inBasis, err := constMatricesIn(k, "tag:"+StageBasisRedn, matrices)
	if err != nil {
		return 0, err
	}
	if inQuad > inBasis {
		return inQuad, nil
	}
	return inBasis, nil
}

func constMatricesIn(k *loopir.Kernel, expr string, matrices loopir.StringSet) (int, error) {
	idx, err := loopir.MatchInstructions(k, expr)
	if err != nil {
		return 0, err
	}
	read := loopir.StringSet{}
	for _, i := range idx {
		for v := range k.Instructions[i].Reads {
			if matrices.Has(v) {
				read.Add(v)
			}
		}
	}
	return len(read), nil
}
