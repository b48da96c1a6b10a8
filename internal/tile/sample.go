package tile

import "github.com/samcharles93/looptile/internal/loopir"

// SampleProblem builds the reference local-assembly kernel: a P1 mass
// action with a pointwise nonlinear wrap-up, six quadrature points and
// three basis functions, over the given number of mesh cells. It is
// what `looptile sample` writes and what the package tests transform.
func SampleProblem(ncells int) *Problem {
	basisAtQuad := []float64{
		0.6, 0.2, 0.2, 0.2, 0.6, 0.2,
		0.2, 0.2, 0.6, 0.4, 0.4, 0.2,
		0.2, 0.4, 0.4, 0.4, 0.2, 0.4,
	}
	basisT := make([]float64, len(basisAtQuad))
	for q := 0; q < 6; q++ {
		for i := 0; i < 3; i++ {
			basisT[i*6+q] = basisAtQuad[q*3+i]
		}
	}
	weights := []float64{1.0 / 12, 1.0 / 12, 1.0 / 12, 3.0 / 12, 3.0 / 12, 3.0 / 12}

	k := &loopir.Kernel{
		Name: "wrap_form_cell_integral",
		Dims: map[string]int{
			"n":         ncells,
			"form_ip":   6,
			"form_i":    3,
			"form_j":    3,
			"i_coords":  3,
			"i_gather":  3,
			"i_init":    3,
			"i_scatter": 3,
		},
		DimTags: map[string]string{},
		Temporaries: map[string]loopir.Temporary{
			"t_coords": {Name: "t_coords", Shape: []int{3, 2}},
			"t_jac":    {Name: "t_jac", Shape: []int{}},
			"t_in":     {Name: "t_in", Shape: []int{3}},
			"t_out":    {Name: "t_out", Shape: []int{3}},
			"t_fs":     {Name: "t_fs", Shape: []int{}},
			"mat_quad": {Name: "mat_quad", Shape: []int{6, 3}, Initializer: basisAtQuad, ReadOnly: true},
			"mat_basis": {Name: "mat_basis", Shape: []int{3, 6},
				Initializer: basisT, ReadOnly: true},
			"w": {Name: "w", Shape: []int{6}, Initializer: weights, ReadOnly: true},
		},
		Args: []loopir.Arg{
			{Name: "coords", Shape: []int{3, 2}, ReadOnly: true},
			{Name: "dat0", Shape: []int{3}, ReadOnly: true},
			{Name: "out", Shape: []int{3}},
		},
		Instructions: []loopir.Instruction{
			{
				ID:        "g_coords",
				Tags:      loopir.NewSet(StageJacobiEval, TagGather),
				Within:    loopir.NewSet("n", "i_coords"),
				Reads:     loopir.NewSet("coords"),
				Writes:    loopir.NewSet("t_coords"),
				DependsOn: loopir.StringSet{},
			},
			{
				ID:        "jacobi_det",
				Tags:      loopir.NewSet(StageJacobiEval),
				Within:    loopir.NewSet("n"),
				Reads:     loopir.NewSet("t_coords"),
				Writes:    loopir.NewSet("t_jac"),
				DependsOn: loopir.NewSet("g_coords"),
			},
			{
				ID:        "g_input",
				Tags:      loopir.NewSet(StageJacobiEval, TagGather),
				Within:    loopir.NewSet("n", "i_gather"),
				Reads:     loopir.NewSet("dat0"),
				Writes:    loopir.NewSet("t_in"),
				DependsOn: loopir.StringSet{},
			},
			{
				ID:        "g_out_init",
				Tags:      loopir.NewSet(StageJacobiEval, TagGather),
				Within:    loopir.NewSet("n", "i_init"),
				Reads:     loopir.StringSet{},
				Writes:    loopir.NewSet("t_out"),
				DependsOn: loopir.StringSet{},
			},
			{
				ID:        "quad_zero",
				Tags:      loopir.NewSet(StageQuadInit),
				Within:    loopir.NewSet("n", "form_ip"),
				Reads:     loopir.StringSet{},
				Writes:    loopir.NewSet("t_fs"),
				DependsOn: loopir.StringSet{},
			},
			{
				ID:        "quad_accum",
				Tags:      loopir.NewSet(StageQuadRedn),
				Within:    loopir.NewSet("n", "form_ip", "form_i"),
				Reads:     loopir.NewSet("t_in", "mat_quad", "t_fs"),
				Writes:    loopir.NewSet("t_fs"),
				DependsOn: loopir.NewSet("quad_zero", "g_input"),
			},
			{
				ID:        "quad_eval",
				Tags:      loopir.NewSet(StageQuadWrapUp),
				Within:    loopir.NewSet("n", "form_ip"),
				Reads:     loopir.NewSet("t_fs", "t_jac", "w"),
				Writes:    loopir.NewSet("t_fs"),
				DependsOn: loopir.NewSet("quad_accum", "jacobi_det"),
			},
			{
				ID:        "basis_accum",
				Tags:      loopir.NewSet(StageBasisRedn),
				Within:    loopir.NewSet("n", "form_j", "form_ip"),
				Reads:     loopir.NewSet("t_fs", "mat_basis", "t_out"),
				Writes:    loopir.NewSet("t_out"),
				DependsOn: loopir.NewSet("quad_eval", "g_out_init"),
			},
			{
				ID:        "scatter_out",
				Tags:      loopir.NewSet(StageScatter),
				Within:    loopir.NewSet("n", "i_scatter"),
				Reads:     loopir.NewSet("t_out"),
				Writes:    loopir.NewSet("out"),
				DependsOn: loopir.NewSet("basis_accum"),
			},
		},
	}

	return &Problem{
		Kernel: k,
		Descriptor: StageDescriptor{
			CellIname:        "n",
			QuadIname:        "form_ip",
			NQuad:            6,
			InputDims:        []DimSpec{{Name: "form_i", Extent: 3}},
			OutputDim:        DimSpec{Name: "form_j", Extent: 3},
			CoordsVar:        "t_coords",
			InputVars:        []string{"t_in"},
			OutputVar:        "t_out",
			InputGatherIname: "i_gather",
			OutputInitIname:  "i_init",
			ScatterIname:     "i_scatter",
		},
	}
}
