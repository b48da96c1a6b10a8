package tile

import "fmt"

// DimSpec names a loop dimension together with its extent.
type DimSpec struct {
	Name   string `json:"name"`
	Extent int    `json:"extent"`
}

// StageDescriptor is the caller-supplied description of the kernel's
// six-stage structure. It replaces any tag/name inference: every loop
// dimension and temporary the pipeline touches is named here
// explicitly. The descriptor is consumed read-only.
type StageDescriptor struct {
	// CellIname ranges over mesh cells.
	CellIname string `json:"cell_iname"`
	// QuadIname ranges over quadrature points; NQuad is its extent.
	QuadIname string `json:"quad_iname"`
	NQuad     int    `json:"nquad"`
	// InputDims are the loop dimensions over input DoFs in the
	// quadrature stage. Exactly one input field is supported.
	InputDims []DimSpec `json:"input_dims"`
	// OutputDim is the loop dimension over output DoFs in the basis
	// stage.
	OutputDim DimSpec `json:"output_dim"`
	// CoordsVar, InputVars and OutputVar name the gathered coordinate,
	// input-DoF and output-DoF temporaries.
	CoordsVar string   `json:"coords_var"`
	InputVars []string `json:"input_vars"`
	OutputVar string   `json:"output_var"`
	// InputGatherIname, OutputInitIname and ScatterIname are the loop
	// dimensions of the input gather, the output-accumulator
	// initialization and the final scatter.
	InputGatherIname string `json:"input_gather_iname"`
	OutputInitIname  string `json:"output_init_iname"`
	ScatterIname     string `json:"scatter_iname"`
}

// NBasis returns the basis size shared by the input and output DoF
// dimensions.
func (d StageDescriptor) NBasis() int {
	return d.OutputDim.Extent
}

// Validate enforces the one-component invariant and basic
// well-formedness. Violations are StructuralAssumptionErrors.
func (d StageDescriptor) Validate() error {
	if len(d.InputVars) != 1 || len(d.InputDims) != 1 {
		return &StructuralAssumptionError{Reason: fmt.Sprintf(
			"exactly one input field is supported, descriptor names %d vars over %d dims",
			len(d.InputVars), len(d.InputDims))}
	}
	names := []struct {
		field string
		value string
	}{
		{"cell_iname", d.CellIname},
		{"quad_iname", d.QuadIname},
		{"input_dims[0].name", d.InputDims[0].Name},
		{"output_dim.name", d.OutputDim.Name},
		{"coords_var", d.CoordsVar},
		{"input_vars[0]", d.InputVars[0]},
		{"output_var", d.OutputVar},
		{"input_gather_iname", d.InputGatherIname},
		{"output_init_iname", d.OutputInitIname},
		{"scatter_iname", d.ScatterIname},
	}
	for _, n := range names {
		if n.value == "" {
			return &StructuralAssumptionError{Reason: "descriptor field " + n.field + " is empty"}
		}
	}
	if d.NQuad <= 0 {
		return &StructuralAssumptionError{Reason: fmt.Sprintf("nquad must be positive, got %d", d.NQuad)}
	}
	if d.InputDims[0].Extent <= 0 || d.OutputDim.Extent <= 0 {
		return &StructuralAssumptionError{Reason: "DoF dimension extents must be positive"}
	}
	if d.InputDims[0].Extent != d.OutputDim.Extent {
		return &StructuralAssumptionError{Reason: fmt.Sprintf(
			"single-component kernels share one basis size, got input %d vs output %d",
			d.InputDims[0].Extent, d.OutputDim.Extent)}
	}
	return nil
}
