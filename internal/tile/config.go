package tile

import "fmt"

// Config records one tiling configuration for Transform.
//
// CellsPerBlock is the number of mesh cells whose workload goes to one
// block; ThreadsPerCell the number of parallel lanes launched per
// cell. T1Row/T1Col tile the quadrature-reduction matvec (rows over
// quadrature points, columns over input DoFs); T2Row/T2Col tile the
// basis-reduction matvec (rows over output DoFs, columns over
// quadrature points). The Load* flags select which objects are staged
// in shared memory; the TiledPrefetch* flags pick per-tile instead of
// whole-array staging granularity.
//
// Config is a comparable value type and serves as the memoization key
// for every cost-model query.
type Config struct {
	CellsPerBlock  int `json:"cells_per_block"`
	ThreadsPerCell int `json:"threads_per_cell"`

	T1Row int `json:"t1_row"`
	T1Col int `json:"t1_col"`
	T2Row int `json:"t2_row"`
	T2Col int `json:"t2_col"`

	LoadCoordinatesToShared bool `json:"load_coordinates_to_shared,omitempty"`
	LoadInputToShared       bool `json:"load_input_to_shared,omitempty"`
	LoadMatsToShared        bool `json:"load_mats_to_shared,omitempty"`
	LoadQuadWeightsToShared bool `json:"load_quad_weights_to_shared,omitempty"`

	TiledPrefetchOfInput       bool `json:"tiled_prefetch_of_input,omitempty"`
	TiledPrefetchOfQuadWeights bool `json:"tiled_prefetch_of_quad_weights,omitempty"`
}

// Validate checks that every integer field is positive.
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"cells_per_block", c.CellsPerBlock},
		{"threads_per_cell", c.ThreadsPerCell},
		{"t1_row", c.T1Row},
		{"t1_col", c.T1Col},
		{"t2_row", c.T2Row},
		{"t2_col", c.T2Col},
	}
	for _, f := range fields {
		if f.value <= 0 {
			return &ConfigurationError{Field: f.name, Value: f.value, Reason: "must be a positive integer"}
		}
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("cells=%d threads=%d t1=%dx%d t2=%dx%d coords=%t input=%t mats=%t weights=%t tiledin=%t tiledwt=%t",
		c.CellsPerBlock, c.ThreadsPerCell, c.T1Row, c.T1Col, c.T2Row, c.T2Col,
		c.LoadCoordinatesToShared, c.LoadInputToShared, c.LoadMatsToShared,
		c.LoadQuadWeightsToShared, c.TiledPrefetchOfInput, c.TiledPrefetchOfQuadWeights)
}
