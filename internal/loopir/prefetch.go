package loopir

import "fmt"

// TagPrefetch marks staging instructions inserted by AddPrefetch.
const TagPrefetch = "prefetch"

// PrefetchSpec describes staging one variable into a fresh
// shared-memory scratch buffer ahead of its consumers.
type PrefetchSpec struct {
	// Var is the variable to stage (an argument or temporary).
	Var string
	// TempName names the shared scratch buffer to create.
	TempName string
	// InsnID is the ID of the inserted fetch instruction.
	InsnID string
	// SweepDims are the existing loop dimensions spanning the staged
	// footprint; their extents become the scratch buffer's shape.
	SweepDims []string
	// FetchDims name the fresh loop dimensions of the fetch loop, one
	// per sweep dimension. They may be shared between several
	// prefetches so the fetch loops can later be joined in one pass.
	FetchDims []string
	// OuterDims are the dimensions the fetch instruction nests within
	// beyond its own fetch loop; they set the staging granularity
	// (whole-array when only the block loop, per-tile when the tile
	// loops are included).
	OuterDims []string
	// Within selects the consuming instructions rewired to read the
	// scratch buffer.
	Within string
}

// AddPrefetch creates the scratch temporary and fetch instruction of
// spec, inserts the fetch ahead of the first consumer, and redirects
// the selected consumers from spec.Var to the scratch buffer. The
// consumers gain a dependency on the fetch instruction.
func AddPrefetch(k *Kernel, spec PrefetchSpec) (*Kernel, error) {
	if len(spec.FetchDims) != len(spec.SweepDims) {
		return nil, fmt.Errorf("loopir: prefetch of %q needs one fetch dimension per sweep dimension (%d vs %d)",
			spec.Var, len(spec.FetchDims), len(spec.SweepDims))
	}
	if _, ok := k.Temporaries[spec.TempName]; ok {
		return nil, fmt.Errorf("loopir: prefetch scratch %q already exists", spec.TempName)
	}
	consumers, err := MatchInstructions(k, spec.Within)
	if err != nil {
		return nil, err
	}
	first := -1
	for _, ci := range consumers {
		if k.Instructions[ci].Reads.Has(spec.Var) {
			first = ci
			break
		}
	}
	if first < 0 {
		return nil, fmt.Errorf("loopir: no instruction matching %q reads %q", spec.Within, spec.Var)
	}

	out := k.Clone()
	shape := make([]int, len(spec.SweepDims))
	for i, dim := range spec.SweepDims {
		ext, err := out.Extent(dim)
		if err != nil {
			return nil, err
		}
		shape[i] = ext
	}
	out.Temporaries[spec.TempName] = Temporary{
		Name:     spec.TempName,
		Shape:    shape,
		AxisDims: append([]string(nil), spec.FetchDims...),
		Space:    SpaceShared,
	}
	for i, dim := range spec.FetchDims {
		if !out.HasDim(dim) {
			out.Dims[dim] = shape[i]
		}
	}

	fetch := Instruction{
		ID:        spec.InsnID,
		Tags:      NewSet(TagPrefetch),
		Within:    NewSet(append(append([]string(nil), spec.OuterDims...), spec.FetchDims...)...),
		Reads:     NewSet(spec.Var),
		Writes:    NewSet(spec.TempName),
		DependsOn: StringSet{},
	}
	out.Instructions = append(out.Instructions[:first:first],
		append([]Instruction{fetch}, out.Instructions[first:]...)...)

	// Re-match against the updated instruction list: insertion shifted
	// the indexes.
	consumers, err = MatchInstructions(out, spec.Within)
	if err != nil {
		return nil, err
	}
	for _, ci := range consumers {
		in := &out.Instructions[ci]
		if in.ID == spec.InsnID || !in.Reads.Has(spec.Var) {
			continue
		}
		in.Reads.Remove(spec.Var)
		in.Reads.Add(spec.TempName)
		in.DependsOn.Add(spec.InsnID)
	}
	return out, nil
}
