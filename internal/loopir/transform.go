package loopir

import "fmt"

// SplitDim replaces a loop dimension with an outer dimension of extent
// ceil(extent/factor) and an inner dimension of extent factor. Every
// instruction nested within the dimension is rewritten to nest within
// both halves. Empty outer/inner names default to name+"_outer" and
// name+"_inner".
func SplitDim(k *Kernel, name string, factor int, outer, inner string) (*Kernel, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("loopir: split factor for %q must be positive, got %d", name, factor)
	}
	ext, err := k.Extent(name)
	if err != nil {
		return nil, err
	}
	if outer == "" {
		outer = name + "_outer"
	}
	if inner == "" {
		inner = name + "_inner"
	}
	if k.HasDim(outer) || k.HasDim(inner) {
		return nil, fmt.Errorf("loopir: split of %q collides with existing dimension %q/%q", name, outer, inner)
	}

	out := k.Clone()
	delete(out.Dims, name)
	delete(out.DimTags, name)
	out.Dims[outer] = ceilDiv(ext, factor)
	out.Dims[inner] = factor
	for i := range out.Instructions {
		in := &out.Instructions[i]
		if in.Within.Has(name) {
			in.Within.Remove(name)
			in.Within.Add(outer, inner)
		}
	}
	out.LoopPriority = replaceInSlice(out.LoopPriority, name, outer, inner)
	return out, nil
}

// DuplicateDim gives the instructions selected by the match expression
// their own copy of a loop dimension, so later transforms can treat
// the copy independently. The original dimension keeps its other
// users.
func DuplicateDim(k *Kernel, name, within, newName string) (*Kernel, error) {
	ext, err := k.Extent(name)
	if err != nil {
		return nil, err
	}
	if k.HasDim(newName) {
		return nil, fmt.Errorf("loopir: duplicate of %q collides with existing dimension %q", name, newName)
	}
	idxs, err := MatchInstructions(k, within)
	if err != nil {
		return nil, err
	}

	out := k.Clone()
	out.Dims[newName] = ext
	for _, i := range idxs {
		in := &out.Instructions[i]
		if in.Within.Has(name) {
			in.Within.Remove(name)
			in.Within.Add(newName)
		}
	}
	return out, nil
}

// RenameDim renames a loop dimension everywhere it appears. When
// existingOK is set the target may already exist, provided the extents
// agree; the two loops are merged.
func RenameDim(k *Kernel, old, new string, existingOK bool) (*Kernel, error) {
	ext, err := k.Extent(old)
	if err != nil {
		return nil, err
	}
	if k.HasDim(new) {
		if !existingOK {
			return nil, fmt.Errorf("loopir: rename target %q already exists", new)
		}
		if k.Dims[new] != ext {
			return nil, fmt.Errorf("loopir: cannot merge %q (extent %d) into %q (extent %d)",
				old, ext, new, k.Dims[new])
		}
	}

	out := k.Clone()
	delete(out.Dims, old)
	delete(out.DimTags, old)
	out.Dims[new] = ext
	for i := range out.Instructions {
		in := &out.Instructions[i]
		if in.Within.Has(old) {
			in.Within.Remove(old)
			in.Within.Add(new)
		}
	}
	for name, tv := range out.Temporaries {
		for ai, dim := range tv.AxisDims {
			if dim == old {
				tv.AxisDims[ai] = new
				out.Temporaries[name] = tv
			}
		}
	}
	out.LoopPriority = replaceInSlice(out.LoopPriority, old, new)
	return out, nil
}

// JoinDims fuses several loop dimensions into a single one whose
// extent is the product of theirs. Instructions nested within all of
// the joined dimensions are rewritten; instructions within only a
// subset are an error.
func JoinDims(k *Kernel, names []string, newName string) (*Kernel, error) {
	ext := 1
	for _, name := range names {
		e, err := k.Extent(name)
		if err != nil {
			return nil, err
		}
		ext *= e
	}
	if k.HasDim(newName) {
		return nil, fmt.Errorf("loopir: join target %q already exists", newName)
	}

	out := k.Clone()
	for i := range out.Instructions {
		in := &out.Instructions[i]
		n := 0
		for _, name := range names {
			if in.Within.Has(name) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		if n != len(names) {
			return nil, fmt.Errorf("loopir: instruction %q nests within only part of joined dimensions %v", in.ID, names)
		}
		in.Within.Remove(names...)
		in.Within.Add(newName)
	}
	for _, name := range names {
		delete(out.Dims, name)
		delete(out.DimTags, name)
	}
	out.Dims[newName] = ext
	return out, nil
}

// TagDim binds a loop dimension to a hardware axis ("l.0", "l.1",
// "g.0") or marks it for unrolled sequential execution ("ilp").
func TagDim(k *Kernel, name, tag string) (*Kernel, error) {
	if !k.HasDim(name) {
		return nil, fmt.Errorf("loopir: unknown dimension %q", name)
	}
	out := k.Clone()
	out.DimTags[name] = tag
	return out, nil
}

// AddDimsToInstructions nests the selected instructions within an
// additional loop dimension.
func AddDimsToInstructions(k *Kernel, dim, within string) (*Kernel, error) {
	if !k.HasDim(dim) {
		return nil, fmt.Errorf("loopir: unknown dimension %q", dim)
	}
	idxs, err := MatchInstructions(k, within)
	if err != nil {
		return nil, err
	}
	out := k.Clone()
	for _, i := range idxs {
		out.Instructions[i].Within.Add(dim)
	}
	return out, nil
}

// PrivatizeTemps appends one storage axis per named temporary, ranging
// over the given loop dimension, giving each iteration of that
// dimension a private copy.
func PrivatizeTemps(k *Kernel, dim string, vars []string) (*Kernel, error) {
	ext, err := k.Extent(dim)
	if err != nil {
		return nil, err
	}
	out := k.Clone()
	for _, v := range vars {
		tv, ok := out.Temporaries[v]
		if !ok {
			return nil, fmt.Errorf("loopir: unknown temporary %q", v)
		}
		tv.Shape = append(tv.Shape, ext)
		tv.AxisDims = append(padAxisDims(tv.AxisDims, len(tv.Shape)-1), dim)
		out.Temporaries[v] = tv
	}
	return out, nil
}

// SetTempSpace moves the named temporaries to an address space.
func SetTempSpace(k *Kernel, vars []string, space AddressSpace) (*Kernel, error) {
	out := k.Clone()
	for _, v := range vars {
		tv, ok := out.Temporaries[v]
		if !ok {
			return nil, fmt.Errorf("loopir: unknown temporary %q", v)
		}
		tv.Space = space
		out.Temporaries[v] = tv
	}
	return out, nil
}

// RemoveAxis drops one storage axis of a temporary, making it scalar
// along that axis.
func RemoveAxis(k *Kernel, name string, axis int) (*Kernel, error) {
	tv, ok := k.Temporaries[name]
	if !ok {
		return nil, fmt.Errorf("loopir: unknown temporary %q", name)
	}
	if axis < 0 || axis >= len(tv.Shape) {
		return nil, fmt.Errorf("loopir: temporary %q has no axis %d", name, axis)
	}
	out := k.Clone()
	tv = out.Temporaries[name]
	tv.Shape = append(tv.Shape[:axis:axis], tv.Shape[axis+1:]...)
	if axis < len(tv.AxisDims) {
		tv.AxisDims = append(tv.AxisDims[:axis:axis], tv.AxisDims[axis+1:]...)
	}
	out.Temporaries[name] = tv
	return out, nil
}

// padAxisDims extends axis-dim bookkeeping with unnamed axes so that a
// new entry lands at the right position.
func padAxisDims(dims []string, want int) []string {
	for len(dims) < want {
		dims = append(dims, "")
	}
	return dims
}

func replaceInSlice(s []string, old string, repl ...string) []string {
	var out []string
	for _, v := range s {
		if v == old {
			out = append(out, repl...)
		} else {
			out = append(out, v)
		}
	}
	return out
}
