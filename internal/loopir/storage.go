package loopir

import "fmt"

// ConstantArg is a compile-time constant array promoted out of the
// kernel body. The caller uploads it once and passes the device
// buffer to every launch.
type ConstantArg struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// PromoteConstants turns every temporary that carries a compile-time
// initializer into a read-only global kernel argument and returns the
// promoted arrays sorted by name.
func PromoteConstants(k *Kernel) (*Kernel, []ConstantArg) {
	out := k.Clone()
	var promoted []ConstantArg
	for _, name := range sortedTempNames(out) {
		tv := out.Temporaries[name]
		if tv.Initializer == nil {
			continue
		}
		out.Args = append(out.Args, Arg{
			Name:     tv.Name,
			Shape:    append([]int(nil), tv.Shape...),
			ReadOnly: true,
		})
		promoted = append(promoted, ConstantArg{
			Name:  tv.Name,
			Shape: append([]int(nil), tv.Shape...),
			Data:  append([]float64(nil), tv.Initializer...),
		})
		delete(out.Temporaries, name)
	}
	return out, promoted
}

// FlattenTemp collapses a temporary to a one-dimensional buffer of the
// same element count.
func FlattenTemp(k *Kernel, name string) (*Kernel, error) {
	tv, ok := k.Temporaries[name]
	if !ok {
		return nil, fmt.Errorf("loopir: unknown temporary %q", name)
	}
	out := k.Clone()
	tv = out.Temporaries[name]
	tv.Shape = []int{tv.Size()}
	tv.AxisDims = nil
	out.Temporaries[name] = tv
	return out, nil
}

// AbsorbTemporary merges the storage of `from` into `into`: `into` is
// resized to the larger of the two flat footprints, every reference to
// `from` is rewritten, and `from` is removed. Both temporaries must be
// flattened first. The caller is responsible for having established
// that the two live ranges never overlap.
func AbsorbTemporary(k *Kernel, into, from string) (*Kernel, error) {
	dst, ok := k.Temporaries[into]
	if !ok {
		return nil, fmt.Errorf("loopir: unknown temporary %q", into)
	}
	src, ok := k.Temporaries[from]
	if !ok {
		return nil, fmt.Errorf("loopir: unknown temporary %q", from)
	}
	if len(dst.Shape) != 1 || len(src.Shape) != 1 {
		return nil, fmt.Errorf("loopir: absorb requires flattened temporaries (%q, %q)", into, from)
	}
	out := k.Clone()
	dst = out.Temporaries[into]
	if src.Size() > dst.Size() {
		dst.Shape = []int{src.Size()}
	}
	out.Temporaries[into] = dst
	delete(out.Temporaries, from)
	for i := range out.Instructions {
		in := &out.Instructions[i]
		if in.Reads.Has(from) {
			in.Reads.Remove(from)
			in.Reads.Add(into)
		}
		if in.Writes.Has(from) {
			in.Writes.Remove(from)
			in.Writes.Add(into)
		}
	}
	return out, nil
}

// AliasTemporaries makes the named temporaries share one storage base
// (the first name) without merging them. The buffers remain distinct
// values with mutually exclusive live ranges enforced by the caller's
// dependency edges.
func AliasTemporaries(k *Kernel, names []string) (*Kernel, error) {
	if len(names) < 2 {
		return nil, fmt.Errorf("loopir: aliasing needs at least two temporaries, got %d", len(names))
	}
	out := k.Clone()
	base := names[0]
	for _, name := range names {
		tv, ok := out.Temporaries[name]
		if !ok {
			return nil, fmt.Errorf("loopir: unknown temporary %q", name)
		}
		if name != base {
			tv.Base = base
		}
		out.Temporaries[name] = tv
	}
	return out, nil
}
