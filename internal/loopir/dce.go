package loopir

// RemoveNoOps drops instructions marked as no-ops.
func RemoveNoOps(k *Kernel) *Kernel {
	ids := StringSet{}
	for _, in := range k.Instructions {
		if in.NoOp {
			ids.Add(in.ID)
		}
	}
	if len(ids) == 0 {
		return k.Clone()
	}
	return RemoveInstructions(k, ids)
}

// RemoveDeadCode repeatedly deletes instructions whose only effect is
// writing temporaries nothing ever reads. Writes to kernel arguments
// are externally visible and keep an instruction alive.
func RemoveDeadCode(k *Kernel) *Kernel {
	out := k.Clone()
	args := out.ArgNames()
	for {
		read := out.ReadVars()
		dead := StringSet{}
		for _, in := range out.Instructions {
			if len(in.Writes) == 0 {
				continue
			}
			live := false
			for v := range in.Writes {
				if args.Has(v) || read.Has(v) {
					live = true
					break
				}
			}
			if !live {
				dead.Add(in.ID)
			}
		}
		if len(dead) == 0 {
			return out
		}
		out = RemoveInstructions(out, dead)
	}
}

// RemoveUnusedAxes drops storage axes whose recorded loop dimension is
// gone from the kernel and from every accessing instruction. Axes with
// no recorded dimension are left alone.
func RemoveUnusedAxes(k *Kernel) *Kernel {
	out := k.Clone()
	for _, name := range sortedTempNames(out) {
		tv := out.Temporaries[name]
		if len(tv.AxisDims) == 0 {
			continue
		}
		accessed := StringSet{}
		for _, in := range out.Instructions {
			if in.Reads.Has(name) || in.Writes.Has(name) {
				for d := range in.Within {
					accessed.Add(d)
				}
			}
		}
		var shape []int
		var axisDims []string
		for ai, dim := range tv.AxisDims {
			if dim != "" && !out.HasDim(dim) && !accessed.Has(dim) {
				continue
			}
			shape = append(shape, tv.Shape[ai])
			axisDims = append(axisDims, dim)
		}
		// Axes beyond the bookkept prefix are kept as-is.
		shape = append(shape, tv.Shape[len(tv.AxisDims):]...)
		tv.Shape = shape
		tv.AxisDims = axisDims
		out.Temporaries[name] = tv
	}
	return out
}

// RemoveUnusedDims deletes loop dimensions no instruction nests
// within, together with their hardware-axis tags and any loop-priority
// entries naming them.
func RemoveUnusedDims(k *Kernel) *Kernel {
	used := StringSet{}
	for _, in := range k.Instructions {
		for d := range in.Within {
			used.Add(d)
		}
	}
	out := k.Clone()
	for name := range out.Dims {
		if !used.Has(name) {
			delete(out.Dims, name)
			delete(out.DimTags, name)
			out.LoopPriority = replaceInSlice(out.LoopPriority, name)
		}
	}
	return out
}
