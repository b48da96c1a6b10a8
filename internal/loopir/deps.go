package loopir

// AddDependency makes every instruction selected by target depend on
// every instruction selected by dep. Self-dependencies are skipped.
func AddDependency(k *Kernel, target, dep string) (*Kernel, error) {
	targetIdx, err := MatchInstructions(k, target)
	if err != nil {
		return nil, err
	}
	depIdx, err := MatchInstructions(k, dep)
	if err != nil {
		return nil, err
	}
	out := k.Clone()
	for _, ti := range targetIdx {
		in := &out.Instructions[ti]
		for _, di := range depIdx {
			if id := out.Instructions[di].ID; id != in.ID {
				in.DependsOn.Add(id)
			}
		}
	}
	return out, nil
}

// RemoveDependency deletes any dependency edge from an instruction
// selected by target onto an instruction selected by dep.
func RemoveDependency(k *Kernel, target, dep string) (*Kernel, error) {
	targetIdx, err := MatchInstructions(k, target)
	if err != nil {
		return nil, err
	}
	depIdx, err := MatchInstructions(k, dep)
	if err != nil {
		return nil, err
	}
	depIDs := StringSet{}
	for _, di := range depIdx {
		depIDs.Add(k.Instructions[di].ID)
	}
	out := k.Clone()
	for _, ti := range targetIdx {
		in := &out.Instructions[ti]
		for id := range depIDs {
			in.DependsOn.Remove(id)
		}
	}
	return out, nil
}

// RemoveUnnecessaryDeps drops dependency edges that no longer point at
// an existing instruction, along with self-edges.
func RemoveUnnecessaryDeps(k *Kernel) *Kernel {
	ids := StringSet{}
	for _, in := range k.Instructions {
		ids.Add(in.ID)
	}
	out := k.Clone()
	for i := range out.Instructions {
		in := &out.Instructions[i]
		for dep := range in.DependsOn.Clone() {
			if dep == in.ID || !ids.Has(dep) {
				in.DependsOn.Remove(dep)
			}
		}
	}
	return out
}

// RemoveInstructions deletes the instructions with the given IDs and
// scrubs dangling dependency edges.
func RemoveInstructions(k *Kernel, ids StringSet) *Kernel {
	out := k.Clone()
	kept := out.Instructions[:0]
	for _, in := range out.Instructions {
		if !ids.Has(in.ID) {
			kept = append(kept, in)
		}
	}
	out.Instructions = kept
	return RemoveUnnecessaryDeps(out)
}
