// Package loopir holds the structural loop-kernel representation the
// tiling pipeline rewrites: named loop dimensions with integer
// extents, instructions carrying stage tags and read/write dependency
// sets over named variables, and temporaries with shape, initializer
// and address space. Every transformation in this package is
// functional: the input kernel is never mutated, callers always get a
// fresh value back.
package loopir

import (
	"fmt"
	"sort"
)

// AddressSpace classifies where a temporary lives on the device.
type AddressSpace int

const (
	// SpacePrivate is per-thread register/stack storage.
	SpacePrivate AddressSpace = iota
	// SpaceShared is block-level fast scratch memory.
	SpaceShared
	// SpaceGlobal is device global memory.
	SpaceGlobal
)

func (a AddressSpace) String() string {
	switch a {
	case SpacePrivate:
		return "private"
	case SpaceShared:
		return "shared"
	case SpaceGlobal:
		return "global"
	}
	return fmt.Sprintf("addressspace(%d)", int(a))
}

// Arg is a kernel argument backed by device global memory.
type Arg struct {
	Name     string `json:"name"`
	Shape    []int  `json:"shape"`
	ReadOnly bool   `json:"read_only"`
}

// Temporary is a named scratch variable. A non-nil Initializer marks a
// compile-time constant array. AxisDims optionally records, per shape
// axis, the loop dimension the axis was privatized over; transforms
// that reason about storage reuse consult it. Base, when set, names
// another temporary whose storage this one aliases.
type Temporary struct {
	Name        string       `json:"name"`
	Shape       []int        `json:"shape"`
	AxisDims    []string     `json:"axis_dims,omitempty"`
	Space       AddressSpace `json:"space"`
	Initializer []float64    `json:"initializer,omitempty"`
	ReadOnly    bool         `json:"read_only,omitempty"`
	Base        string       `json:"base,omitempty"`
}

// Size returns the flat element count of the temporary.
func (t Temporary) Size() int {
	n := 1
	for _, s := range t.Shape {
		n *= s
	}
	return n
}

// Instruction is one statement of the kernel. Within lists the loop
// dimensions the instruction nests inside; Reads and Writes hold
// variable names (temporaries or arguments); DependsOn holds the IDs
// of instructions that must complete first.
type Instruction struct {
	ID        string    `json:"id"`
	Tags      StringSet `json:"tags"`
	Within    StringSet `json:"within"`
	Reads     StringSet `json:"reads"`
	Writes    StringSet `json:"writes"`
	DependsOn StringSet `json:"depends_on"`
	NoOp      bool      `json:"noop,omitempty"`
}

func (in Instruction) clone() Instruction {
	out := in
	out.Tags = in.Tags.Clone()
	out.Within = in.Within.Clone()
	out.Reads = in.Reads.Clone()
	out.Writes = in.Writes.Clone()
	out.DependsOn = in.DependsOn.Clone()
	return out
}

// Kernel is the transformable loop-kernel value. DimTags maps a loop
// dimension to the hardware axis it is bound to ("l.0", "l.1", "g.0",
// "ilp"). LoopPriority carries global ordering hints; the pipeline
// clears it at the end.
type Kernel struct {
	Name         string               `json:"name"`
	Dims         map[string]int       `json:"dims"`
	DimTags      map[string]string    `json:"dim_tags,omitempty"`
	Instructions []Instruction        `json:"instructions"`
	Temporaries  map[string]Temporary `json:"temporaries"`
	Args         []Arg                `json:"args"`
	LoopPriority []string             `json:"loop_priority,omitempty"`
}

// Clone deep-copies the kernel.
func (k *Kernel) Clone() *Kernel {
	out := &Kernel{
		Name:         k.Name,
		Dims:         make(map[string]int, len(k.Dims)),
		DimTags:      make(map[string]string, len(k.DimTags)),
		Instructions: make([]Instruction, len(k.Instructions)),
		Temporaries:  make(map[string]Temporary, len(k.Temporaries)),
		Args:         make([]Arg, len(k.Args)),
		LoopPriority: append([]string(nil), k.LoopPriority...),
	}
	for name, ext := range k.Dims {
		out.Dims[name] = ext
	}
	for name, tag := range k.DimTags {
		out.DimTags[name] = tag
	}
	for i, in := range k.Instructions {
		out.Instructions[i] = in.clone()
	}
	for name, tv := range k.Temporaries {
		tv.Shape = append([]int(nil), tv.Shape...)
		tv.AxisDims = append([]string(nil), tv.AxisDims...)
		tv.Initializer = append([]float64(nil), tv.Initializer...)
		out.Temporaries[name] = tv
	}
	for i, a := range k.Args {
		a.Shape = append([]int(nil), a.Shape...)
		out.Args[i] = a
	}
	return out
}

// HasDim reports whether the named loop dimension exists.
func (k *Kernel) HasDim(name string) bool {
	_, ok := k.Dims[name]
	return ok
}

// Extent returns the extent of a loop dimension.
func (k *Kernel) Extent(name string) (int, error) {
	ext, ok := k.Dims[name]
	if !ok {
		return 0, fmt.Errorf("loopir: unknown dimension %q", name)
	}
	return ext, nil
}

// Instruction returns the instruction with the given ID.
func (k *Kernel) Instruction(id string) (*Instruction, bool) {
	for i := range k.Instructions {
		if k.Instructions[i].ID == id {
			return &k.Instructions[i], true
		}
	}
	return nil, false
}

// ArgNames returns the set of argument names.
func (k *Kernel) ArgNames() StringSet {
	s := StringSet{}
	for _, a := range k.Args {
		s.Add(a.Name)
	}
	return s
}

// WrittenVars returns every variable written by any instruction.
func (k *Kernel) WrittenVars() StringSet {
	s := StringSet{}
	for _, in := range k.Instructions {
		for v := range in.Writes {
			s.Add(v)
		}
	}
	return s
}

// ReadVars returns every variable read by any instruction.
func (k *Kernel) ReadVars() StringSet {
	s := StringSet{}
	for _, in := range k.Instructions {
		for v := range in.Reads {
			s.Add(v)
		}
	}
	return s
}

// WrittenArgs returns the kernel arguments written during execution.
func (k *Kernel) WrittenArgs() StringSet {
	written := k.WrittenVars()
	out := StringSet{}
	for _, a := range k.Args {
		if written.Has(a.Name) {
			out.Add(a.Name)
		}
	}
	return out
}

// DimsWithTag returns the loop dimensions bound to a hardware axis
// tag, sorted by name.
func (k *Kernel) DimsWithTag(tag string) []string {
	var out []string
	for name, t := range k.DimTags {
		if t == tag {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// HardwareExtent returns the largest extent among the dimensions bound
// to the given hardware axis, or 1 when none is bound.
func (k *Kernel) HardwareExtent(tag string) int {
	ext := 1
	for _, name := range k.DimsWithTag(tag) {
		if e := k.Dims[name]; e > ext {
			ext = e
		}
	}
	return ext
}

// SharedFootprint returns the total element count of shared-space
// temporaries, counting each aliased storage base once.
func (k *Kernel) SharedFootprint() int {
	seen := StringSet{}
	total := 0
	for _, name := range sortedTempNames(k) {
		tv := k.Temporaries[name]
		if tv.Space != SpaceShared {
			continue
		}
		base := tv.Name
		if tv.Base != "" {
			base = tv.Base
		}
		if seen.Has(base) {
			continue
		}
		seen.Add(base)
		total += tv.Size()
	}
	return total
}

func sortedTempNames(k *Kernel) []string {
	names := make([]string, 0, len(k.Temporaries))
	for name := range k.Temporaries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
