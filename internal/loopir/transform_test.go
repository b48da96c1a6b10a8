package loopir

import (
	"reflect"
	"testing"
)

func TestSplitDim(t *testing.T) {
	k := testKernel()
	out, err := SplitDim(k, "c", 3, "", "")
	if err != nil {
		t.Fatalf("SplitDim: %v", err)
	}
	if out.HasDim("c") {
		t.Fatal("split dimension still present")
	}
	if got := out.Dims["c_outer"]; got != 3 {
		t.Errorf("c_outer extent = %d, want ceil(8/3) = 3", got)
	}
	if got := out.Dims["c_inner"]; got != 3 {
		t.Errorf("c_inner extent = %d, want 3", got)
	}
	for _, in := range out.Instructions {
		if in.Within.Has("c") || !in.Within.ContainsAll("c_outer", "c_inner") {
			t.Errorf("instruction %q not rewritten: %v", in.ID, in.Within.Sorted())
		}
	}
	// The input kernel stays untouched.
	if !k.HasDim("c") || k.HasDim("c_outer") {
		t.Fatal("SplitDim mutated its input")
	}
}

func TestSplitDimErrors(t *testing.T) {
	k := testKernel()
	if _, err := SplitDim(k, "c", 0, "", ""); err == nil {
		t.Error("zero factor accepted")
	}
	if _, err := SplitDim(k, "missing", 2, "", ""); err == nil {
		t.Error("unknown dimension accepted")
	}
	if _, err := SplitDim(k, "c", 2, "q", ""); err == nil {
		t.Error("collision with existing dimension accepted")
	}
}

func TestDuplicateDim(t *testing.T) {
	k := testKernel()
	out, err := DuplicateDim(k, "b", "tag:gather", "b_g")
	if err != nil {
		t.Fatalf("DuplicateDim: %v", err)
	}
	if got := out.Dims["b_g"]; got != 3 {
		t.Fatalf("b_g extent = %d, want 3", got)
	}
	load, _ := out.Instruction("load")
	if !load.Within.Has("b_g") || load.Within.Has("b") {
		t.Errorf("load not moved to copy: %v", load.Within.Sorted())
	}
	accum, _ := out.Instruction("accum")
	if !accum.Within.Has("b") {
		t.Errorf("accum lost the original dimension: %v", accum.Within.Sorted())
	}
	if _, err := DuplicateDim(k, "b", "tag:gather", "q"); err == nil {
		t.Error("collision with existing dimension accepted")
	}
}

func TestRenameDim(t *testing.T) {
	k := testKernel()
	out, err := RenameDim(k, "b", "bb", false)
	if err != nil {
		t.Fatalf("RenameDim: %v", err)
	}
	if out.HasDim("b") || out.Dims["bb"] != 3 {
		t.Fatalf("dims after rename: %v", out.Dims)
	}
	if dims := out.Temporaries["t_acc"].AxisDims; !reflect.DeepEqual(dims, []string{"bb"}) {
		t.Errorf("axis dims not rewritten: %v", dims)
	}
	for _, in := range out.Instructions {
		if in.Within.Has("b") {
			t.Errorf("instruction %q still within old name", in.ID)
		}
	}
}

func TestRenameDimMerge(t *testing.T) {
	k := testKernel()
	dup, err := DuplicateDim(k, "b", "tag:gather", "b_g")
	if err != nil {
		t.Fatalf("DuplicateDim: %v", err)
	}
	merged, err := RenameDim(dup, "b_g", "b", true)
	if err != nil {
		t.Fatalf("merge rename: %v", err)
	}
	load, _ := merged.Instruction("load")
	if !load.Within.Has("b") || merged.HasDim("b_g") {
		t.Fatal("merge did not fold the copy back")
	}
	// Without the merge flag an existing target is an error, and a
	// merge across unequal extents is always one.
	if _, err := RenameDim(dup, "b_g", "b", false); err == nil {
		t.Error("rename onto existing dimension accepted")
	}
	if _, err := RenameDim(k, "q", "c", true); err == nil {
		t.Error("merge of unequal extents accepted")
	}
}

func TestJoinDims(t *testing.T) {
	k := testKernel()
	out, err := JoinDims(k, []string{"c", "b"}, "cb")
	if err != nil {
		t.Fatalf("JoinDims: %v", err)
	}
	if got := out.Dims["cb"]; got != 24 {
		t.Fatalf("joined extent = %d, want 24", got)
	}
	if out.HasDim("c") || out.HasDim("b") {
		t.Fatal("joined dimensions still present")
	}
	for _, in := range out.Instructions {
		if !in.Within.Has("cb") {
			t.Errorf("instruction %q not rewritten: %v", in.ID, in.Within.Sorted())
		}
	}
	// load nests within b but not q, so this join must refuse.
	if _, err := JoinDims(k, []string{"q", "b"}, "qb"); err == nil {
		t.Error("partial nesting accepted")
	}
	if _, err := JoinDims(k, []string{"c", "b"}, "q"); err == nil {
		t.Error("join target collision accepted")
	}
}

func TestTagDim(t *testing.T) {
	k := testKernel()
	out, err := TagDim(k, "b", "l.0")
	if err != nil {
		t.Fatalf("TagDim: %v", err)
	}
	if out.DimTags["b"] != "l.0" {
		t.Fatalf("tags = %v", out.DimTags)
	}
	if got := out.HardwareExtent("l.0"); got != 3 {
		t.Fatalf("HardwareExtent = %d, want 3", got)
	}
	if got := out.HardwareExtent("l.1"); got != 1 {
		t.Fatalf("unbound axis extent = %d, want 1", got)
	}
	if _, err := TagDim(k, "missing", "l.0"); err == nil {
		t.Error("unknown dimension accepted")
	}
}

func TestAddDimsToInstructions(t *testing.T) {
	k := testKernel()
	out, err := AddDimsToInstructions(k, "q", "id:load")
	if err != nil {
		t.Fatalf("AddDimsToInstructions: %v", err)
	}
	load, _ := out.Instruction("load")
	if !load.Within.Has("q") {
		t.Fatalf("load not nested: %v", load.Within.Sorted())
	}
	store, _ := out.Instruction("store")
	if store.Within.Has("q") {
		t.Fatal("unselected instruction rewritten")
	}
}

func TestPrivatizeTemps(t *testing.T) {
	k := testKernel()
	out, err := PrivatizeTemps(k, "c", []string{"t_acc"})
	if err != nil {
		t.Fatalf("PrivatizeTemps: %v", err)
	}
	tv := out.Temporaries["t_acc"]
	if !reflect.DeepEqual(tv.Shape, []int{3, 8}) {
		t.Errorf("shape = %v, want [3 8]", tv.Shape)
	}
	if !reflect.DeepEqual(tv.AxisDims, []string{"b", "c"}) {
		t.Errorf("axis dims = %v, want [b c]", tv.AxisDims)
	}
	if _, err := PrivatizeTemps(k, "c", []string{"missing"}); err == nil {
		t.Error("unknown temporary accepted")
	}
}

func TestSetTempSpace(t *testing.T) {
	k := testKernel()
	out, err := SetTempSpace(k, []string{"t_acc"}, SpaceShared)
	if err != nil {
		t.Fatalf("SetTempSpace: %v", err)
	}
	if out.Temporaries["t_acc"].Space != SpaceShared {
		t.Fatal("space not updated")
	}
	if k.Temporaries["t_acc"].Space != SpacePrivate {
		t.Fatal("SetTempSpace mutated its input")
	}
}

func TestRemoveAxis(t *testing.T) {
	k := testKernel()
	priv, err := PrivatizeTemps(k, "c", []string{"t_acc"})
	if err != nil {
		t.Fatalf("PrivatizeTemps: %v", err)
	}
	out, err := RemoveAxis(priv, "t_acc", 0)
	if err != nil {
		t.Fatalf("RemoveAxis: %v", err)
	}
	tv := out.Temporaries["t_acc"]
	if !reflect.DeepEqual(tv.Shape, []int{8}) || !reflect.DeepEqual(tv.AxisDims, []string{"c"}) {
		t.Fatalf("after removal: shape %v axis dims %v", tv.Shape, tv.AxisDims)
	}
	if _, err := RemoveAxis(k, "t_acc", 5); err == nil {
		t.Error("out-of-range axis accepted")
	}
}

func TestCloneIsDeep(t *testing.T) {
	k := testKernel()
	c := k.Clone()
	c.Dims["c"] = 99
	c.Instructions[0].Within.Add("zz")
	tv := c.Temporaries["t_acc"]
	tv.Shape[0] = 7
	if k.Dims["c"] != 8 {
		t.Error("clone shares the dimension map")
	}
	if k.Instructions[0].Within.Has("zz") {
		t.Error("clone shares instruction sets")
	}
	if k.Temporaries["t_acc"].Shape[0] != 3 {
		t.Error("clone shares temporary shapes")
	}
}
