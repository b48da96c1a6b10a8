package loopir

import (
	"reflect"
	"testing"
)

func TestPromoteConstants(t *testing.T) {
	k := testKernel()
	k.Temporaries["a_mat"] = Temporary{
		Name: "a_mat", Shape: []int{2, 3},
		Initializer: []float64{1, 2, 3, 4, 5, 6},
		ReadOnly:    true,
	}
	out, promoted := PromoteConstants(k)

	if len(promoted) != 2 {
		t.Fatalf("promoted %d constants, want 2", len(promoted))
	}
	// Promotion order is sorted by name.
	if promoted[0].Name != "a_mat" || promoted[1].Name != "t_w" {
		t.Fatalf("promotion order: %s, %s", promoted[0].Name, promoted[1].Name)
	}
	if !reflect.DeepEqual(promoted[1].Data, []float64{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("promoted data = %v", promoted[1].Data)
	}

	// New args append after the declared ones, read-only.
	wantArgs := []string{"in", "out", "a_mat", "t_w"}
	var gotArgs []string
	for _, a := range out.Args {
		gotArgs = append(gotArgs, a.Name)
	}
	if !reflect.DeepEqual(gotArgs, wantArgs) {
		t.Fatalf("args = %v, want %v", gotArgs, wantArgs)
	}
	for _, a := range out.Args[2:] {
		if !a.ReadOnly {
			t.Errorf("promoted arg %q not read-only", a.Name)
		}
	}
	if _, ok := out.Temporaries["t_w"]; ok {
		t.Fatal("promoted temporary still present")
	}
	if _, ok := out.Temporaries["t_acc"]; !ok {
		t.Fatal("uninitialized temporary dropped")
	}
	if _, ok := k.Temporaries["t_w"]; !ok {
		t.Fatal("PromoteConstants mutated its input")
	}
}

func TestFlattenTemp(t *testing.T) {
	k := testKernel()
	k.Temporaries["t_mat"] = Temporary{
		Name: "t_mat", Shape: []int{3, 2}, AxisDims: []string{"b", ""},
	}
	out, err := FlattenTemp(k, "t_mat")
	if err != nil {
		t.Fatalf("FlattenTemp: %v", err)
	}
	tv := out.Temporaries["t_mat"]
	if !reflect.DeepEqual(tv.Shape, []int{6}) || tv.AxisDims != nil {
		t.Fatalf("flattened: shape %v axis dims %v", tv.Shape, tv.AxisDims)
	}
	if _, err := FlattenTemp(k, "missing"); err == nil {
		t.Error("unknown temporary accepted")
	}
}

func TestAbsorbTemporary(t *testing.T) {
	k := testKernel()
	k.Temporaries["t_small"] = Temporary{Name: "t_small", Shape: []int{4}}
	k.Temporaries["t_big"] = Temporary{Name: "t_big", Shape: []int{9}}
	k.Instructions = append(k.Instructions, Instruction{
		ID: "use", Tags: StringSet{}, Within: NewSet("c"),
		Reads: NewSet("t_big"), Writes: NewSet("out"), DependsOn: StringSet{},
	})
	out, err := AbsorbTemporary(k, "t_small", "t_big")
	if err != nil {
		t.Fatalf("AbsorbTemporary: %v", err)
	}
	if _, ok := out.Temporaries["t_big"]; ok {
		t.Fatal("absorbed temporary still present")
	}
	if got := out.Temporaries["t_small"].Shape; !reflect.DeepEqual(got, []int{9}) {
		t.Fatalf("storage not resized to larger footprint: %v", got)
	}
	use, _ := out.Instruction("use")
	if use.Reads.Has("t_big") || !use.Reads.Has("t_small") {
		t.Fatalf("reference not rewritten: %v", use.Reads.Sorted())
	}
}

func TestAbsorbRequiresFlattened(t *testing.T) {
	k := testKernel()
	k.Temporaries["t_mat"] = Temporary{Name: "t_mat", Shape: []int{3, 2}}
	k.Temporaries["t_flat"] = Temporary{Name: "t_flat", Shape: []int{4}}
	if _, err := AbsorbTemporary(k, "t_flat", "t_mat"); err == nil {
		t.Error("multi-axis source accepted")
	}
	if _, err := AbsorbTemporary(k, "t_mat", "t_flat"); err == nil {
		t.Error("multi-axis destination accepted")
	}
	if _, err := AbsorbTemporary(k, "t_flat", "missing"); err == nil {
		t.Error("unknown temporary accepted")
	}
}

func TestAliasTemporaries(t *testing.T) {
	k := testKernel()
	k.Temporaries["s_a"] = Temporary{Name: "s_a", Shape: []int{10}, Space: SpaceShared}
	k.Temporaries["s_b"] = Temporary{Name: "s_b", Shape: []int{4}, Space: SpaceShared}
	k.Temporaries["s_c"] = Temporary{Name: "s_c", Shape: []int{6}, Space: SpaceShared}
	out, err := AliasTemporaries(k, []string{"s_a", "s_b", "s_c"})
	if err != nil {
		t.Fatalf("AliasTemporaries: %v", err)
	}
	if out.Temporaries["s_a"].Base != "" {
		t.Fatalf("base temporary aliased to %q", out.Temporaries["s_a"].Base)
	}
	if out.Temporaries["s_b"].Base != "s_a" || out.Temporaries["s_c"].Base != "s_a" {
		t.Fatal("members not rebased onto the first name")
	}
	if _, err := AliasTemporaries(k, []string{"s_a"}); err == nil {
		t.Error("single-member alias accepted")
	}
	if _, err := AliasTemporaries(k, []string{"s_a", "missing"}); err == nil {
		t.Error("unknown temporary accepted")
	}
}

func TestSharedFootprintCountsAliasOnce(t *testing.T) {
	k := testKernel()
	k.Temporaries["s_a"] = Temporary{Name: "s_a", Shape: []int{10}, Space: SpaceShared}
	k.Temporaries["s_b"] = Temporary{Name: "s_b", Shape: []int{4}, Space: SpaceShared, Base: "s_a"}
	k.Temporaries["s_c"] = Temporary{Name: "s_c", Shape: []int{7}, Space: SpaceShared}
	// t_acc is private and never counts.
	if got := k.SharedFootprint(); got != 17 {
		t.Fatalf("SharedFootprint = %d, want 17", got)
	}
}
