package loopir

import (
	"reflect"
	"testing"
)

func TestAddPrefetch(t *testing.T) {
	k := testKernel()
	out, err := AddPrefetch(k, PrefetchSpec{
		Var:       "t_w",
		TempName:  "s_w",
		InsnID:    "fetch_w",
		SweepDims: []string{"q"},
		FetchDims: []string{"i_f"},
		OuterDims: []string{"c"},
		Within:    "tag:quad",
	})
	if err != nil {
		t.Fatalf("AddPrefetch: %v", err)
	}

	tv, ok := out.Temporaries["s_w"]
	if !ok {
		t.Fatal("scratch temporary missing")
	}
	if !reflect.DeepEqual(tv.Shape, []int{6}) || tv.Space != SpaceShared {
		t.Fatalf("scratch: shape %v space %v", tv.Shape, tv.Space)
	}
	if got := out.Dims["i_f"]; got != 6 {
		t.Fatalf("fetch dimension extent = %d, want 6", got)
	}

	// The fetch lands directly ahead of its first consumer.
	if got := instructionIDs(out); !reflect.DeepEqual(got, []string{"load", "fetch_w", "accum", "store"}) {
		t.Fatalf("instructions = %v", got)
	}
	fetch, _ := out.Instruction("fetch_w")
	if !fetch.Tags.Has(TagPrefetch) {
		t.Error("fetch not tagged")
	}
	if !fetch.Within.ContainsAll("c", "i_f") || len(fetch.Within) != 2 {
		t.Errorf("fetch nesting = %v", fetch.Within.Sorted())
	}
	if !fetch.Reads.Has("t_w") || !fetch.Writes.Has("s_w") {
		t.Errorf("fetch accesses: reads %v writes %v", fetch.Reads.Sorted(), fetch.Writes.Sorted())
	}

	accum, _ := out.Instruction("accum")
	if accum.Reads.Has("t_w") || !accum.Reads.Has("s_w") {
		t.Errorf("consumer not redirected: %v", accum.Reads.Sorted())
	}
	if !accum.DependsOn.Has("fetch_w") {
		t.Error("consumer missing dependency on fetch")
	}
}

func TestAddPrefetchErrors(t *testing.T) {
	k := testKernel()
	base := PrefetchSpec{
		Var:       "t_w",
		TempName:  "s_w",
		InsnID:    "fetch_w",
		SweepDims: []string{"q"},
		FetchDims: []string{"i_f"},
		Within:    "tag:quad",
	}

	spec := base
	spec.FetchDims = []string{"i_f", "j_f"}
	if _, err := AddPrefetch(k, spec); err == nil {
		t.Error("fetch/sweep dimension mismatch accepted")
	}

	spec = base
	spec.TempName = "t_acc"
	if _, err := AddPrefetch(k, spec); err == nil {
		t.Error("scratch name collision accepted")
	}

	spec = base
	spec.Within = "tag:scatter"
	if _, err := AddPrefetch(k, spec); err == nil {
		t.Error("prefetch with no consuming reader accepted")
	}

	spec = base
	spec.SweepDims = []string{"missing"}
	if _, err := AddPrefetch(k, spec); err == nil {
		t.Error("unknown sweep dimension accepted")
	}
}
