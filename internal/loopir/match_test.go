package loopir

import (
	"reflect"
	"testing"
)

// testKernel is the shared fixture for the transformation tests: a
// three-instruction gather/accumulate/scatter kernel over a cell loop.
func testKernel() *Kernel {
	return &Kernel{
		Name:    "stencil",
		Dims:    map[string]int{"c": 8, "q": 6, "b": 3},
		DimTags: map[string]string{},
		Temporaries: map[string]Temporary{
			"t_acc": {Name: "t_acc", Shape: []int{3}, AxisDims: []string{"b"}},
			"t_w": {
				Name: "t_w", Shape: []int{6},
				Initializer: []float64{1, 2, 3, 4, 5, 6},
				ReadOnly:    true,
			},
		},
		Args: []Arg{
			{Name: "in", Shape: []int{3}, ReadOnly: true},
			{Name: "out", Shape: []int{3}},
		},
		Instructions: []Instruction{
			{
				ID: "load", Tags: NewSet("gather"), Within: NewSet("c", "b"),
				Reads: NewSet("in"), Writes: NewSet("t_acc"), DependsOn: StringSet{},
			},
			{
				ID: "accum", Tags: NewSet("quad"), Within: NewSet("c", "q", "b"),
				Reads: NewSet("t_acc", "t_w"), Writes: NewSet("t_acc"), DependsOn: NewSet("load"),
			},
			{
				ID: "store", Tags: NewSet("scatter"), Within: NewSet("c", "b"),
				Reads: NewSet("t_acc"), Writes: NewSet("out"), DependsOn: NewSet("accum"),
			},
		},
	}
}

func matchIDs(t *testing.T, k *Kernel, expr string) []string {
	t.Helper()
	idxs, err := MatchInstructions(k, expr)
	if err != nil {
		t.Fatalf("MatchInstructions(%q): %v", expr, err)
	}
	var ids []string
	for _, idx := range idxs {
		ids = append(ids, k.Instructions[idx].ID)
	}
	return ids
}

func TestMatchAtoms(t *testing.T) {
	k := testKernel()
	cases := []struct {
		expr string
		want []string
	}{
		{"tag:quad", []string{"accum"}},
		{"id:store", []string{"store"}},
		{"id:nosuch", nil},
		{"writes:t_acc", []string{"load", "accum"}},
		{"reads:t_w", []string{"accum"}},
	}
	for _, c := range cases {
		if got := matchIDs(t, k, c.expr); !reflect.DeepEqual(got, c.want) {
			t.Errorf("match %q = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestMatchIDPrefix(t *testing.T) {
	k := testKernel()
	got := matchIDs(t, k, "id:a*")
	if !reflect.DeepEqual(got, []string{"accum"}) {
		t.Fatalf("prefix match = %v", got)
	}
	// A bare * matches everything.
	got = matchIDs(t, k, "id:*")
	if len(got) != 3 {
		t.Fatalf("wildcard matched %v", got)
	}
}

func TestMatchAndOr(t *testing.T) {
	k := testKernel()
	got := matchIDs(t, k, "writes:t_acc and reads:t_acc")
	if !reflect.DeepEqual(got, []string{"accum"}) {
		t.Fatalf("and match = %v", got)
	}
	got = matchIDs(t, k, "tag:gather or tag:scatter")
	if !reflect.DeepEqual(got, []string{"load", "store"}) {
		t.Fatalf("or match = %v", got)
	}
	got = matchIDs(t, k, "tag:quad or writes:out and reads:t_acc")
	if !reflect.DeepEqual(got, []string{"accum", "store"}) {
		t.Fatalf("mixed match = %v", got)
	}
}

func TestMatchErrors(t *testing.T) {
	k := testKernel()
	if _, err := MatchInstructions(k, "bogus"); err == nil {
		t.Error("atom without colon accepted")
	}
	if _, err := MatchInstructions(k, "size:3"); err == nil {
		t.Error("unknown atom kind accepted")
	}
	if _, err := MatchInstructions(k, "tag:quad or bogus"); err == nil {
		t.Error("malformed group accepted")
	}
}
