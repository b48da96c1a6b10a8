package loopir

import (
	"bytes"
	"testing"
)

func TestEncodeDeterministic(t *testing.T) {
	k := testKernel()
	first, err := Encode(k)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := Encode(k.Clone())
	if err != nil {
		t.Fatalf("Encode clone: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("equal kernels encode to different bytes")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	k := testKernel()
	data, err := Encode(k)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	again, err := Encode(back)
	if err != nil {
		t.Fatalf("re-Encode: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Fatal("round trip changed the encoding")
	}
}

func TestDecodeFillsDefaults(t *testing.T) {
	k, err := Decode([]byte(`{"name":"bare","instructions":[{"id":"a"}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if k.Dims == nil || k.DimTags == nil || k.Temporaries == nil {
		t.Fatal("nil maps after decode")
	}
	in := k.Instructions[0]
	if in.Tags == nil || in.Within == nil || in.Reads == nil || in.Writes == nil || in.DependsOn == nil {
		t.Fatal("nil instruction sets after decode")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte(`{"dims":`)); err == nil {
		t.Fatal("truncated input accepted")
	}
}
