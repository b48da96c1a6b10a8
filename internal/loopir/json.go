package loopir

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Encode serializes a kernel. Map keys and set elements are emitted in
// sorted order, so identical kernel values produce identical bytes.
func Encode(k *Kernel) ([]byte, error) {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode kernel %q: %w", k.Name, err)
	}
	return data, nil
}

// Decode parses a kernel produced by Encode.
func Decode(data []byte) (*Kernel, error) {
	var k Kernel
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("decode kernel: %w", err)
	}
	if k.Dims == nil {
		k.Dims = map[string]int{}
	}
	if k.DimTags == nil {
		k.DimTags = map[string]string{}
	}
	if k.Temporaries == nil {
		k.Temporaries = map[string]Temporary{}
	}
	for i := range k.Instructions {
		in := &k.Instructions[i]
		if in.Tags == nil {
			in.Tags = StringSet{}
		}
		if in.Within == nil {
			in.Within = StringSet{}
		}
		if in.Reads == nil {
			in.Reads = StringSet{}
		}
		if in.Writes == nil {
			in.Writes = StringSet{}
		}
		if in.DependsOn == nil {
			in.DependsOn = StringSet{}
		}
	}
	return &k, nil
}
