package tile

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/samcharles93/looptile/internal/loopir"
)

// Problem bundles a kernel with its stage descriptor; this is the
// on-disk format the CLI and the API consume.
type Problem struct {
	Kernel     *loopir.Kernel  `json:"kernel"`
	Descriptor StageDescriptor `json:"descriptor"`
}

// LoadProblem reads a problem file written by SaveProblem.
func LoadProblem(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problem file: %w", err)
	}
	var p Problem
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse problem file %q: %w", path, err)
	}
	if p.Kernel == nil {
		return nil, fmt.Errorf("problem file %q has no kernel", path)
	}
	// Re-encode through the kernel codec so empty sets come back
	// non-nil.
	raw, err := loopir.Encode(p.Kernel)
	if err != nil {
		return nil, err
	}
	if p.Kernel, err = loopir.Decode(raw); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProblem writes a problem file.
func SaveProblem(path string, p *Problem) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode problem: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write problem file: %w", err)
	}
	return nil
}
