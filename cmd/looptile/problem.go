package main

import (
	"fmt"

	"github.com/samcharles93/looptile/internal/tile"
)

// loadProblem reads the problem file, or builds the sample problem
// when none is given.
func loadProblem() (*tile.Problem, error) {
	if problemPath == "" {
		return tile.SampleProblem(int(ncells)), nil
	}
	p, err := tile.LoadProblem(problemPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", problemPath, err)
	}
	return p, nil
}

// launchCells returns how many cells the problem's kernel iterates.
func launchCells(p *tile.Problem) int {
	return p.Kernel.Dims[p.Descriptor.CellIname]
}
