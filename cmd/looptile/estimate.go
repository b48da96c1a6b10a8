package main

import (
	"context"
	"fmt"
	"math"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/looptile/internal/cost"
	"github.com/samcharles93/looptile/internal/tile"
)

func estimateCmd() *cli.Command {
	var (
		cellsPerBlock  int64
		threadsPerCell int64
		t1r, t1c       int64
		t2r, t2c       int64
		loadMats       bool
		loadWeights    bool
	)

	flags := append(commonProblemFlags(),
		&cli.Int64Flag{Name: "cells-per-block", Value: 32, Destination: &cellsPerBlock},
		&cli.Int64Flag{Name: "threads-per-cell", Value: 1, Destination: &threadsPerCell},
		&cli.Int64Flag{Name: "t1-row", Value: 1, Destination: &t1r},
		&cli.Int64Flag{Name: "t1-col", Value: 1, Destination: &t1c},
		&cli.Int64Flag{Name: "t2-row", Value: 1, Destination: &t2r},
		&cli.Int64Flag{Name: "t2-col", Value: 1, Destination: &t2c},
		&cli.BoolFlag{Name: "load-mats", Value: true, Destination: &loadMats},
		&cli.BoolFlag{Name: "load-quad-weights", Value: true, Destination: &loadWeights},
	)

	return &cli.Command{
		Name:  "estimate",
		Usage: "Evaluate the cost model for one tiling configuration",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := tile.Config{
				CellsPerBlock:           int(cellsPerBlock),
				ThreadsPerCell:          int(threadsPerCell),
				T1Row:                   int(t1r),
				T1Col:                   int(t1c),
				T2Row:                   int(t2r),
				T2Col:                   int(t2c),
				LoadMatsToShared:        loadMats,
				LoadQuadWeightsToShared: loadWeights,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			p, err := loadProblem()
			if err != nil {
				return err
			}
			params, err := cost.ParamsFromProblem(p)
			if err != nil {
				return err
			}
			m := cost.NewModel(params)

			fmt.Printf("config:          %s\n", cfg)
			fmt.Printf("local barriers:  %d\n",
				m.LocalBarriers(cfg.T1Row, cfg.T1Col, cfg.T2Row, cfg.T2Col))
			fmt.Printf("warps per SM:    %.0f\n", m.TheoreticalWarpsPerSM(cfg))
			fmt.Printf("work efficiency: %.4f\n", m.WorkEfficiency(cfg))
			if est := m.EstimatedExecTime(cfg); math.IsInf(est, 1) {
				fmt.Println("estimated cost:  not viable (no resident blocks)")
			} else {
				fmt.Printf("estimated cost:  %.4f\n", est)
			}
			return nil
		},
	}
}
