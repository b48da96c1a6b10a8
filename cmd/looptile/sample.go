package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/looptile/internal/tile"
)

func sampleCmd() *cli.Command {
	var outPath string

	return &cli.Command{
		Name:  "sample",
		Usage: "Write the built-in sample problem to a file",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "cells",
				Usage:       "mesh cell count",
				Value:       4096,
				Destination: &ncells,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "destination file",
				Value:       "problem.json",
				Destination: &outPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p := tile.SampleProblem(int(ncells))
			if err := tile.SaveProblem(outPath, p); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d cells, %d quadrature points, %d basis functions)\n",
				outPath, int(ncells), p.Descriptor.NQuad, p.Descriptor.NBasis())
			return nil
		},
	}
}
