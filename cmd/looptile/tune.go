package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/looptile/internal/device"
	"github.com/samcharles93/looptile/internal/logger"
	"github.com/samcharles93/looptile/internal/loopir"
	"github.com/samcharles93/looptile/internal/tile"
	"github.com/samcharles93/looptile/internal/tune"
)

func tuneCmd() *cli.Command {
	var (
		candidates int64
		rounds     int64
		warmup     int64
		outPath    string
	)

	flags := append(commonProblemFlags(), commonLogFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "device",
			Usage:       "execution backend (host)",
			Value:       "host",
			Destination: &deviceName,
		},
		&cli.Int64Flag{
			Name:        "candidates",
			Aliases:     []string{"n"},
			Usage:       "shortlist length to measure",
			Value:       5,
			Destination: &candidates,
		},
		&cli.Int64Flag{
			Name:        "rounds",
			Usage:       "measured launches per candidate",
			Value:       15,
			Destination: &rounds,
		},
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "leading rounds discarded from the mean",
			Value:       5,
			Destination: &warmup,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "write the tuned kernel to this file",
			Destination: &outPath,
		},
	)

	return &cli.Command{
		Name:  "tune",
		Usage: "Measure the candidate shortlist and print the winner",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyTuneConfig(cmd, LoadConfig(), &candidates, &rounds, &warmup)
			log := buildLogger()
			ctx = logger.WithContext(ctx, log)

			p, err := loadProblem()
			if err != nil {
				return err
			}

			exec, err := device.Open(deviceName)
			if err != nil {
				return err
			}
			defer exec.Close()
			log.Info("opened device", "backend", exec.Name(), "host", device.HostInfo())

			args, shapes, err := allocArgs(exec, p)
			if err != nil {
				return err
			}
			defer func() {
				for _, b := range args {
					b.Free()
				}
			}()

			at := tune.New(exec, log)
			at.Rounds = int(rounds)
			at.Warmup = int(warmup)

			res, err := at.Tune(ctx, p, tune.Range{Start: 0, End: launchCells(p)}, args, shapes, int(candidates))
			if err != nil {
				return err
			}

			fmt.Printf("run %s: best %s, %.4f ms\n", res.RunID, res.Config, res.MeanMillis)
			for _, c := range res.Candidates {
				fmt.Printf("  %-40s est=%.4f  measured=%.4f ms\n",
					c.Config, c.EstimatedCost, c.MeanMillis)
			}

			if outPath != "" {
				data, err := loopir.Encode(res.Kernel)
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", outPath, err)
				}
				log.Info("wrote tuned kernel", "path", outPath,
					"constants", len(res.ExtraConstants))
			}
			return nil
		},
	}
}

// allocArgs creates one zeroed device buffer per kernel argument.
func allocArgs(exec device.Executor, p *tile.Problem) ([]device.Buffer, [][]int, error) {
	var bufs []device.Buffer
	var shapes [][]int
	for _, a := range p.Kernel.Args {
		words := 1
		for _, n := range a.Shape {
			words *= n
		}
		b, err := exec.Malloc(words)
		if err != nil {
			for _, prev := range bufs {
				prev.Free()
			}
			return nil, nil, fmt.Errorf("allocating %q: %w", a.Name, err)
		}
		bufs = append(bufs, b)
		shapes = append(shapes, a.Shape)
	}
	return bufs, shapes, nil
}
