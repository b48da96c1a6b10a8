package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/looptile/internal/cost"
	"github.com/samcharles93/looptile/internal/tune"
)

func candidatesCmd() *cli.Command {
	var (
		count  int64
		asJSON bool
	)

	flags := append(commonProblemFlags(),
		&cli.Int64Flag{
			Name:        "count",
			Aliases:     []string{"n"},
			Usage:       "shortlist length (0 for all)",
			Value:       10,
			Destination: &count,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "emit the shortlist as JSON",
			Destination: &asJSON,
		},
	)

	return &cli.Command{
		Name:  "candidates",
		Usage: "Print the ranked candidate shortlist without measuring",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadProblem()
			if err != nil {
				return err
			}
			params, err := cost.ParamsFromProblem(p)
			if err != nil {
				return err
			}
			m := cost.NewModel(params)
			configs, err := tune.NewGenerator(m, int(count)).Candidates()
			if err != nil {
				return err
			}

			if asJSON {
				reports := make([]tune.CandidateReport, 0, len(configs))
				for _, cfg := range configs {
					reports = append(reports, tune.CandidateReport{
						Config:        cfg,
						EstimatedCost: m.EstimatedExecTime(cfg),
					})
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}

			fmt.Printf("%d candidates for %q (nq=%d, nb=%d)\n",
				len(configs), p.Kernel.Name, params.NQuad, params.NBasis)
			for i, cfg := range configs {
				fmt.Printf("%3d. %-40s est=%.4f barriers=%d\n",
					i+1, cfg, m.EstimatedExecTime(cfg),
					m.LocalBarriers(cfg.T1Row, cfg.T1Col, cfg.T2Row, cfg.T2Col))
			}
			return nil
		},
	}
}
