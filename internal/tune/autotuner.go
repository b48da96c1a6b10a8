package tune

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/samcharles93/looptile/internal/cost"
	"github.com/samcharles93/looptile/internal/device"
	"github.com/samcharles93/looptile/internal/logger"
	"github.com/samcharles93/looptile/internal/loopir"
	"github.com/samcharles93/looptile/internal/tile"
)

// Range is the half-open cell range a tuned kernel will be launched
// over.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Cells returns the number of cells in the range.
func (r Range) Cells() int {
	return r.End - r.Start
}

// CandidateReport records how one shortlisted configuration fared.
type CandidateReport struct {
	Config        tile.Config `json:"config"`
	EstimatedCost float64     `json:"estimated_cost"`
	MeanMillis    float64     `json:"mean_millis"`
}

// Result is the outcome of a tuning run: the winning configuration and
// the authoritative rebuild of the kernel under it.
type Result struct {
	RunID          string               `json:"run_id"`
	Config         tile.Config          `json:"config"`
	MeanMillis     float64              `json:"mean_millis"`
	Candidates     []CandidateReport    `json:"candidates"`
	Kernel         *loopir.Kernel       `json:"kernel"`
	ExtraConstants []loopir.ConstantArg `json:"extra_constants"`
}

// AutoTuner measures shortlisted configurations one at a time on a
// device executor. Measurement is strictly sequential since timings
// need an uncontended device.
type AutoTuner struct {
	Exec   device.Executor
	Log    logger.Logger
	Rounds int
	Warmup int
}

// New returns an AutoTuner with the standard round counts.
func New(exec device.Executor, log logger.Logger) *AutoTuner {
	if log == nil {
		log = logger.Default()
	}
	return &AutoTuner{
		Exec:   exec,
		Log:    log,
		Rounds: 15,
		Warmup: 5,
	}
}

// Tune benchmarks the candidate shortlist for the problem and returns
// the winner rebuilt from scratch. args holds one device buffer per
// kernel argument in name order, argShapes the corresponding element
// shapes. Buffers the kernel writes are copied per candidate; the
// caller's buffers are never modified.
func (t *AutoTuner) Tune(ctx context.Context, p *tile.Problem, launch Range, args []device.Buffer, argShapes [][]int, candidateCount int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if launch.Cells() <= 0 {
		return nil, fmt.Errorf("empty launch range [%d, %d)", launch.Start, launch.End)
	}
	argNames := make([]string, len(p.Kernel.Args))
	for i, a := range p.Kernel.Args {
		argNames[i] = a.Name
	}
	if len(args) != len(argNames) || len(argShapes) != len(argNames) {
		return nil, fmt.Errorf("kernel %q takes %d args, got %d buffers and %d shapes",
			p.Kernel.Name, len(argNames), len(args), len(argShapes))
	}

	params, err := cost.ParamsFromProblem(p)
	if err != nil {
		return nil, err
	}
	model := cost.NewModel(params)
	configs, err := NewGenerator(model, candidateCount).Candidates()
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("no viable tiling configurations for kernel %q", p.Kernel.Name)
	}

	runID := uuid.NewString()
	log := t.Log.With("run_id", runID, "kernel", p.Kernel.Name, "device", t.Exec.Name())
	log.Info("starting tuning run",
		"candidates", len(configs), "cells", launch.Cells(), "rounds", t.Rounds, "warmup", t.Warmup)

	// Constant uploads are cached across candidates. Every candidate
	// promotes the same constants, so the name is a sufficient key.
	constCache := make(map[string]device.Buffer)
	defer func() {
		for _, b := range constCache {
			b.Free()
		}
	}()

	written := p.Kernel.WrittenArgs()

	result := &Result{RunID: runID}
	bestMean := math.Inf(1)
	var bestConfig tile.Config
	haveBest := false

	for _, cfg := range configs {
		mean, err := t.measureCandidate(p, cfg, launch, args, argShapes, argNames, written, constCache)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", cfg, err)
		}
		log.Info("measured candidate", "config", cfg.String(),
			"estimate", model.EstimatedExecTime(cfg), "mean_ms", mean)
		result.Candidates = append(result.Candidates, CandidateReport{
			Config:        cfg,
			EstimatedCost: model.EstimatedExecTime(cfg),
			MeanMillis:    mean,
		})
		if mean < bestMean {
			bestMean, bestConfig, haveBest = mean, cfg, true
		}
	}
	if !haveBest {
		return nil, fmt.Errorf("no candidate produced a measurement for kernel %q", p.Kernel.Name)
	}

	// Rebuild the winner from the pristine kernel. Measurement-loop
	// builds are not reused.
	kernel, consts, err := tile.Transform(p.Kernel, p.Descriptor, bestConfig)
	if err != nil {
		return nil, fmt.Errorf("rebuilding winner %s: %w", bestConfig, err)
	}
	result.Config = bestConfig
	result.MeanMillis = bestMean
	result.Kernel = kernel
	result.ExtraConstants = consts

	log.Info("tuning run finished", "config", bestConfig.String(), "mean_ms", bestMean)
	return result, nil
}

// measureCandidate transforms, compiles, and times one configuration.
// Everything it allocates is released before it returns.
func (t *AutoTuner) measureCandidate(p *tile.Problem, cfg tile.Config, launch Range,
	args []device.Buffer, argShapes [][]int, argNames []string,
	written loopir.StringSet, constCache map[string]device.Buffer) (float64, error) {

	kernel, consts, err := tile.Transform(p.Kernel, p.Descriptor, cfg)
	if err != nil {
		return 0, err
	}

	exe, err := t.Exec.Compile(kernel)
	if err != nil {
		return 0, fmt.Errorf("compiling: %w", err)
	}
	defer exe.Free()

	grid := device.Dim3{X: ceilDiv(launch.Cells(), cfg.CellsPerBlock), Y: 1, Z: 1}
	block := device.Dim3{
		X: kernel.HardwareExtent("l.0"),
		Y: kernel.HardwareExtent("l.1"),
		Z: 1,
	}

	// Share read-only buffers, copy anything the kernel writes so one
	// candidate's output cannot leak into the next measurement.
	launchArgs := make([]device.Buffer, 0, len(args)+len(consts))
	for i, name := range argNames {
		if !written.Has(name) {
			launchArgs = append(launchArgs, args[i])
			continue
		}
		words := shapeWords(argShapes[i])
		cp, err := t.Exec.Malloc(words)
		if err != nil {
			return 0, fmt.Errorf("copying arg %q: %w", name, err)
		}
		defer cp.Free()
		if err := t.Exec.CopyDeviceToDevice(cp, args[i], words); err != nil {
			return 0, fmt.Errorf("copying arg %q: %w", name, err)
		}
		launchArgs = append(launchArgs, cp)
	}
	for _, c := range consts {
		buf, ok := constCache[c.Name]
		if !ok {
			buf, err = t.Exec.Malloc(len(c.Data))
			if err != nil {
				return 0, fmt.Errorf("uploading constant %q: %w", c.Name, err)
			}
			if err := t.Exec.Upload(buf, c.Data); err != nil {
				buf.Free()
				return 0, fmt.Errorf("uploading constant %q: %w", c.Name, err)
			}
			constCache[c.Name] = buf
		}
		launchArgs = append(launchArgs, buf)
	}

	m := Measurement{Warmup: t.Warmup}
	for round := 0; round < t.Rounds; round++ {
		start, err := t.Exec.NewEvent()
		if err != nil {
			return 0, err
		}
		stop, err := t.Exec.NewEvent()
		if err != nil {
			return 0, err
		}
		if err := start.Record(); err != nil {
			return 0, err
		}
		if err := start.Synchronize(); err != nil {
			return 0, err
		}
		if err := exe.Launch(grid, block, launchArgs...); err != nil {
			return 0, fmt.Errorf("round %d: %w", round, err)
		}
		if err := stop.Record(); err != nil {
			return 0, err
		}
		if err := stop.Synchronize(); err != nil {
			return 0, err
		}
		ms, err := stop.ElapsedMillis(start)
		if err != nil {
			return 0, err
		}
		m.Add(ms)
	}
	return m.Mean(), nil
}

func shapeWords(shape []int) int {
	words := 1
	for _, n := range shape {
		words *= n
	}
	return words
}
