// Package api exposes the cost model and candidate generator over
// HTTP, so tooling can rank configurations without linking the tuner.
package api

import (
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/looptile/internal/cost"
	"github.com/samcharles93/looptile/internal/device"
	"github.com/samcharles93/looptile/internal/logger"
	"github.com/samcharles93/looptile/internal/tune"
	"github.com/samcharles93/looptile/internal/version"
)

// Server serves estimate and shortlist requests. It holds no mutable
// state; a fresh cost model is built per request since every request
// may describe a different kernel.
type Server struct {
	log logger.Logger
}

// NewServer returns a Server logging through log.
func NewServer(log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{log: log}
}

// Register mounts the handlers on e.
func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/estimate", s.handleEstimate)
	e.POST("/v1/candidates", s.handleCandidates)
	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleEstimate(c *echo.Context) error {
	req, err := decodeJSON[EstimateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Kernel == nil {
		return writeBadRequest(c, "missing kernel")
	}
	if err := req.Config.Validate(); err != nil {
		return writeBadRequest(c, err.Error())
	}
	params, err := cost.ParamsFromKernel(req.Kernel, req.Descriptor)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	m := cost.NewModel(params)
	resp := EstimateResponse{
		RequestID:      uuid.NewString(),
		Config:         req.Config,
		Viable:         true,
		EstimatedCost:  m.EstimatedExecTime(req.Config),
		LocalBarriers:  m.LocalBarriers(req.Config.T1Row, req.Config.T1Col, req.Config.T2Row, req.Config.T2Col),
		WarpsPerSM:     m.TheoreticalWarpsPerSM(req.Config),
		WorkEfficiency: m.WorkEfficiency(req.Config),
	}
	if math.IsInf(resp.EstimatedCost, 1) {
		resp.Viable = false
		resp.EstimatedCost = -1
	}
	s.log.Debug("estimated configuration",
		"request_id", resp.RequestID, "config", req.Config.String(), "cost", resp.EstimatedCost)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCandidates(c *echo.Context) error {
	req, err := decodeJSON[CandidatesRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Kernel == nil {
		return writeBadRequest(c, "missing kernel")
	}
	if req.Count < 0 {
		return writeBadRequest(c, "count must not be negative")
	}
	params, err := cost.ParamsFromKernel(req.Kernel, req.Descriptor)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	m := cost.NewModel(params)
	configs, err := tune.NewGenerator(m, req.Count).Candidates()
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	resp := CandidatesResponse{RequestID: uuid.NewString()}
	for _, cfg := range configs {
		resp.Candidates = append(resp.Candidates, tune.CandidateReport{
			Config:        cfg,
			EstimatedCost: m.EstimatedExecTime(cfg),
		})
	}
	s.log.Debug("generated shortlist",
		"request_id", resp.RequestID, "kernel", req.Kernel.Name, "candidates", len(resp.Candidates))
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.String(),
		Host:    device.HostInfo(),
	})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: msg})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var v T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("decoding request body: %w", err)
	}
	return v, nil
}
