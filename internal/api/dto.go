package api

import (
	"github.com/samcharles93/looptile/internal/loopir"
	"github.com/samcharles93/looptile/internal/tile"
	"github.com/samcharles93/looptile/internal/tune"
)

// EstimateRequest asks for the static cost of one configuration.
type EstimateRequest struct {
	Kernel     *loopir.Kernel       `json:"kernel"`
	Descriptor tile.StageDescriptor `json:"descriptor"`
	Config     tile.Config          `json:"config"`
}

// EstimateResponse reports every figure the cost model produces for
// the configuration. A configuration whose blocks cannot be resident
// at all has Viable false and an EstimatedCost of -1, since infinity
// does not survive JSON.
type EstimateResponse struct {
	RequestID      string      `json:"request_id"`
	Config         tile.Config `json:"config"`
	Viable         bool        `json:"viable"`
	EstimatedCost  float64     `json:"estimated_cost"`
	LocalBarriers  int         `json:"local_barriers"`
	WarpsPerSM     float64     `json:"warps_per_sm"`
	WorkEfficiency float64     `json:"work_efficiency"`
}

// CandidatesRequest asks for the ranked shortlist of a kernel.
type CandidatesRequest struct {
	Kernel     *loopir.Kernel       `json:"kernel"`
	Descriptor tile.StageDescriptor `json:"descriptor"`
	// Count truncates the shortlist. Zero means no limit.
	Count int `json:"count"`
}

// CandidatesResponse lists the shortlist in ascending estimated cost
// order.
type CandidatesResponse struct {
	RequestID  string                 `json:"request_id"`
	Candidates []tune.CandidateReport `json:"candidates"`
}

// HealthResponse reports liveness plus build info.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Host    string `json:"host"`
}

type errorBody struct {
	Error string `json:"error"`
}
