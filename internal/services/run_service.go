// Package services wires the data, optimization, and reporting layers
// into application-level operations.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/charts"
	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/events"
	"github.com/aristath/frontier/internal/optimization"
)

// ErrRunInProgress is returned when a frontier run is requested while
// another run holds the run lock.
var ErrRunInProgress = errors.New("a frontier run is already in progress")

// RunRequest carries optional per-run overrides on top of the
// configured defaults. Nil fields keep the configured value.
type RunRequest struct {
	Symbols        []string `json:"symbols,omitempty"`
	Start          string   `json:"start,omitempty"`
	End            string   `json:"end,omitempty"`
	RiskFreeRate   *float64 `json:"risk_free_rate,omitempty"`
	LowerBound     *float64 `json:"lower_bound,omitempty"`
	UpperBound     *float64 `json:"upper_bound,omitempty"`
	FrontierPoints *int     `json:"frontier_points,omitempty"`
}

// RunService executes frontier runs end to end: return statistics,
// solve, chart, artifacts, and lifecycle events. Runs are serialized;
// a request arriving while one is active fails fast with
// ErrRunInProgress.
type RunService struct {
	cfg      *config.Config
	frontier *optimization.FrontierService
	bus      *events.Bus
	log      zerolog.Logger

	mu sync.Mutex
}

// NewRunService creates a new run service. A nil bus disables event
// emission.
func NewRunService(cfg *config.Config, frontier *optimization.FrontierService, bus *events.Bus, log zerolog.Logger) *RunService {
	return &RunService{
		cfg:      cfg,
		frontier: frontier,
		bus:      bus,
		log:      log.With().Str("service", "run").Logger(),
	}
}

// Run executes one frontier run and persists its artifacts. A nil
// request runs with the configured defaults.
func (s *RunService) Run(ctx context.Context, req *RunRequest) (*optimization.FrontierResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	compute, err := s.buildRequest(req)
	if err != nil {
		return nil, err
	}
	compute.RunID = uuid.New().String()

	started := time.Now()
	s.emit("optimizer", &events.RunStartedData{
		RunID:   compute.RunID,
		Symbols: compute.Symbols,
		Points:  compute.Settings.FrontierPoints,
	})

	result, err := s.frontier.Compute(ctx, compute)
	if err != nil {
		s.emit("optimizer", &events.RunFailedData{RunID: compute.RunID, Error: err.Error()})
		return nil, err
	}

	png, err := charts.RenderFrontier(result)
	if err != nil {
		s.log.Warn().Err(err).Msg("Chart rendering failed, writing JSON artifacts only")
		png = nil
	}

	artifact, err := charts.WriteArtifacts(s.cfg.DataDir, result, png)
	if err != nil {
		s.emit("optimizer", &events.RunFailedData{RunID: compute.RunID, Error: err.Error()})
		return nil, fmt.Errorf("failed to write run artifacts: %w", err)
	}

	s.emit("optimizer", &events.RunCompletedData{
		RunID:          result.RunID,
		SharpeRatio:    result.MaxSharpe.SharpeRatio,
		Return:         result.MaxSharpe.Performance.Return,
		Volatility:     result.MaxSharpe.Performance.Volatility,
		FrontierPoints: len(result.Frontier),
		Duration:       time.Since(started).Seconds(),
	})

	s.log.Info().
		Str("run_id", result.RunID).
		Str("json", artifact.JSONPath).
		Str("chart", artifact.PNGPath).
		Msg("Run artifacts written")

	return result, nil
}

// buildRequest merges per-run overrides onto the configured defaults
// and validates the merged request.
func (s *RunService) buildRequest(req *RunRequest) (optimization.ComputeRequest, error) {
	start, end, err := s.cfg.DateRange()
	if err != nil {
		return optimization.ComputeRequest{}, err
	}

	compute := optimization.ComputeRequest{
		Symbols:  s.cfg.Symbols,
		Start:    start,
		End:      end,
		Settings: s.cfg.OptimizationSettings(),
	}

	if req == nil {
		return compute, nil
	}

	if len(req.Symbols) > 0 {
		compute.Symbols = req.Symbols
	}
	if req.Start != "" {
		parsed, err := time.Parse(config.DateFormat, req.Start)
		if err != nil {
			return optimization.ComputeRequest{}, fmt.Errorf("invalid start date %q: %w", req.Start, err)
		}
		compute.Start = parsed
	}
	if req.End != "" {
		parsed, err := time.Parse(config.DateFormat, req.End)
		if err != nil {
			return optimization.ComputeRequest{}, fmt.Errorf("invalid end date %q: %w", req.End, err)
		}
		compute.End = parsed
	}
	if req.RiskFreeRate != nil {
		compute.Settings.RiskFreeRate = *req.RiskFreeRate
	}
	if req.LowerBound != nil {
		compute.Settings.LowerBound = *req.LowerBound
	}
	if req.UpperBound != nil {
		compute.Settings.UpperBound = *req.UpperBound
	}
	if req.FrontierPoints != nil {
		compute.Settings.FrontierPoints = *req.FrontierPoints
	}

	if !compute.End.After(compute.Start) {
		return optimization.ComputeRequest{}, fmt.Errorf("end date %s must be after start date %s",
			compute.End.Format(config.DateFormat), compute.Start.Format(config.DateFormat))
	}
	if compute.Settings.FrontierPoints <= 0 {
		return optimization.ComputeRequest{}, fmt.Errorf("frontier points must be positive, got %d", compute.Settings.FrontierPoints)
	}
	if compute.Settings.UpperBound <= compute.Settings.LowerBound {
		return optimization.ComputeRequest{}, fmt.Errorf("upper bound %v must exceed lower bound %v",
			compute.Settings.UpperBound, compute.Settings.LowerBound)
	}

	return compute, nil
}

func (s *RunService) emit(module string, data events.EventData) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(module, data)
}
