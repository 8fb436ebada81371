// Package pipeline runs Sentinel analysis cycles: build the topology, score
// signals, simulate the worst risks and derive decisions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Benny93/sentinel-go/internal/decision"
	"github.com/Benny93/sentinel-go/internal/graph"
	"github.com/Benny93/sentinel-go/internal/logging"
	"github.com/Benny93/sentinel-go/internal/metrics"
	"github.com/Benny93/sentinel-go/internal/risk"
	"github.com/Benny93/sentinel-go/internal/simulation"
	"github.com/Benny93/sentinel-go/internal/topology"
)

var (
	// ErrEmptyTopology reports a cycle whose roster produced no source nodes.
	ErrEmptyTopology = errors.New("empty topology")

	// ErrEmptyInput reports a cycle that had no signals to analyze.
	ErrEmptyInput = errors.New("empty input")
)

// Status is the outcome class of a cycle.
type Status string

const (
	StatusOK            Status = "ok"
	StatusEmptyTopology Status = "empty_topology"
	StatusEmptyInput    Status = "empty_input"
)

// Stage names passed to the progress callback.
const (
	StageTopology   = "Building topology"
	StageRisk       = "Scoring signals"
	StageSimulation = "Simulating disruptions"
	StageDecision   = "Deciding actions"
)

// ProgressCallback is called with stage name and progress (0.0-1.0).
type ProgressCallback func(stage string, progress float64)

// IngestionSummary describes how the cycle inputs were gathered.
type IngestionSummary struct {
	SuppliersLoaded  int      `json:"suppliers_loaded"`
	SuppliersDropped int      `json:"suppliers_dropped"`
	SignalsLoaded    int      `json:"signals_loaded"`
	SignalsDropped   int      `json:"signals_dropped"`
	SignalSources    []string `json:"signal_sources,omitempty"`
}

// CycleInput is everything a cycle consumes.
type CycleInput struct {
	Sources   []topology.SourceRecord
	Signals   []risk.Signal
	Ingestion IngestionSummary
}

// GraphResult is the topology stage output.
type GraphResult struct {
	Status   Status         `json:"status"`
	Stats    graph.Stats    `json:"stats"`
	Topology graph.Snapshot `json:"topology"`
	Dropped  []string       `json:"dropped,omitempty"`
}

// CycleResult is the full output of one cycle.
type CycleResult struct {
	ID           string                  `json:"id"`
	Timestamp    time.Time               `json:"timestamp"`
	DurationSecs float64                 `json:"duration_secs"`
	Status       Status                  `json:"status"`
	Ingestion    IngestionSummary        `json:"ingestion"`
	Sources      []topology.SourceRecord `json:"sources"`
	Signals      []risk.Signal           `json:"signals"`
	Graph        GraphResult             `json:"graph"`
	Risk         risk.Assessment         `json:"risk"`
	Simulation   simulation.Result       `json:"simulation"`
	SimErrors    []string                `json:"simulation_errors,omitempty"`
	Decision     decision.Result         `json:"decision"`
}

// Err maps the cycle status to ErrEmptyTopology, ErrEmptyInput or nil.
func (r *CycleResult) Err() error {
	switch r.Status {
	case StatusEmptyTopology:
		return ErrEmptyTopology
	case StatusEmptyInput:
		return ErrEmptyInput
	}
	return nil
}

// Summary is the one-line digest of a cycle.
type Summary struct {
	Status            Status          `json:"status"`
	Suppliers         int             `json:"suppliers"`
	Signals           int             `json:"signals"`
	Risks             int             `json:"risks"`
	MaxSeverity       float64         `json:"max_severity"`
	WorstDelayDays    float64         `json:"worst_delay_days"`
	Decisions         int             `json:"decisions"`
	OverallConfidence float64         `json:"overall_confidence"`
	TopAction         decision.Action `json:"top_action"`
}

// Summary returns the digest of r.
func (r *CycleResult) Summary() Summary {
	return Summary{
		Status:            r.Status,
		Suppliers:         r.Graph.Stats.SourceCount,
		Signals:           r.Risk.SignalsAnalyzed,
		Risks:             r.Risk.TotalRisks,
		MaxSeverity:       r.Risk.MaxSeverity,
		WorstDelayDays:    r.Simulation.WorstCaseDelayDays,
		Decisions:         r.Decision.DecisionCount,
		OverallConfidence: r.Decision.OverallConfidence,
		TopAction:         r.Decision.TopRecommendation,
	}
}

// Options configures a cycle.
type Options struct {
	// TopN bounds how many risks are simulated. Zero means simulation.DefaultTopN.
	TopN int

	// Workers bounds concurrent simulations. Zero uses the simulator default.
	Workers int

	// Now fixes the cycle clock. Nil means time.Now.
	Now func() time.Time

	// Routes overrides topology.DefaultRoutes.
	Routes []topology.Route

	// Scorer overrides the default risk scorer.
	Scorer *risk.Scorer

	Logger   *slog.Logger
	Metrics  *metrics.Registry
	Progress ProgressCallback
}

// RunCycle executes one analysis cycle over in. Empty topology and empty
// input are not errors: they are reported through CycleResult.Status and the
// result carries the empty decision sentinel. RunCycle only fails when ctx is
// done.
func RunCycle(ctx context.Context, in CycleInput, opts Options) (*CycleResult, error) {
	log := logging.OrDefault(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(string, float64) {}
	}

	started := time.Now()
	ts := now().UTC()
	res := &CycleResult{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Ingestion: in.Ingestion,
		Sources:   in.Sources,
		Signals:   in.Signals,
	}
	log = log.With("cycle_id", res.ID)
	log.Info("cycle started", "sources", len(in.Sources), "signals", len(in.Signals))

	// Stage 1: topology
	progress(StageTopology, 0.0)
	g, dropped := topology.NewBuilder(opts.Routes).Build(in.Sources)
	for _, err := range dropped {
		log.Warn("dropped roster record", "error", err)
		res.Graph.Dropped = append(res.Graph.Dropped, err.Error())
	}
	opts.Metrics.RecordInvalidRecords("roster", len(dropped))

	res.Graph.Stats = g.Stats()
	res.Graph.Topology = g.Snapshot()
	switch {
	case res.Graph.Stats.SourceCount == 0:
		res.Status = StatusEmptyTopology
		log.Warn("topology has no source nodes")
	case len(in.Signals) == 0:
		res.Status = StatusEmptyInput
		log.Warn("no signals to analyze")
	default:
		res.Status = StatusOK
	}
	res.Graph.Status = res.Status
	log.Info("topology built",
		"nodes", res.Graph.Stats.NodeCount,
		"edges", res.Graph.Stats.EdgeCount,
		"critical_nodes", res.Graph.Stats.CriticalNodes)
	progress(StageTopology, 1.0)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cycle %s: %w", res.ID, err)
	}

	// Stage 2: risk scoring
	progress(StageRisk, 0.0)
	scorer := opts.Scorer
	if scorer == nil {
		scorer = risk.NewScorer(nil)
	}
	res.Risk = scorer.Assess(g, in.Signals, ts)
	log.Info("risks scored", "risks", res.Risk.TotalRisks, "max_severity", res.Risk.MaxSeverity)
	progress(StageRisk, 1.0)

	// Stage 3: simulation
	progress(StageSimulation, 0.0)
	simOpts := []simulation.Option{simulation.WithClock(func() time.Time { return ts })}
	if opts.Workers > 0 {
		simOpts = append(simOpts, simulation.WithWorkers(opts.Workers))
	}
	simRes, simErr := simulation.NewSimulator(simOpts...).Run(ctx, g, res.Risk.Risks, opts.TopN)
	if simErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("cycle %s: %w", res.ID, ctxErr)
		}
		failures := unwrapAll(simErr)
		for _, err := range failures {
			log.Error("simulation failed", "error", err)
			res.SimErrors = append(res.SimErrors, err.Error())
		}
		opts.Metrics.RecordSimulationFailures(len(failures))
	}
	res.Simulation = simRes
	log.Info("disruptions simulated",
		"scenarios", simRes.NumberOfSimulations,
		"worst_delay_days", simRes.WorstCaseDelayDays)
	progress(StageSimulation, 1.0)

	// Stage 4: decisions
	progress(StageDecision, 0.0)
	engine := decision.NewEngine()
	res.Decision = engine.Run(res.Risk.Risks, simRes.Scenarios, ts)
	for _, d := range res.Decision.Decisions {
		if !engine.IsHighRisk(d) {
			continue
		}
		log.Info("high-risk decision",
			"node_id", d.NodeID,
			"severity", d.RiskScore,
			"delay_days", d.DelayDays,
			"impact_pct", d.ServiceImpactPct,
			"actions", leadingActions(d, 2))
	}
	log.Info("decisions made",
		"decisions", res.Decision.DecisionCount,
		"overall_confidence", res.Decision.OverallConfidence,
		"top_action", res.Decision.TopRecommendation)
	progress(StageDecision, 1.0)

	elapsed := time.Since(started)
	res.DurationSecs = elapsed.Seconds()
	opts.Metrics.RecordCycle(metrics.CycleObservation{
		Status:            string(res.Status),
		Duration:          elapsed,
		Risks:             res.Risk.TotalRisks,
		MaxSeverity:       res.Risk.MaxSeverity,
		WorstDelayDays:    simRes.WorstCaseDelayDays,
		OverallConfidence: res.Decision.OverallConfidence,
	})
	log.Info("cycle finished", "status", res.Status, "duration", elapsed)
	return res, nil
}

func leadingActions(d decision.Decision, n int) []decision.Action {
	out := make([]decision.Action, 0, n)
	for i, r := range d.RecommendedActions {
		if i == n {
			break
		}
		out = append(out, r.Action)
	}
	return out
}

// unwrapAll flattens an errors.Join result.
func unwrapAll(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
