// Package simulation runs what-if disruption scenarios on isolated copies of
// the supply graph.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Benny93/sentinel-go/internal/graph"
	"github.com/Benny93/sentinel-go/internal/risk"
)

// DisruptionType says how a node was disrupted.
type DisruptionType string

const (
	NodeFailure       DisruptionType = "node_failure"
	CapacityReduction DisruptionType = "capacity_reduction"
)

const (
	// DelayDaysPerHop is the delay added for every hop downstream.
	DelayDaysPerHop = 3.0

	// FailureThreshold is the severity at which a node is removed outright.
	FailureThreshold = 0.9

	// DefaultTopN is the number of most severe risks simulated per cycle.
	DefaultTopN = 5
)

// Tier is one severity band of the disruption model.
type Tier struct {
	MinSeverity     float64
	CapacityLoss    float64
	DelayMultiplier float64
}

// Tiers are checked in order; the first whose MinSeverity is met applies.
var Tiers = []Tier{
	{MinSeverity: 0.8, CapacityLoss: 0.8, DelayMultiplier: 1.5},
	{MinSeverity: 0.5, CapacityLoss: 0.4, DelayMultiplier: 1.0},
	{MinSeverity: 0, CapacityLoss: 0.2, DelayMultiplier: 0.7},
}

// TierFor returns the tier for a severity.
func TierFor(severity float64) Tier {
	for _, t := range Tiers {
		if severity >= t.MinSeverity {
			return t
		}
	}
	return Tiers[len(Tiers)-1]
}

// Scenario is the simulated impact of one risk.
type Scenario struct {
	NodeID                string         `json:"node_id"`
	DisruptionType        DisruptionType `json:"disruption_type"`
	SeverityUsed          float64        `json:"severity_used"`
	CapacityLossPct       int            `json:"capacity_loss_pct"`
	EstimatedDelayDays    float64        `json:"estimated_delay_days"`
	AffectedNodesCount    int            `json:"affected_nodes_count"`
	ServiceLevelImpactPct float64        `json:"service_level_impact_pct"`
	SignalTitle           string         `json:"signal_title"`
	SimulatedAt           time.Time      `json:"simulated_at"`
}

// Result aggregates the scenarios of one cycle.
type Result struct {
	Scenarios              []Scenario `json:"scenarios"`
	WorstCaseDelayDays     float64    `json:"worst_case_delay_days"`
	WorstCaseAffectedNodes int        `json:"worst_case_affected_nodes"`
	NumberOfSimulations    int        `json:"number_of_simulations"`
	SimulatedAt            time.Time  `json:"simulation_timestamp"`
}

// Simulator applies disruptions to copies of a graph. It never mutates the
// graph it is given.
type Simulator struct {
	now     func() time.Time
	workers int
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock fixes the time source used for scenario timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithWorkers bounds the number of scenarios simulated concurrently.
func WithWorkers(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSimulator creates a Simulator.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{now: time.Now, workers: 4}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Simulate runs one risk against g. It fails with graph.ErrNotFound when the
// risk references a node missing from g.
func (s *Simulator) Simulate(g *graph.SupplyGraph, r risk.RiskRecord) (Scenario, error) {
	sc, _, err := s.SimulateDetailed(g, r)
	return sc, err
}

// SimulateDetailed is Simulate that also returns the disrupted working copy.
func (s *Simulator) SimulateDetailed(g *graph.SupplyGraph, r risk.RiskRecord) (Scenario, *graph.SupplyGraph, error) {
	origin := r.NodeID
	descendants, err := g.Descendants(origin)
	if err != nil {
		return Scenario{}, nil, fmt.Errorf("simulate %s: %w", origin, err)
	}

	severity := r.RiskScore
	tier := TierFor(severity)
	work := g.Copy()

	sc := Scenario{
		NodeID:          origin,
		SeverityUsed:    severity,
		CapacityLossPct: int(math.Round(tier.CapacityLoss * 100)),
		SignalTitle:     r.SignalTitle,
		SimulatedAt:     s.now().UTC(),
	}

	var affected []string
	if severity >= FailureThreshold {
		// Descendants were taken from g before removal; the node is gone from work.
		work.RemoveNode(origin)
		sc.DisruptionType = NodeFailure
		affected = append(descendants, origin)
	} else {
		if n := work.GetNode(origin); n != nil && n.Kind == graph.KindSource {
			if err := work.SetCapacity(origin, math.Max(0, n.Capacity*(1-tier.CapacityLoss))); err != nil {
				return Scenario{}, nil, fmt.Errorf("simulate %s: %w", origin, err)
			}
		}
		sc.DisruptionType = CapacityReduction
		post, err := work.Descendants(origin)
		if err != nil {
			return Scenario{}, nil, fmt.Errorf("simulate %s: %w", origin, err)
		}
		affected = append(post, origin)
	}
	sc.AffectedNodesCount = len(affected)

	maxDelay := 0.0
	for _, target := range affected {
		hops, err := g.ShortestPathLength(origin, target)
		if errors.Is(err, graph.ErrNoPath) {
			continue
		}
		if err != nil {
			return Scenario{}, nil, fmt.Errorf("simulate %s: %w", origin, err)
		}
		maxDelay = math.Max(maxDelay, float64(hops)*DelayDaysPerHop*tier.DelayMultiplier)
	}
	sc.EstimatedDelayDays = round1(maxDelay)

	originalReachable := len(descendants) + 1
	simReachable := len(affected)
	if sc.DisruptionType == NodeFailure {
		simReachable = 1
	}
	if originalReachable == 0 {
		sc.ServiceLevelImpactPct = 100.0
	} else {
		sc.ServiceLevelImpactPct = round1((1 - float64(simReachable)/float64(originalReachable)) * 100)
	}
	return sc, work, nil
}

// Run simulates the topN most severe risks concurrently, each on its own
// copy of g. Scenarios are returned in risk-severity order. A failed risk is
// left out of the result and its error is joined into the returned error;
// it never stops the other simulations.
func (s *Simulator) Run(ctx context.Context, g *graph.SupplyGraph, risks []risk.RiskRecord, topN int) (Result, error) {
	res := Result{SimulatedAt: s.now().UTC()}
	if len(risks) == 0 {
		return res, nil
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	selected := append([]risk.RiskRecord(nil), risks...)
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].RiskScore > selected[j].RiskScore
	})
	if len(selected) > topN {
		selected = selected[:topN]
	}

	scenarios := make([]Scenario, len(selected))
	errs := make([]error, len(selected))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for i, r := range selected {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			scenarios[i], errs[i] = s.Simulate(g, r)
			return nil // per-risk failures are isolated
		})
	}
	_ = eg.Wait()

	origins := make(map[string]struct{})
	for i, sc := range scenarios {
		if errs[i] != nil {
			continue
		}
		res.Scenarios = append(res.Scenarios, sc)
		origins[sc.NodeID] = struct{}{}
		res.WorstCaseDelayDays = math.Max(res.WorstCaseDelayDays, sc.EstimatedDelayDays)
	}
	res.WorstCaseDelayDays = round1(res.WorstCaseDelayDays)
	res.WorstCaseAffectedNodes = len(origins)
	res.NumberOfSimulations = len(res.Scenarios)
	return res, errors.Join(errs...)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
