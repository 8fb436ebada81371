package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/Benny93/sentinel-go/internal/decision"
	"github.com/Benny93/sentinel-go/internal/graph"
	"github.com/Benny93/sentinel-go/internal/risk"
	"github.com/Benny93/sentinel-go/internal/simulation"
	"github.com/Benny93/sentinel-go/internal/topology"
)

// ErrNoRecordedRisk is returned by WhatIf when no severity is given and the
// cycle recorded no risk for the node.
var ErrNoRecordedRisk = errors.New("no recorded risk for node")

// WhatIfResult is the outcome of disrupting one node of a recorded cycle.
type WhatIfResult struct {
	Node     graph.Node          `json:"node"`
	Risk     risk.RiskRecord     `json:"risk"`
	Scenario simulation.Scenario `json:"scenario"`
	Decision decision.Decision   `json:"decision"`
}

// WhatIf rebuilds the topology of res and simulates a disruption of nodeID
// at the given severity. A zero severity reuses the most severe risk the
// cycle recorded for the node. res itself is not modified.
func WhatIf(res *CycleResult, nodeID string, severity float64, now time.Time) (WhatIfResult, error) {
	if severity < 0 || severity > 1 {
		return WhatIfResult{}, fmt.Errorf("severity %v outside (0,1]", severity)
	}

	g, _ := topology.Build(res.Sources)
	node := g.GetNode(nodeID)
	if node == nil {
		return WhatIfResult{}, fmt.Errorf("what-if %s: %w", nodeID, graph.ErrNotFound)
	}

	rec := risk.RiskRecord{
		NodeID:      node.ID,
		Name:        node.Name,
		Country:     node.Country,
		Material:    node.Material,
		RiskScore:   severity,
		SignalTitle: "what-if",
	}
	if severity == 0 {
		recorded, ok := mostSevere(res.Risk.Risks, node.ID)
		if !ok {
			return WhatIfResult{}, fmt.Errorf("what-if %s: %w", nodeID, ErrNoRecordedRisk)
		}
		rec = recorded
	}

	sc, err := simulation.NewSimulator(simulation.WithClock(func() time.Time { return now })).Simulate(g, rec)
	if err != nil {
		return WhatIfResult{}, err
	}

	return WhatIfResult{
		Node:     *node,
		Risk:     rec,
		Scenario: sc,
		Decision: decision.NewEngine().Decide(rec, sc),
	}, nil
}

// mostSevere relies on risks being sorted by score descending.
func mostSevere(risks []risk.RiskRecord, nodeID string) (risk.RiskRecord, bool) {
	for _, r := range risks {
		if r.NodeID == nodeID {
			return r, true
		}
	}
	return risk.RiskRecord{}, false
}
