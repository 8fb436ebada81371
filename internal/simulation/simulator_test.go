package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/sentinel-go/internal/graph"
	"github.com/Benny93/sentinel-go/internal/risk"
	"github.com/Benny93/sentinel-go/internal/topology"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testGraph(t *testing.T) *graph.SupplyGraph {
	t.Helper()
	g, dropped := topology.Build([]topology.SourceRecord{
		{ID: "S1", Name: "Formosa Fab", Country: "Taiwan", Material: "Semiconductors", Capacity: 100, CountryRiskBaseline: 0.85},
		{ID: "S2", Name: "Ruhr Stahl", Country: "Germany", Material: "Steel", Capacity: 100, CountryRiskBaseline: 0.2},
		{ID: "S3", Name: "Suzano", Country: "Brazil", Material: "Paper pulp", Capacity: 100, CountryRiskBaseline: 0.45},
	})
	require.Empty(t, dropped)
	return g
}

func newTestSimulator() *Simulator {
	return NewSimulator(WithClock(func() time.Time { return fixedNow }), WithWorkers(2))
}

func TestTierFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity float64
		loss     float64
		mult     float64
	}{
		{1.0, 0.8, 1.5},
		{0.8, 0.8, 1.5},
		{0.79, 0.4, 1.0},
		{0.5, 0.4, 1.0},
		{0.49, 0.2, 0.7},
		{0, 0.2, 0.7},
	}
	for _, tt := range tests {
		tier := TierFor(tt.severity)
		assert.InDelta(t, tt.loss, tier.CapacityLoss, 1e-9, "severity %v", tt.severity)
		assert.InDelta(t, tt.mult, tier.DelayMultiplier, 1e-9, "severity %v", tt.severity)
	}
}

func TestSimulate_NodeFailure(t *testing.T) {
	t.Parallel()

	g := testGraph(t)
	sc, work, err := newTestSimulator().SimulateDetailed(g, risk.RiskRecord{NodeID: "S1", RiskScore: 0.95, SignalTitle: "quake"})
	require.NoError(t, err)

	assert.Equal(t, NodeFailure, sc.DisruptionType)
	assert.Equal(t, 80, sc.CapacityLossPct)
	assert.Equal(t, 4, sc.AffectedNodesCount)
	assert.InDelta(t, 13.5, sc.EstimatedDelayDays, 1e-9)
	assert.InDelta(t, 75.0, sc.ServiceLevelImpactPct, 1e-9)
	assert.Equal(t, "quake", sc.SignalTitle)
	assert.Equal(t, fixedNow, sc.SimulatedAt)

	assert.False(t, work.HasNode("S1"))
	assert.True(t, g.HasNode("S1"), "canonical graph must not change")
	assert.Equal(t, 5, g.EdgeCount())
}

func TestSimulate_CapacityReduction(t *testing.T) {
	t.Parallel()

	g := testGraph(t)

	t.Run("Moderate", func(t *testing.T) {
		t.Parallel()
		sc, work, err := newTestSimulator().SimulateDetailed(g, risk.RiskRecord{NodeID: "S1", RiskScore: 0.6})
		require.NoError(t, err)

		assert.Equal(t, CapacityReduction, sc.DisruptionType)
		assert.Equal(t, 40, sc.CapacityLossPct)
		assert.Equal(t, 4, sc.AffectedNodesCount)
		assert.InDelta(t, 9.0, sc.EstimatedDelayDays, 1e-9)
		assert.InDelta(t, 0.0, sc.ServiceLevelImpactPct, 1e-9)
		assert.InDelta(t, 60.0, work.GetNode("S1").Capacity, 1e-9)
		assert.InDelta(t, 100.0, g.GetNode("S1").Capacity, 1e-9)
	})

	t.Run("Low", func(t *testing.T) {
		t.Parallel()
		sc, work, err := newTestSimulator().SimulateDetailed(g, risk.RiskRecord{NodeID: "S3", RiskScore: 0.3})
		require.NoError(t, err)

		assert.Equal(t, 3, sc.AffectedNodesCount)
		assert.InDelta(t, 4.2, sc.EstimatedDelayDays, 1e-9)
		assert.InDelta(t, 80.0, work.GetNode("S3").Capacity, 1e-9)
	})

	t.Run("StageNode", func(t *testing.T) {
		t.Parallel()
		sc, err := newTestSimulator().Simulate(g, risk.RiskRecord{NodeID: topology.AssemblyID, RiskScore: 0.5})
		require.NoError(t, err)

		assert.Equal(t, CapacityReduction, sc.DisruptionType)
		assert.Equal(t, 3, sc.AffectedNodesCount)
		assert.InDelta(t, 6.0, sc.EstimatedDelayDays, 1e-9)
	})
}

func TestSimulate_NotFound(t *testing.T) {
	t.Parallel()

	_, err := newTestSimulator().Simulate(testGraph(t), risk.RiskRecord{NodeID: "missing", RiskScore: 0.5})
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestRun(t *testing.T) {
	t.Parallel()

	g := testGraph(t)
	risks := []risk.RiskRecord{
		{NodeID: "S3", RiskScore: 0.3},
		{NodeID: "S1", RiskScore: 0.95},
		{NodeID: "S2", RiskScore: 0.6},
		{NodeID: "ghost", RiskScore: 0.99},
	}

	res, err := newTestSimulator().Run(context.Background(), g, risks, 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrNotFound)
	require.Len(t, res.Scenarios, 3)
	assert.Equal(t, "S1", res.Scenarios[0].NodeID)
	assert.Equal(t, "S2", res.Scenarios[1].NodeID)
	assert.Equal(t, "S3", res.Scenarios[2].NodeID)
	assert.InDelta(t, 13.5, res.WorstCaseDelayDays, 1e-9)
	assert.Equal(t, 3, res.WorstCaseAffectedNodes)
	assert.Equal(t, 3, res.NumberOfSimulations)
	assert.Equal(t, fixedNow, res.SimulatedAt)
}

func TestRun_TopN(t *testing.T) {
	t.Parallel()

	g := testGraph(t)
	risks := []risk.RiskRecord{
		{NodeID: "S3", RiskScore: 0.3},
		{NodeID: "S1", RiskScore: 0.6},
		{NodeID: "S2", RiskScore: 0.6},
	}

	res, err := newTestSimulator().Run(context.Background(), g, risks, 2)
	require.NoError(t, err)

	require.Len(t, res.Scenarios, 2)
	assert.Equal(t, "S1", res.Scenarios[0].NodeID)
	assert.Equal(t, "S2", res.Scenarios[1].NodeID)
}

func TestRun_Empty(t *testing.T) {
	t.Parallel()

	res, err := newTestSimulator().Run(context.Background(), testGraph(t), nil, 0)
	require.NoError(t, err)

	assert.Empty(t, res.Scenarios)
	assert.Zero(t, res.WorstCaseDelayDays)
	assert.Zero(t, res.NumberOfSimulations)
}

func TestSimulate_Properties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	g := testGraph(t)
	nodeIDs := []string{"S1", "S2", "S3", topology.AssemblyID, topology.DistributionID, topology.CustomerID}
	sim := newTestSimulator()

	properties.Property("scenario stays within bounds and canonical graph is untouched", prop.ForAll(
		func(idx int, severity float64) bool {
			id := nodeIDs[idx]
			sc, work, err := sim.SimulateDetailed(g, risk.RiskRecord{NodeID: id, RiskScore: severity})
			if err != nil {
				return false
			}
			if sc.ServiceLevelImpactPct < 0 || sc.ServiceLevelImpactPct > 100 || sc.EstimatedDelayDays < 0 {
				return false
			}
			if !g.HasNode(id) || g.NodeCount() != 6 {
				return false
			}
			if severity >= FailureThreshold {
				return sc.DisruptionType == NodeFailure && !work.HasNode(id)
			}
			n := work.GetNode(id)
			return sc.DisruptionType == CapacityReduction && n != nil && n.Capacity >= 0
		},
		gen.IntRange(0, len(nodeIDs)-1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
