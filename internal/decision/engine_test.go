package decision

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/sentinel-go/internal/risk"
	"github.com/Benny93/sentinel-go/internal/simulation"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func rec(id, country, material string, score float64) risk.RiskRecord {
	return risk.RiskRecord{NodeID: id, Name: id + " Co", Country: country, Material: material, RiskScore: score}
}

func scen(id string, typ simulation.DisruptionType, delay, impact float64, affected int) simulation.Scenario {
	return simulation.Scenario{
		NodeID:                id,
		DisruptionType:        typ,
		EstimatedDelayDays:    delay,
		ServiceLevelImpactPct: impact,
		AffectedNodesCount:    affected,
	}
}

func TestEngine_Actions(t *testing.T) {
	t.Parallel()

	e := NewEngine()

	tests := []struct {
		name string
		risk risk.RiskRecord
		sc   simulation.Scenario
		want []Action
	}{
		{
			name: "CriticalNodeFailureHighTension",
			risk: rec("S1", "Taiwan", "Semiconductors", 1.0),
			sc:   scen("S1", simulation.NodeFailure, 13.5, 75, 4),
			want: []Action{ExpediteShipment, ActivateAlternativeSource, DiversifySuppliers},
		},
		{
			name: "CriticalCapacityReductionByDelay",
			risk: rec("S2", "Germany", "Steel", 0.5),
			sc:   scen("S2", simulation.CapacityReduction, 15, 0, 4),
			want: []Action{IncreaseSafetyStock, ActivateAlternativeSource},
		},
		{
			name: "HighNearTermDelayManyAffected",
			risk: rec("S3", "Brazil", "Paper pulp", 0.7),
			sc:   scen("S3", simulation.CapacityReduction, 4.2, 0, 3),
			want: []Action{IncreaseSafetyStock, ActivateAlternativeSource},
		},
		{
			name: "HighRiskyCountryFewAffected",
			risk: rec("S4", "South Korea", "Cobalt", 0.7),
			sc:   scen("S4", simulation.CapacityReduction, 0, 0, 2),
			want: []Action{NotifyProcurement, DiversifySuppliers},
		},
		{
			name: "Medium",
			risk: rec("S5", "Sweden", "Nuts & oils", 0.45),
			sc:   scen("S5", simulation.CapacityReduction, 3, 0, 3),
			want: []Action{NotifyProcurement, IncreaseMonitoring},
		},
		{
			name: "MediumCriticalMaterialUpgrades",
			risk: rec("S6", "Germany", "Steel", 0.45),
			sc:   scen("S6", simulation.CapacityReduction, 3, 0, 3),
			want: []Action{NotifyProcurement},
		},
		{
			name: "LowDowngradedToNothing",
			risk: rec("S7", "Germany", "Steel", 0.2),
			sc:   scen("S7", simulation.CapacityReduction, 2.1, 0, 3),
			want: []Action{DoNothing},
		},
		{
			name: "LowMonitorOnly",
			risk: rec("S8", "Sweden", "Cobalt", 0.3),
			sc:   scen("S8", simulation.CapacityReduction, 4.2, 0, 3),
			want: []Action{IncreaseMonitoring},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, e.Actions(tt.risk, tt.sc))
		})
	}
}

func TestEngine_Confidence(t *testing.T) {
	t.Parallel()

	e := NewEngine()

	assert.InDelta(t, 1.0, e.Confidence(rec("S1", "Taiwan", "Semiconductors", 1.0), scen("S1", simulation.NodeFailure, 13.5, 75, 4)), 1e-9)
	assert.InDelta(t, 0.92, e.Confidence(rec("S3", "Brazil", "Paper pulp", 0.7), scen("S3", simulation.CapacityReduction, 4.2, 0, 3)), 1e-9)
	// Unknown material and country fall back to rating 2.
	assert.InDelta(t, 0.16, e.Confidence(rec("S9", "Atlantis", "Unobtainium", 0), scen("S9", simulation.CapacityReduction, 0, 0, 1)), 1e-9)
}

func TestEngine_Decide(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	d := e.Decide(rec("S1", "Taiwan", "Semiconductors", 1.0), scen("S1", simulation.NodeFailure, 13.5, 75, 4))

	assert.Equal(t, ExpediteShipment, d.PrimaryAction)
	assert.Equal(t, "S1 Co", d.Name)
	assert.InDelta(t, 13.5, d.DelayDays, 1e-9)
	assert.Equal(t, 4, d.AffectedNodesCount)
	require.Len(t, d.RecommendedActions, 3)

	first := d.RecommendedActions[0]
	assert.Equal(t, 5, first.Urgency)
	assert.Equal(t, 0, first.LeadTimeDays)
	assert.Equal(t, Catalog[ExpediteShipment].Description, first.Description)
	for _, r := range d.RecommendedActions {
		assert.InDelta(t, d.Confidence, r.EstimatedConfidence, 1e-9)
	}
	assert.Equal(t, 180, d.RecommendedActions[2].LeadTimeDays)
	assert.True(t, e.IsHighRisk(d))
}

func TestEngine_Decide_NameFallsBackToID(t *testing.T) {
	t.Parallel()

	d := NewEngine().Decide(risk.RiskRecord{NodeID: "S1", RiskScore: 0.1}, scen("S1", simulation.CapacityReduction, 0, 0, 1))
	assert.Equal(t, "S1", d.Name)
	assert.Equal(t, DoNothing, d.PrimaryAction)
}

func TestEngine_Run(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	risks := []risk.RiskRecord{
		rec("S1", "Taiwan", "Semiconductors", 1.0),
		rec("S3", "Brazil", "Paper pulp", 0.7),
		{NodeID: "S1", Name: "Shadow", Country: "Sweden", Material: "Cobalt", RiskScore: 0.1},
	}
	scenarios := []simulation.Scenario{
		scen("S3", simulation.CapacityReduction, 4.2, 0, 3),
		scen("S1", simulation.NodeFailure, 13.5, 75, 4),
		scen("ghost", simulation.NodeFailure, 1, 1, 1),
	}

	res := e.Run(risks, scenarios, now)

	require.Equal(t, 2, res.DecisionCount)
	assert.Equal(t, "S1", res.Decisions[0].NodeID)
	assert.Equal(t, "S1 Co", res.Decisions[0].Name)
	assert.Equal(t, "S3", res.Decisions[1].NodeID)
	assert.InDelta(t, 0.96, res.OverallConfidence, 1e-9)
	assert.Equal(t, ExpediteShipment, res.TopRecommendation)
	assert.Equal(t, now, res.DecidedAt)
}

func TestEngine_Run_OverallUsesTopThree(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	var risks []risk.RiskRecord
	var scenarios []simulation.Scenario
	for i, score := range []float64{1.0, 1.0, 1.0, 0} {
		id := string(rune('A' + i))
		risks = append(risks, rec(id, "Taiwan", "Semiconductors", score))
		scenarios = append(scenarios, scen(id, simulation.NodeFailure, 13.5, 75, 4))
	}

	res := e.Run(risks, scenarios, now)

	require.Equal(t, 4, res.DecisionCount)
	assert.InDelta(t, 1.0, res.OverallConfidence, 1e-9)
}

func TestEngine_Run_EmptySentinel(t *testing.T) {
	t.Parallel()

	e := NewEngine()

	tests := []struct {
		name      string
		risks     []risk.RiskRecord
		scenarios []simulation.Scenario
	}{
		{"NoRisks", nil, []simulation.Scenario{scen("S1", simulation.NodeFailure, 1, 1, 1)}},
		{"NoScenarios", []risk.RiskRecord{rec("S1", "Taiwan", "Steel", 0.5)}, nil},
		{"NothingMatches", []risk.RiskRecord{rec("S1", "Taiwan", "Steel", 0.5)}, []simulation.Scenario{scen("S2", simulation.NodeFailure, 1, 1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := e.Run(tt.risks, tt.scenarios, now)
			assert.Empty(t, res.Decisions)
			assert.Zero(t, res.DecisionCount)
			assert.Zero(t, res.OverallConfidence)
			assert.Equal(t, DoNothing, res.TopRecommendation)
		})
	}
}

func TestEngine_Properties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	e := NewEngine()
	materials := []string{"Semiconductors", "Steel", "Paper pulp", "Nuts & oils", "Precision bearings", "Cobalt"}
	countries := []string{"China", "Taiwan", "Brazil", "Sweden", "Germany", "South Korea", "Chile"}

	properties.Property("action sets are non-empty, unique and urgency ordered", prop.ForAll(
		func(severity, delay, impact float64, affected, mi, ci int, failure bool) bool {
			typ := simulation.CapacityReduction
			if failure {
				typ = simulation.NodeFailure
			}
			d := e.Decide(rec("S", countries[ci], materials[mi], severity), scen("S", typ, delay, impact, affected))
			if len(d.RecommendedActions) == 0 || d.Confidence < 0 || d.Confidence > 1 {
				return false
			}
			seen := map[Action]bool{}
			for i, r := range d.RecommendedActions {
				if seen[r.Action] {
					return false
				}
				seen[r.Action] = true
				if i > 0 && r.Urgency > d.RecommendedActions[i-1].Urgency {
					return false
				}
			}
			return d.PrimaryAction == d.RecommendedActions[0].Action
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 30),
		gen.Float64Range(0, 100),
		gen.IntRange(1, 10),
		gen.IntRange(0, len(materials)-1),
		gen.IntRange(0, len(countries)-1),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestActions_CoverCatalogInUrgencyOrder(t *testing.T) {
	t.Parallel()

	actions := Actions()
	assert.Len(t, actions, len(Catalog))
	for i, a := range actions {
		entry, ok := Catalog[a]
		require.True(t, ok, a)
		if i > 0 {
			assert.GreaterOrEqual(t, entry.Urgency, Catalog[actions[i-1]].Urgency)
		}
	}
}
