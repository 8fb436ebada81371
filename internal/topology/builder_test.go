package topology

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/sentinel-go/internal/graph"
)

func roster() []SourceRecord {
	return []SourceRecord{
		{ID: "S001", Name: "TSMC Partner", Country: "Taiwan", Material: "Semiconductors", Capacity: 100, CountryRiskBaseline: 0.85},
		{ID: "S002", Name: "Ruhr Stahl", Country: "Germany", Material: "Steel", Capacity: 400, CountryRiskBaseline: 0.2},
		{ID: "S003", Name: "Suzano Pulp", Country: "Brazil", Material: "Paper pulp", Capacity: 800, CountryRiskBaseline: 0.45},
		{ID: "S004", Name: "Nordic Bearings", Country: "Sweden", Material: "Precision bearings", Capacity: 50, CountryRiskBaseline: 0.15},
		{ID: "S005", Name: "Shandong Nuts", Country: "China", Material: "Nuts & oils", Capacity: 300, CountryRiskBaseline: 0.75},
	}
}

func TestBuild_EmptyRoster(t *testing.T) {
	t.Parallel()

	g, dropped := Build(nil)

	assert.Empty(t, dropped)
	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, 0, g.CountByKind(graph.KindSource))
	assert.NotNil(t, g.GetEdge(AssemblyID, DistributionID))
	assert.NotNil(t, g.GetEdge(DistributionID, CustomerID))
}

func TestBuild_Routing(t *testing.T) {
	t.Parallel()

	g, dropped := Build(roster())
	require.Empty(t, dropped)

	assert.Equal(t, 8, g.NodeCount())
	assert.Equal(t, 7, g.EdgeCount())
	assert.False(t, g.HasCycle())

	tests := []struct {
		id     string
		target string
		weight float64
	}{
		{"S001", AssemblyID, 1.0},
		{"S002", AssemblyID, 1.0},
		{"S003", DistributionID, 0.8},
		{"S004", AssemblyID, 1.0},
		{"S005", DistributionID, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			e := g.GetEdge(tt.id, tt.target)
			require.NotNil(t, e)
			assert.InDelta(t, tt.weight, e.Weight, 1e-9)
			assert.Equal(t, 1, g.OutDegree(tt.id))
		})
	}
}

func TestBuild_UnroutedMaterial(t *testing.T) {
	t.Parallel()

	g, dropped := Build([]SourceRecord{{ID: "S9", Name: "Lithium Co", Country: "Chile", Material: "Lithium", Capacity: 10, CountryRiskBaseline: 0.3}})

	assert.Empty(t, dropped)
	assert.True(t, g.HasNode("S9"))
	assert.Equal(t, 0, g.OutDegree("S9"))
}

func TestBuild_MultipleRoutes(t *testing.T) {
	t.Parallel()

	routes := []Route{
		{Target: AssemblyID, Weight: 1.0, Materials: []string{"Steel"}},
		{Target: DistributionID, Weight: 0.5, Materials: []string{"Steel"}},
	}
	g, dropped := NewBuilder(routes).Build([]SourceRecord{{ID: "S1", Name: "x", Country: "Germany", Material: "Steel", Capacity: 1}})

	assert.Empty(t, dropped)
	assert.Equal(t, 2, g.OutDegree("S1"))
}

func TestBuild_DropsInvalidRecords(t *testing.T) {
	t.Parallel()

	records := append(roster(),
		SourceRecord{ID: "", Name: "NoID", Country: "China", Material: "Steel"},
		SourceRecord{ID: "S010", Name: "NoCountry", Material: "Steel"},
		SourceRecord{ID: "S011", Name: "Neg", Country: "China", Material: "Steel", Capacity: -3},
		SourceRecord{ID: "S012", Name: "Hi", Country: "China", Material: "Steel", CountryRiskBaseline: 2},
		SourceRecord{ID: "S001", Name: "Dup", Country: "China", Material: "Steel"},
		SourceRecord{ID: AssemblyID, Name: "Clash", Country: "China", Material: "Steel"},
	)

	g, dropped := Build(records)

	require.Len(t, dropped, 6)
	for _, err := range dropped {
		assert.ErrorIs(t, err, ErrInvalidRecord)
	}
	assert.Equal(t, 8, g.NodeCount())
	assert.Equal(t, "TSMC Partner", g.GetNode("S001").Name)
	assert.Equal(t, graph.KindAssembly, g.GetNode(AssemblyID).Kind)
}

func TestSourceRecord_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, roster()[0].Validate())

	err := SourceRecord{ID: "S1"}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Contains(t, err.Error(), "Country")
}

func TestBuild_Properties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	materials := []string{"Steel", "Semiconductors", "Precision bearings", "Paper pulp", "Nuts & oils", "Cobalt"}

	properties.Property("node count is sources plus skeleton and graph is acyclic", prop.ForAll(
		func(picks []int) bool {
			records := make([]SourceRecord, 0, len(picks))
			for i, m := range picks {
				records = append(records, SourceRecord{
					ID: fmt.Sprintf("S%03d", i), Name: "n", Country: "Taiwan", Material: materials[m], Capacity: 1, CountryRiskBaseline: 0.5,
				})
			}
			g, dropped := Build(records)
			return len(dropped) == 0 &&
				g.NodeCount() == len(records)+3 &&
				!g.HasCycle()
		},
		gen.SliceOf(gen.IntRange(0, len(materials)-1)),
	))

	properties.TestingRun(t)
}
