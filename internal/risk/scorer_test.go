package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/sentinel-go/internal/graph"
	"github.com/Benny93/sentinel-go/internal/topology"
)

func testGraph(t *testing.T, records ...topology.SourceRecord) *graph.SupplyGraph {
	t.Helper()
	g, dropped := topology.Build(records)
	require.Empty(t, dropped)
	return g
}

func sourceNode(t *testing.T, id, name, country, material string) *graph.Node {
	t.Helper()
	n, err := graph.NewSourceNode(id, name, country, material, 100, 0.5)
	require.NoError(t, err)
	return n
}

func TestExtractCategories(t *testing.T) {
	t.Parallel()

	s := NewScorer(nil)

	tests := []struct {
		name string
		text string
		want []Category
	}{
		{"Disaster", "taiwan earthquake disrupts chip factories", []Category{CategoryDisaster}},
		{"Multiple", "dock strike causes steel shortage", []Category{CategoryStrike, CategoryShortage}},
		{"Phrase", "new trade war looms", []Category{CategoryGeopolitical}},
		{"CaseInsensitive", "Port SHUTDOWN announced", []Category{CategoryStrike}},
		{"WholeWordOnly", "banana exports rise", []Category{CategoryGeneral}},
		{"Empty", "", []Category{CategoryGeneral}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, s.ExtractCategories(tt.text))
		})
	}
}

func TestExtractEntities(t *testing.T) {
	t.Parallel()

	s := NewScorer(nil)

	e := s.ExtractEntities("Chinese chipmakers and German steel mills")
	assert.Equal(t, []string{"China", "Germany"}, e.Countries)
	assert.Equal(t, []string{"Semiconductors", "Steel"}, e.Materials)

	e = s.ExtractEntities("nothing relevant here")
	assert.Empty(t, e.Countries)
	assert.Empty(t, e.Materials)
}

func TestScore(t *testing.T) {
	t.Parallel()

	s := NewScorer(nil)

	tests := []struct {
		name string
		node *graph.Node
		sig  Signal
		want float64
	}{
		{
			name: "CappedAtOne",
			node: sourceNode(t, "S1", "Fab", "Taiwan", "Semiconductors"),
			sig:  Signal{Title: "Taiwan earthquake disrupts chip factories", RelevanceScore: 0.9},
			want: 1.0,
		},
		{
			name: "MaterialCategoryBonus",
			node: sourceNode(t, "S2", "Mill", "Germany", "Steel"),
			sig:  Signal{Title: "Steel tariff dispute", RelevanceScore: 0.5},
			want: 0.80,
		},
		{
			name: "UnknownCountryDefaultsBaseline",
			node: sourceNode(t, "S3", "Mine", "Chile", "Lithium"),
			sig:  Signal{Title: "Chile mine flood", RelevanceScore: 0.5},
			want: 0.45,
		},
		{
			name: "NegativeRelevanceClamped",
			node: sourceNode(t, "S4", "Mill", "Sweden", "Steel"),
			sig:  Signal{Title: "quiet week", RelevanceScore: -4},
			want: 0.15,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, s.Score(tt.node, tt.sig), 1e-9)
		})
	}
}

func TestAffects(t *testing.T) {
	t.Parallel()

	s := NewScorer(nil)

	tests := []struct {
		name string
		node *graph.Node
		text string
		want bool
	}{
		{"CountryName", sourceNode(t, "S1", "X", "Brazil", "Paper pulp"), "brazil port closes", true},
		{"CountryAdjective", sourceNode(t, "S1", "X", "China", "Steel"), "chinese exports slow", true},
		{"SuffixFallback", sourceNode(t, "S1", "X", "Mali", "Gold"), "malinese output", true},
		{"MaterialFirstWord", sourceNode(t, "S1", "X", "Sweden", "Precision bearings"), "precision tools demand", true},
		{"MaterialNoSpace", sourceNode(t, "S1", "X", "Sweden", "Paper pulp"), "paperpulp prices", true},
		{"NameToken", sourceNode(t, "S1", "Ruhr Stahl", "Germany", "Steel"), "ruhr region floods", true},
		{"ShortTokenIgnored", sourceNode(t, "S1", "A & Z", "Sweden", "Cobalt"), "a day of calm", false},
		{"NoMatch", sourceNode(t, "S1", "Acme", "Sweden", "Cobalt"), "markets calm", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, s.Affects(tt.node, tt.text))
		})
	}
}

func TestFindAffectedNodes_TaiwanScenario(t *testing.T) {
	t.Parallel()

	g := testGraph(t, topology.SourceRecord{ID: "S1", Name: "Formosa Fab", Country: "Taiwan", Material: "Semiconductors", Capacity: 100, CountryRiskBaseline: 0.85})
	s := NewScorer(nil)

	risks := s.FindAffectedNodes(g, Signal{Title: "Taiwan earthquake disrupts chip factories", URL: "https://example.org/a", RelevanceScore: 0.9})

	require.Len(t, risks, 1)
	r := risks[0]
	assert.Equal(t, "S1", r.NodeID)
	assert.Equal(t, []Category{CategoryDisaster}, r.RiskTypes)
	assert.GreaterOrEqual(t, r.RiskScore, 0.8)
	assert.Equal(t, "https://example.org/a", r.SignalURL)
}

func TestFindAffectedNodes_IgnoresStageNodes(t *testing.T) {
	t.Parallel()

	g := testGraph(t)
	s := NewScorer(nil)

	risks := s.FindAffectedNodes(g, Signal{Title: "Main Assembly Factory fire at distribution warehouse"})
	assert.Empty(t, risks)
}

func TestAssess(t *testing.T) {
	t.Parallel()

	g := testGraph(t,
		topology.SourceRecord{ID: "S1", Name: "Formosa Fab", Country: "Taiwan", Material: "Semiconductors", Capacity: 100, CountryRiskBaseline: 0.85},
		topology.SourceRecord{ID: "S2", Name: "Ruhr Stahl", Country: "Germany", Material: "Steel", Capacity: 400, CountryRiskBaseline: 0.2},
		topology.SourceRecord{ID: "S3", Name: "Nordic", Country: "Sweden", Material: "Steel", Capacity: 50, CountryRiskBaseline: 0.15},
	)
	s := NewScorer(nil)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a := s.Assess(g, []Signal{
		{Title: "Steel tariff dispute", RelevanceScore: 0.5},
		{Title: "Taiwan earthquake disrupts chip factories", RelevanceScore: 0.9},
		{Title: "Calm markets"},
	}, now)

	require.Equal(t, 3, a.TotalRisks)
	assert.Equal(t, 3, a.SignalsAnalyzed)
	assert.Equal(t, now, a.AnalyzedAt)
	assert.InDelta(t, 1.0, a.MaxSeverity, 1e-9)
	assert.Equal(t, "S1", a.Risks[0].NodeID)
	assert.Equal(t, "S2", a.Risks[1].NodeID)
	assert.Equal(t, "S3", a.Risks[2].NodeID)
	for i := 1; i < len(a.Risks); i++ {
		assert.GreaterOrEqual(t, a.Risks[i-1].RiskScore, a.Risks[i].RiskScore)
	}
	assert.Len(t, a.Top(2), 2)
	assert.Len(t, a.Top(10), 3)
}

func TestAssess_EmptyTopology(t *testing.T) {
	t.Parallel()

	a := NewScorer(nil).Assess(testGraph(t), []Signal{{Title: "Taiwan earthquake"}}, time.Time{})

	assert.Empty(t, a.Risks)
	assert.Zero(t, a.MaxSeverity)
}

func TestScore_Properties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	s := NewScorer(nil)
	countries := []string{"China", "Taiwan", "Brazil", "Sweden", "Germany", "Chile"}
	materials := []string{"Semiconductors", "Steel", "Paper pulp", "Nuts & oils", "Precision bearings", "Cobalt"}
	words := []string{"taiwan", "chip", "earthquake", "tariff", "strike", "shortage", "steel", "chinese", "fire", "calm", "oil"}

	properties.Property("score is bounded and deterministic", prop.ForAll(
		func(ci, mi int, picks []int, rel float64) bool {
			n := &graph.Node{ID: "S", Kind: graph.KindSource, Name: "n", Country: countries[ci], Material: materials[mi], Capacity: 1}
			parts := make([]string, 0, len(picks))
			for _, p := range picks {
				parts = append(parts, words[p])
			}
			sig := Signal{Title: strings.Join(parts, " "), RelevanceScore: rel}
			first := s.Score(n, sig)
			return first >= 0 && first <= 1 && first == s.Score(n, sig)
		},
		gen.IntRange(0, len(countries)-1),
		gen.IntRange(0, len(materials)-1),
		gen.SliceOf(gen.IntRange(0, len(words)-1)),
		gen.Float64Range(-1, 2),
	))

	properties.TestingRun(t)
}
