package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func source(t *testing.T, id, country, material string) *Node {
	t.Helper()
	n, err := NewSourceNode(id, id+" Co", country, material, 100, 0.3)
	require.NoError(t, err)
	return n
}

func stage(t *testing.T, id string, kind NodeKind) *Node {
	t.Helper()
	n, err := NewStageNode(id, kind, id)
	require.NoError(t, err)
	return n
}

// chainGraph builds S1,S2 -> F001 -> W001 -> C001 with S3 -> W001.
func chainGraph(t *testing.T) *SupplyGraph {
	t.Helper()
	g := NewSupplyGraph()
	require.NoError(t, g.AddNode(stage(t, "F001", KindAssembly)))
	require.NoError(t, g.AddNode(stage(t, "W001", KindDistribution)))
	require.NoError(t, g.AddNode(stage(t, "C001", KindCustomer)))
	require.NoError(t, g.AddNode(source(t, "S1", "Taiwan", "Semiconductors")))
	require.NoError(t, g.AddNode(source(t, "S2", "Germany", "Steel")))
	require.NoError(t, g.AddNode(source(t, "S3", "Brazil", "Paper pulp")))
	require.NoError(t, g.AddEdge(&Edge{Source: "S1", Target: "F001", Material: "Semiconductors", Weight: 1}))
	require.NoError(t, g.AddEdge(&Edge{Source: "S2", Target: "F001", Material: "Steel", Weight: 1}))
	require.NoError(t, g.AddEdge(&Edge{Source: "S3", Target: "W001", Material: "Paper pulp", Weight: 0.8}))
	require.NoError(t, g.AddEdge(&Edge{Source: "F001", Target: "W001", Material: "Assembled Products", Weight: 1}))
	require.NoError(t, g.AddEdge(&Edge{Source: "W001", Target: "C001", Material: "Finished Goods", Weight: 1}))
	return g
}

func TestNewSupplyGraph(t *testing.T) {
	t.Parallel()

	g := NewSupplyGraph()

	assert.NotNil(t, g)
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.False(t, g.HasCycle())
}

func TestSupplyGraph_AddNode(t *testing.T) {
	t.Parallel()

	t.Run("AddMultiple", func(t *testing.T) {
		t.Parallel()
		g := chainGraph(t)

		assert.Equal(t, 6, g.NodeCount())
		assert.Equal(t, 3, g.CountByKind(KindSource))
		assert.Equal(t, 1, g.CountByKind(KindAssembly))
	})

	t.Run("ReplaceExisting", func(t *testing.T) {
		t.Parallel()
		g := NewSupplyGraph()
		require.NoError(t, g.AddNode(source(t, "S1", "Taiwan", "Semiconductors")))
		require.NoError(t, g.AddNode(stage(t, "F001", KindAssembly)))
		require.NoError(t, g.AddNode(source(t, "S1", "China", "Steel")))

		assert.Equal(t, 2, g.NodeCount())
		assert.Equal(t, "China", g.GetNode("S1").Country)
		assert.Equal(t, []string{"S1", "F001"}, ids(g.Nodes()))
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		t.Parallel()
		g := NewSupplyGraph()

		err := g.AddNode(&Node{ID: "S1", Kind: KindSource})
		assert.ErrorIs(t, err, ErrInvalidNode)
		assert.ErrorIs(t, g.AddNode(nil), ErrInvalidNode)
		assert.Equal(t, 0, g.NodeCount())
	})
}

func TestSupplyGraph_GetNodeReturnsCopy(t *testing.T) {
	t.Parallel()

	g := chainGraph(t)
	n := g.GetNode("S1")
	require.NotNil(t, n)
	n.Capacity = 0

	assert.InDelta(t, 100.0, g.GetNode("S1").Capacity, 1e-9)
	assert.Nil(t, g.GetNode("missing"))
}

func TestSupplyGraph_AddEdge(t *testing.T) {
	t.Parallel()

	t.Run("MissingEndpoint", func(t *testing.T) {
		t.Parallel()
		g := NewSupplyGraph()
		require.NoError(t, g.AddNode(stage(t, "F001", KindAssembly)))

		err := g.AddEdge(&Edge{Source: "S1", Target: "F001"})
		assert.ErrorIs(t, err, ErrNotFound)
		err = g.AddEdge(&Edge{Source: "F001", Target: "W001"})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 0, g.EdgeCount())
	})

	t.Run("ReplaceSamePair", func(t *testing.T) {
		t.Parallel()
		g := chainGraph(t)
		require.NoError(t, g.AddEdge(&Edge{Source: "S1", Target: "F001", Material: "Chips", Weight: 0.5}))

		assert.Equal(t, 5, g.EdgeCount())
		assert.Equal(t, "Chips", g.GetEdge("S1", "F001").Material)
	})
}

func TestSupplyGraph_RemoveNode(t *testing.T) {
	t.Parallel()

	g := chainGraph(t)

	assert.True(t, g.RemoveNode("F001"))
	assert.False(t, g.RemoveNode("F001"))
	assert.Equal(t, 5, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, 0, g.OutDegree("S1"))
	assert.Nil(t, g.GetEdge("F001", "W001"))
}

func TestSupplyGraph_SetCapacity(t *testing.T) {
	t.Parallel()

	g := chainGraph(t)

	require.NoError(t, g.SetCapacity("S1", 20))
	assert.InDelta(t, 20.0, g.GetNode("S1").Capacity, 1e-9)

	require.NoError(t, g.SetCapacity("S1", -5))
	assert.InDelta(t, 0.0, g.GetNode("S1").Capacity, 1e-9)

	assert.ErrorIs(t, g.SetCapacity("F001", 1), ErrInvalidNode)
	assert.ErrorIs(t, g.SetCapacity("nope", 1), ErrNotFound)
}

func TestSupplyGraph_NodesByKind(t *testing.T) {
	t.Parallel()

	g := chainGraph(t)

	assert.Equal(t, []string{"S1", "S2", "S3"}, ids(g.NodesByKind(KindSource)))
	assert.Nil(t, g.NodesByKind(NodeKind("port")))
}

func TestSupplyGraph_Edges(t *testing.T) {
	t.Parallel()

	g := chainGraph(t)
	edges := g.Edges()

	require.Len(t, edges, 5)
	assert.Equal(t, "F001", edges[0].Source)
	assert.Equal(t, "W001", edges[0].Target)
	assert.Equal(t, "S3", edges[4].Source)
}

func TestSupplyGraph_Copy(t *testing.T) {
	t.Parallel()

	g := chainGraph(t)
	c := g.Copy()

	require.NoError(t, c.SetCapacity("S1", 1))
	c.RemoveNode("W001")

	assert.InDelta(t, 100.0, g.GetNode("S1").Capacity, 1e-9)
	assert.True(t, g.HasNode("W001"))
	assert.Equal(t, 5, g.EdgeCount())
	assert.Equal(t, 5, c.NodeCount())
	assert.Equal(t, 2, c.EdgeCount())
	assert.Equal(t, ids(g.Nodes())[:3], []string{"F001", "W001", "C001"})
}

func TestSupplyGraph_StatsAndSnapshot(t *testing.T) {
	t.Parallel()

	g := chainGraph(t)
	s := g.Stats()

	assert.Equal(t, 6, s.NodeCount)
	assert.Equal(t, 5, s.EdgeCount)
	assert.Equal(t, 3, s.SourceCount)
	assert.False(t, s.HasCycles)
	assert.Equal(t, []string{"S1", "F001", "W001"}, s.CriticalNodes)
	assert.InDelta(t, 10.0/6.0, s.AvgDegree, 1e-9)

	snap := g.Snapshot()
	assert.Len(t, snap.Nodes, 6)
	assert.Len(t, snap.Edges, 5)
}

func ids(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}
