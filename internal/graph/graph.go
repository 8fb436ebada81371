// Package graph provides the in-memory supply graph for Sentinel.
//
// SupplyGraph is a lightweight, map-backed directed graph with O(1) lookups
// by node ID and adjacency indexes in both directions. Iteration follows node
// insertion order so every query is deterministic for a given build sequence.
package graph

import (
	"fmt"
	"sort"
	"sync"
)

// SupplyGraph is an in-memory directed graph of supply nodes and material
// edges. At most one edge exists per ordered node pair; adding a second one
// replaces the first. Removing a node cascades to its edges.
type SupplyGraph struct {
	mu        sync.RWMutex
	nodes     map[string]*Node
	seq       map[string]int
	nextSeq   int
	edgeCount int

	// Adjacency indexes, kept in sync by add/remove helpers.
	byKind   map[NodeKind]map[string]*Node
	outgoing map[string]map[string]*Edge
	incoming map[string]map[string]*Edge
}

// NewSupplyGraph creates a new empty supply graph.
func NewSupplyGraph() *SupplyGraph {
	return &SupplyGraph{
		nodes:    make(map[string]*Node),
		seq:      make(map[string]int),
		byKind:   make(map[NodeKind]map[string]*Node),
		outgoing: make(map[string]map[string]*Edge),
		incoming: make(map[string]map[string]*Edge),
	}
}

// NodeCount returns the number of nodes.
func (g *SupplyGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *SupplyGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeCount
}

// CountByKind returns the number of nodes of the given kind.
func (g *SupplyGraph) CountByKind(kind NodeKind) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byKind[kind])
}

// AddNode validates and adds a node, replacing any node with the same ID.
// A replaced node keeps its original position in iteration order.
func (g *SupplyGraph) AddNode(node *Node) error {
	if node == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidNode)
	}
	if err := node.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.nodes[node.ID]; ok {
		delete(g.byKind[old.Kind], node.ID)
	} else {
		g.seq[node.ID] = g.nextSeq
		g.nextSeq++
	}

	stored := *node
	g.nodes[node.ID] = &stored

	if g.byKind[node.Kind] == nil {
		g.byKind[node.Kind] = make(map[string]*Node)
	}
	g.byKind[node.Kind][node.ID] = &stored
	return nil
}

// HasNode reports whether a node with the given ID exists.
func (g *SupplyGraph) HasNode(nodeID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[nodeID]
	return ok
}

// GetNode returns a copy of the node with the given ID, or nil if absent.
func (g *SupplyGraph) GetNode(nodeID string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil
	}
	cp := *n
	return &cp
}

// RemoveNode removes a node and every edge that references it.
// Returns true if the node existed.
func (g *SupplyGraph) RemoveNode(nodeID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[nodeID]
	if !ok {
		return false
	}

	delete(g.nodes, nodeID)
	delete(g.seq, nodeID)
	delete(g.byKind[node.Kind], nodeID)

	for target := range g.outgoing[nodeID] {
		delete(g.incoming[target], nodeID)
		g.edgeCount--
	}
	delete(g.outgoing, nodeID)

	for source := range g.incoming[nodeID] {
		delete(g.outgoing[source], nodeID)
		g.edgeCount--
	}
	delete(g.incoming, nodeID)
	return true
}

// SetCapacity updates the capacity of a source node.
func (g *SupplyGraph) SetCapacity(nodeID string, capacity float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[nodeID]
	if !ok {
		return fmt.Errorf("set capacity %s: %w", nodeID, ErrNotFound)
	}
	if n.Kind != KindSource {
		return fmt.Errorf("%w: %s node %s has no capacity", ErrInvalidNode, n.Kind, nodeID)
	}
	if capacity < 0 {
		capacity = 0
	}
	n.Capacity = capacity
	return nil
}

// AddEdge adds a directed edge. Both endpoints must already exist.
func (g *SupplyGraph) AddEdge(edge *Edge) error {
	if edge == nil {
		return fmt.Errorf("add edge: nil edge")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[edge.Source]; !ok {
		return fmt.Errorf("add edge %s->%s: source %w", edge.Source, edge.Target, ErrNotFound)
	}
	if _, ok := g.nodes[edge.Target]; !ok {
		return fmt.Errorf("add edge %s->%s: target %w", edge.Source, edge.Target, ErrNotFound)
	}

	stored := *edge
	if g.outgoing[edge.Source] == nil {
		g.outgoing[edge.Source] = make(map[string]*Edge)
	}
	if _, exists := g.outgoing[edge.Source][edge.Target]; !exists {
		g.edgeCount++
	}
	g.outgoing[edge.Source][edge.Target] = &stored

	if g.incoming[edge.Target] == nil {
		g.incoming[edge.Target] = make(map[string]*Edge)
	}
	g.incoming[edge.Target][edge.Source] = &stored
	return nil
}

// GetEdge returns a copy of the edge from source to target, or nil.
func (g *SupplyGraph) GetEdge(source, target string) *Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.outgoing[source][target]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// Nodes returns copies of all nodes in insertion order.
func (g *SupplyGraph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.orderedIDs(g.nodes)
	result := make([]*Node, 0, len(ids))
	for _, id := range ids {
		cp := *g.nodes[id]
		result = append(result, &cp)
	}
	return result
}

// NodesByKind returns copies of all nodes of the given kind in insertion order.
func (g *SupplyGraph) NodesByKind(kind NodeKind) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes, ok := g.byKind[kind]
	if !ok {
		return nil
	}
	ids := g.orderedIDs(nodes)
	result := make([]*Node, 0, len(ids))
	for _, id := range ids {
		cp := *nodes[id]
		result = append(result, &cp)
	}
	return result
}

// Edges returns copies of all edges ordered by source then target insertion order.
func (g *SupplyGraph) Edges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Edge, 0, g.edgeCount)
	for _, src := range g.orderedIDs(g.nodes) {
		for _, tgt := range g.successorsLocked(src) {
			cp := *g.outgoing[src][tgt]
			result = append(result, &cp)
		}
	}
	return result
}

// Successors returns the IDs of the direct downstream neighbours of a node.
func (g *SupplyGraph) Successors(nodeID string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.nodes[nodeID]; !ok {
		return nil, fmt.Errorf("successors of %s: %w", nodeID, ErrNotFound)
	}
	return g.successorsLocked(nodeID), nil
}

// OutDegree returns the number of outgoing edges of a node (0 if absent).
func (g *SupplyGraph) OutDegree(nodeID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.outgoing[nodeID])
}

// Copy returns an independent deep clone of the graph.
func (g *SupplyGraph) Copy() *SupplyGraph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c := NewSupplyGraph()
	c.nextSeq = g.nextSeq
	c.edgeCount = g.edgeCount
	for id, n := range g.nodes {
		cp := *n
		c.nodes[id] = &cp
		c.seq[id] = g.seq[id]
		if c.byKind[cp.Kind] == nil {
			c.byKind[cp.Kind] = make(map[string]*Node)
		}
		c.byKind[cp.Kind][id] = &cp
	}
	for src, targets := range g.outgoing {
		for tgt, e := range targets {
			cp := *e
			if c.outgoing[src] == nil {
				c.outgoing[src] = make(map[string]*Edge)
			}
			c.outgoing[src][tgt] = &cp
			if c.incoming[tgt] == nil {
				c.incoming[tgt] = make(map[string]*Edge)
			}
			c.incoming[tgt][src] = &cp
		}
	}
	return c
}

// Snapshot returns a serializable listing of the graph.
func (g *SupplyGraph) Snapshot() Snapshot {
	nodes := g.Nodes()
	edges := g.Edges()
	s := Snapshot{
		Nodes: make([]Node, 0, len(nodes)),
		Edges: make([]Edge, 0, len(edges)),
	}
	for _, n := range nodes {
		s.Nodes = append(s.Nodes, *n)
	}
	for _, e := range edges {
		s.Edges = append(s.Edges, *e)
	}
	return s
}

// Stats returns a summary of graph size and shape.
func (g *SupplyGraph) Stats() Stats {
	nodes := g.NodeCount()
	edges := g.EdgeCount()
	s := Stats{
		NodeCount:     nodes,
		EdgeCount:     edges,
		SourceCount:   g.CountByKind(KindSource),
		HasCycles:     g.HasCycle(),
		CriticalNodes: g.CriticalNodes(),
	}
	if nodes > 0 {
		s.AvgDegree = float64(2*edges) / float64(nodes)
	}
	return s
}

// orderedIDs returns the keys of m sorted by insertion sequence.
// Must be called with the read lock held.
func (g *SupplyGraph) orderedIDs(m map[string]*Node) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return g.seq[ids[i]] < g.seq[ids[j]] })
	return ids
}

// successorsLocked returns the targets of a node's outgoing edges in
// insertion order. Must be called with the read lock held.
func (g *SupplyGraph) successorsLocked(nodeID string) []string {
	out := g.outgoing[nodeID]
	ids := make([]string, 0, len(out))
	for id := range out {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return g.seq[ids[i]] < g.seq[ids[j]] })
	return ids
}
