package graph

import (
	"fmt"
	"sort"
)

// criticalNodeLimit caps the number of nodes reported as critical.
const criticalNodeLimit = 3

// Descendants returns the IDs of every node reachable from nodeID via
// directed edges, in breadth-first order. The start node is excluded.
func (g *SupplyGraph) Descendants(nodeID string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[nodeID]; !ok {
		return nil, fmt.Errorf("descendants of %s: %w", nodeID, ErrNotFound)
	}

	visited := map[string]bool{nodeID: true}
	queue := []string{nodeID}
	var result []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.successorsLocked(current) {
			if visited[next] {
				continue
			}
			visited[next] = true
			result = append(result, next)
			queue = append(queue, next)
		}
	}
	return result, nil
}

// ShortestPathLength returns the minimum number of hops from one node to
// another. The distance from a node to itself is zero.
func (g *SupplyGraph) ShortestPathLength(from, to string) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[from]; !ok {
		return 0, fmt.Errorf("path %s->%s: source %w", from, to, ErrNotFound)
	}
	if _, ok := g.nodes[to]; !ok {
		return 0, fmt.Errorf("path %s->%s: target %w", from, to, ErrNotFound)
	}
	if from == to {
		return 0, nil
	}

	dist := map[string]int{from: 0}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for next := range g.outgoing[current] {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[current] + 1
			if next == to {
				return dist[next], nil
			}
			queue = append(queue, next)
		}
	}
	return 0, fmt.Errorf("path %s->%s: %w", from, to, ErrNoPath)
}

// HasCycle reports whether the graph contains a directed cycle.
// Uses depth-first search with white/gray/black marking; reaching a gray
// node means a back edge.
func (g *SupplyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

func (g *SupplyGraph) hasCycleLocked() bool {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for next := range g.outgoing[id] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range g.orderedIDs(g.nodes) {
		if color[id] == white && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalOrder returns the node IDs ordered so that every edge points
// forward (Kahn's algorithm). Ties follow insertion order.
func (g *SupplyGraph) TopologicalOrder() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.topologicalOrderLocked()
}

func (g *SupplyGraph) topologicalOrderLocked() ([]string, error) {
	ids := g.orderedIDs(g.nodes)
	inDegree := make(map[string]int, len(ids))
	for _, id := range ids {
		inDegree[id] = len(g.incoming[id])
	}

	var queue []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(ids))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		for _, next := range g.successorsLocked(current) {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(ids) {
		return nil, ErrCyclic
	}
	return order, nil
}

// LongestPath returns the node IDs along the heaviest directed path, where
// path length is the sum of edge weights. It fails with ErrCyclic when the
// graph is not acyclic. An empty graph yields an empty path.
func (g *SupplyGraph) LongestPath() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	order, err := g.topologicalOrderLocked()
	if err != nil {
		return nil, fmt.Errorf("longest path: %w", err)
	}
	if len(order) == 0 {
		return nil, nil
	}

	dist := make(map[string]float64, len(order))
	prev := make(map[string]string, len(order))
	for _, id := range order {
		best := 0.0
		bestPrev := ""
		for _, src := range g.orderedPredecessorsLocked(id) {
			d := dist[src] + g.outgoing[src][id].Weight
			if bestPrev == "" || d > best {
				best = d
				bestPrev = src
			}
		}
		dist[id] = best
		if bestPrev != "" {
			prev[id] = bestPrev
		}
	}

	end := order[0]
	for _, id := range order[1:] {
		if dist[id] > dist[end] {
			end = id
		}
	}

	var path []string
	for cur := end; ; {
		path = append(path, cur)
		p, ok := prev[cur]
		if !ok {
			break
		}
		cur = p
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// CriticalNodes returns up to three nodes considered most critical to flow.
// On an acyclic graph these are the first nodes of the longest path; on a
// cyclic graph they are the nodes with the highest out-degree.
func (g *SupplyGraph) CriticalNodes() []string {
	if g.HasCycle() {
		return g.topByOutDegree(criticalNodeLimit)
	}
	path, err := g.LongestPath()
	if err != nil {
		return g.topByOutDegree(criticalNodeLimit)
	}
	if len(path) > criticalNodeLimit {
		path = path[:criticalNodeLimit]
	}
	return path
}

// topByOutDegree returns the n node IDs with the most outgoing edges,
// ties broken by insertion order.
func (g *SupplyGraph) topByOutDegree(n int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.orderedIDs(g.nodes)
	sort.SliceStable(ids, func(i, j int) bool {
		return len(g.outgoing[ids[i]]) > len(g.outgoing[ids[j]])
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// orderedPredecessorsLocked returns the sources of a node's incoming edges in
// insertion order. Must be called with the read lock held.
func (g *SupplyGraph) orderedPredecessorsLocked(nodeID string) []string {
	in := g.incoming[nodeID]
	ids := make([]string, 0, len(in))
	for id := range in {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return g.seq[ids[i]] < g.seq[ids[j]] })
	return ids
}
