// Package graph provides the supply-chain network model for Sentinel.
//
// It defines the node kinds that make up a material-flow topology (sources,
// the assembly stage, the distribution stage and the customer) and the
// directed edges that carry material between them.
package graph

import (
	"errors"
	"fmt"
)

// NodeKind represents the role of a node in the material flow.
type NodeKind string

const (
	KindSource       NodeKind = "source"
	KindAssembly     NodeKind = "assembly"
	KindDistribution NodeKind = "distribution"
	KindCustomer     NodeKind = "customer"
)

// Valid reports whether k is one of the known node kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case KindSource, KindAssembly, KindDistribution, KindCustomer:
		return true
	}
	return false
}

// Errors returned by graph operations.
var (
	// ErrNotFound is returned when an operation references an absent node.
	ErrNotFound = errors.New("node not found")

	// ErrNoPath is returned when no directed path joins two nodes.
	ErrNoPath = errors.New("no path")

	// ErrCyclic is returned by operations that require an acyclic graph.
	ErrCyclic = errors.New("graph contains a cycle")

	// ErrInvalidNode is returned when a node fails kind-specific validation.
	ErrInvalidNode = errors.New("invalid node")
)

// Node is a vertex in the supply graph.
//
// Source nodes carry Country, Material, Capacity and CountryRiskBaseline.
// Stage nodes (assembly, distribution, customer) only carry ID, Kind and Name.
type Node struct {
	// ID is the stable identifier of the node (e.g. "S001", "F001").
	ID string `json:"id"`

	// Kind is the role of the node in the flow.
	Kind NodeKind `json:"kind"`

	// Name is the display name.
	Name string `json:"name"`

	// Country is the country of origin (source nodes only).
	Country string `json:"country,omitempty"`

	// Material is the supplied material (source nodes only).
	Material string `json:"material,omitempty"`

	// Capacity is the monthly capacity in tons (source nodes only).
	Capacity float64 `json:"capacity,omitempty"`

	// CountryRiskBaseline is the roster's 0-1 country risk (source nodes only).
	CountryRiskBaseline float64 `json:"country_risk_baseline,omitempty"`
}

// NewSourceNode creates a validated source node.
func NewSourceNode(id, name, country, material string, capacity, baseline float64) (*Node, error) {
	n := &Node{
		ID:                  id,
		Kind:                KindSource,
		Name:                name,
		Country:             country,
		Material:            material,
		Capacity:            capacity,
		CountryRiskBaseline: baseline,
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// NewStageNode creates a validated assembly, distribution or customer node.
func NewStageNode(id string, kind NodeKind, name string) (*Node, error) {
	n := &Node{ID: id, Kind: kind, Name: name}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks the kind-specific required fields.
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidNode)
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidNode, n.ID, n.Kind)
	}
	if n.Kind != KindSource {
		if n.Country != "" || n.Material != "" || n.Capacity != 0 || n.CountryRiskBaseline != 0 {
			return fmt.Errorf("%w: %s node %s carries source attributes", ErrInvalidNode, n.Kind, n.ID)
		}
		return nil
	}
	switch {
	case n.Country == "":
		return fmt.Errorf("%w: source %s has no country", ErrInvalidNode, n.ID)
	case n.Material == "":
		return fmt.Errorf("%w: source %s has no material", ErrInvalidNode, n.ID)
	case n.Capacity < 0:
		return fmt.Errorf("%w: source %s has negative capacity %v", ErrInvalidNode, n.ID, n.Capacity)
	case n.CountryRiskBaseline < 0 || n.CountryRiskBaseline > 1:
		return fmt.Errorf("%w: source %s baseline %v outside [0,1]", ErrInvalidNode, n.ID, n.CountryRiskBaseline)
	}
	return nil
}

// Edge is a directed material flow between two nodes.
type Edge struct {
	// Source is the upstream node ID.
	Source string `json:"source"`

	// Target is the downstream node ID.
	Target string `json:"target"`

	// Material is the label of what flows along the edge.
	Material string `json:"material"`

	// Weight is the 0-1 flow fraction / criticality.
	Weight float64 `json:"weight"`
}

// Stats summarizes a graph.
type Stats struct {
	NodeCount     int      `json:"node_count"`
	EdgeCount     int      `json:"edge_count"`
	SourceCount   int      `json:"source_count"`
	HasCycles     bool     `json:"has_cycles"`
	CriticalNodes []string `json:"critical_nodes"`
	AvgDegree     float64  `json:"avg_degree"`
}

// Snapshot is a serializable node/edge listing of a graph.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}
