package topology

import "github.com/Benny93/sentinel-go/internal/graph"

// Skeleton node IDs. Every topology contains exactly these three stage nodes.
const (
	AssemblyID     = "F001"
	DistributionID = "W001"
	CustomerID     = "C001"
)

// SkeletonNode describes one fixed downstream stage.
type SkeletonNode struct {
	ID   string
	Kind graph.NodeKind
	Name string
}

// Skeleton is the fixed assembly -> distribution -> customer chain.
var Skeleton = []SkeletonNode{
	{ID: AssemblyID, Kind: graph.KindAssembly, Name: "Main Assembly Factory"},
	{ID: DistributionID, Kind: graph.KindDistribution, Name: "Central Distribution Warehouse"},
	{ID: CustomerID, Kind: graph.KindCustomer, Name: "Global Retail Customer"},
}

// SkeletonEdges link the stage nodes in flow order.
var SkeletonEdges = []graph.Edge{
	{Source: AssemblyID, Target: DistributionID, Material: "Assembled Products", Weight: 1.0},
	{Source: DistributionID, Target: CustomerID, Material: "Finished Goods", Weight: 1.0},
}

// Route sends sources of the listed materials to a stage node.
type Route struct {
	Target    string
	Weight    float64
	Materials []string
}

// Matches reports whether material is routed by r.
func (r Route) Matches(material string) bool {
	for _, m := range r.Materials {
		if m == material {
			return true
		}
	}
	return false
}

// DefaultRoutes holds the material routing rules. A material listed under
// more than one route gets an edge to each target.
var DefaultRoutes = []Route{
	{Target: AssemblyID, Weight: 1.0, Materials: []string{"Steel", "Semiconductors", "Precision bearings"}},
	{Target: DistributionID, Weight: 0.8, Materials: []string{"Paper pulp", "Nuts & oils"}},
}
