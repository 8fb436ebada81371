// Package mcp provides the MCP (Model Context Protocol) server for Sentinel.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/sentinel-go/internal/decision"
	"github.com/Benny93/sentinel-go/internal/graph"
	"github.com/Benny93/sentinel-go/internal/pipeline"
	"github.com/Benny93/sentinel-go/internal/risk"
	"github.com/Benny93/sentinel-go/internal/simulation"
	"github.com/Benny93/sentinel-go/internal/storage"
)

// Tool names.
const (
	ToolLatestCycle = "sentinel_latest_cycle"
	ToolHistory     = "sentinel_history"
	ToolCycle       = "sentinel_cycle"
	ToolSearch      = "sentinel_search"
	ToolSimulate    = "sentinel_simulate"
)

// Resource URIs.
const (
	ResourceOverview = "sentinel://overview"
	ResourceSchema   = "sentinel://schema"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	maxListedRisks      = 10
)

// Server represents the MCP server.
type Server struct {
	store  storage.SnapshotStore
	server *mcp.Server
	now    func() time.Time
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NoArgs is the input of tools without parameters.
type NoArgs struct{}

// HistoryArgs is the input of sentinel_history.
type HistoryArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of cycles to list, newest first"`
}

// CycleArgs is the input of sentinel_cycle.
type CycleArgs struct {
	ID string `json:"id" jsonschema:"Snapshot ID such as 20260601_083000, or latest"`
}

// SearchArgs is the input of sentinel_search.
type SearchArgs struct {
	Query string `json:"query" jsonschema:"Words that must all appear in a signal title of the cycle"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of matches"`
}

// SimulateArgs is the input of sentinel_simulate.
type SimulateArgs struct {
	NodeID   string  `json:"node_id" jsonschema:"ID of the node to disrupt"`
	Severity float64 `json:"severity,omitempty" jsonschema:"Disruption severity in (0,1]; defaults to the node's recorded risk score"`
	CycleID  string  `json:"cycle_id,omitempty" jsonschema:"Snapshot whose topology is used; defaults to the latest"`
}

// NewServer creates a new MCP server over store.
func NewServer(store storage.SnapshotStore, version string) *Server {
	s := &Server{
		store: store,
		now:   time.Now,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "sentinel-go",
		Version: version,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        ToolLatestCycle,
			Description: "Summarize the most recent monitoring cycle: top risks, worst-case delay and recommended actions.",
			InputSchema: schemaFor[NoArgs](),
		},
		{
			Name:        ToolHistory,
			Description: "List recorded cycles, newest first, with their one-line summaries.",
			InputSchema: schemaFor[HistoryArgs](),
		},
		{
			Name:        ToolCycle,
			Description: "Show one recorded cycle in detail: risks, simulated scenarios and decisions.",
			InputSchema: schemaFor[CycleArgs](),
		},
		{
			Name:        ToolSearch,
			Description: "Find cycles whose signal titles contain all the given words.",
			InputSchema: schemaFor[SearchArgs](),
		},
		{
			Name:        ToolSimulate,
			Description: "What-if analysis: disrupt one node of a recorded topology and report the downstream impact and recommended response.",
			InputSchema: schemaFor[SimulateArgs](),
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         ResourceOverview,
			Name:        "Monitoring Overview",
			Description: "Store statistics and the digest of the latest cycle",
			MimeType:    "text/markdown",
		},
		{
			URI:         ResourceSchema,
			Name:        "Cycle Schema",
			Description: "Node kinds, risk categories and actions used in cycle snapshots",
			MimeType:    "text/markdown",
		},
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case ResourceOverview:
		return s.overview(ctx)
	case ResourceSchema:
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	byName := make(map[string]Tool)
	for _, t := range s.ListTools() {
		byName[t.Name] = t
	}
	def := func(name string) *mcp.Tool {
		t := byName[name]
		return &mcp.Tool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}

	mcp.AddTool(s.server, def(ToolLatestCycle), func(ctx context.Context, _ *mcp.CallToolRequest, _ NoArgs) (*mcp.CallToolResult, any, error) {
		return result(s.latestCycle(ctx))
	})
	mcp.AddTool(s.server, def(ToolHistory), func(ctx context.Context, _ *mcp.CallToolRequest, in HistoryArgs) (*mcp.CallToolResult, any, error) {
		return result(s.history(ctx, in.Limit))
	})
	mcp.AddTool(s.server, def(ToolCycle), func(ctx context.Context, _ *mcp.CallToolRequest, in CycleArgs) (*mcp.CallToolResult, any, error) {
		return result(s.cycle(ctx, in.ID))
	})
	mcp.AddTool(s.server, def(ToolSearch), func(ctx context.Context, _ *mcp.CallToolRequest, in SearchArgs) (*mcp.CallToolResult, any, error) {
		return result(s.search(ctx, in.Query, in.Limit))
	})
	mcp.AddTool(s.server, def(ToolSimulate), func(ctx context.Context, _ *mcp.CallToolRequest, in SimulateArgs) (*mcp.CallToolResult, any, error) {
		return result(s.simulate(ctx, in))
	})
}

func (s *Server) registerResources() {
	for _, r := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, req.Params.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: req.Params.URI, MIMEType: r.MimeType, Text: text}},
			}, nil
		})
	}
}

// result turns a handler outcome into a tool result. Errors are reported to
// the client as tool errors rather than protocol errors.
func result(text string, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			IsError: true,
		}, nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

func schemaFor[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("tool schema: %v", err))
	}
	return schema
}

// Tool Handlers

const noCycles = "No cycles recorded yet. Run `sentinel analyze` to record one."

func (s *Server) latestCycle(ctx context.Context) (string, error) {
	snap, err := s.store.Latest(ctx)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		return noCycles, nil
	}
	if err != nil {
		return "", err
	}
	return formatCycle(snap, false), nil
}

func (s *Server) history(ctx context.Context, limit int) (string, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	metas, err := s.store.List(ctx, limit)
	if err != nil {
		return "", err
	}
	if len(metas) == 0 {
		return noCycles, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Recorded Cycles (%d)\n\n", len(metas))
	for _, m := range metas {
		writeMetaLine(&sb, m)
	}
	sb.WriteString("\nNext: Use `sentinel_cycle` with an ID for the full picture.")
	return sb.String(), nil
}

func (s *Server) cycle(ctx context.Context, id string) (string, error) {
	snap, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	return formatCycle(snap, true), nil
}

func (s *Server) search(ctx context.Context, query string, limit int) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "No query provided", nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	metas, err := s.store.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	if len(metas) == 0 {
		return fmt.Sprintf("No cycles found for '%s'", query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d cycles for '%s':\n\n", len(metas), query)
	for _, m := range metas {
		writeMetaLine(&sb, m)
	}
	return sb.String(), nil
}

func (s *Server) simulate(ctx context.Context, in SimulateArgs) (string, error) {
	if in.NodeID == "" {
		return "", errors.New("node_id is required")
	}

	snap, err := s.load(ctx, in.CycleID)
	if err != nil {
		return "", err
	}

	out, err := pipeline.WhatIf(snap.Cycle, in.NodeID, in.Severity, s.now())
	switch {
	case errors.Is(err, graph.ErrNotFound):
		return "", fmt.Errorf("node %q not found in cycle %s", in.NodeID, snap.Meta.ID)
	case errors.Is(err, pipeline.ErrNoRecordedRisk):
		return "", fmt.Errorf("no recorded risk for %s in cycle %s; pass a severity", in.NodeID, snap.Meta.ID)
	case err != nil:
		return "", err
	}

	sc := out.Scenario
	var sb strings.Builder
	fmt.Fprintf(&sb, "## What-if: %s (%s)\n\n", out.Node.Name, out.Node.ID)
	fmt.Fprintf(&sb, "Topology of cycle %s, severity %.2f\n\n", snap.Meta.ID, out.Risk.RiskScore)
	fmt.Fprintf(&sb, "- Disruption: %s (capacity loss %d%%)\n", sc.DisruptionType, sc.CapacityLossPct)
	fmt.Fprintf(&sb, "- Estimated delay: %.1f days\n", sc.EstimatedDelayDays)
	fmt.Fprintf(&sb, "- Affected nodes: %d\n", sc.AffectedNodesCount)
	fmt.Fprintf(&sb, "- Service level impact: %.1f%%\n", sc.ServiceLevelImpactPct)
	sb.WriteString("\n### Recommended Actions\n\n")
	for _, r := range out.Decision.RecommendedActions {
		fmt.Fprintf(&sb, "- **%s** (urgency %d, lead time %dd): %s\n", r.Action, r.Urgency, r.LeadTimeDays, r.Description)
	}
	fmt.Fprintf(&sb, "\nConfidence: %.2f", out.Decision.Confidence)
	return sb.String(), nil
}

// load resolves an empty ID or "latest" to the newest snapshot.
func (s *Server) load(ctx context.Context, id string) (*storage.Snapshot, error) {
	var (
		snap *storage.Snapshot
		err  error
	)
	if id == "" || id == "latest" {
		snap, err = s.store.Latest(ctx)
	} else {
		snap, err = s.store.Load(ctx, id)
	}
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		if id == "" || id == "latest" {
			return nil, errors.New(noCycles)
		}
		return nil, fmt.Errorf("cycle '%s' not found", id)
	}
	if err != nil {
		return nil, err
	}
	if snap.Cycle == nil {
		return nil, fmt.Errorf("cycle '%s' has no payload", snap.Meta.ID)
	}
	return snap, nil
}

func writeMetaLine(sb *strings.Builder, m storage.SnapshotMeta) {
	fmt.Fprintf(sb, "- `%s` %s: %d risks, max severity %.2f, worst delay %.1fd, top action %s\n",
		m.ID, m.Timestamp.Format(time.RFC3339), m.Summary.Risks, m.Summary.MaxSeverity,
		m.Summary.WorstDelayDays, m.Summary.TopAction)
}

func formatCycle(snap *storage.Snapshot, detailed bool) string {
	c := snap.Cycle
	sum := snap.Meta.Summary

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Cycle %s\n\n", snap.Meta.ID)
	fmt.Fprintf(&sb, "**Recorded:** %s\n", snap.Meta.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Status:** %s\n", sum.Status)
	fmt.Fprintf(&sb, "**Suppliers:** %d, **Signals:** %d\n", sum.Suppliers, sum.Signals)
	fmt.Fprintf(&sb, "**Risks:** %d (max severity %.2f)\n", sum.Risks, sum.MaxSeverity)
	fmt.Fprintf(&sb, "**Worst-case delay:** %.1f days\n", sum.WorstDelayDays)
	fmt.Fprintf(&sb, "**Top recommendation:** %s (confidence %.2f)\n", sum.TopAction, sum.OverallConfidence)

	if c == nil {
		return sb.String()
	}

	if len(c.Risk.Risks) > 0 {
		risks := c.Risk.Risks
		if !detailed {
			risks = c.Risk.Top(maxListedRisks)
		}
		fmt.Fprintf(&sb, "\n## Risks (%d)\n\n", len(c.Risk.Risks))
		for _, r := range risks {
			fmt.Fprintf(&sb, "- **%s** (%s, %s, %s) score %.2f %v: %s\n",
				r.Name, r.NodeID, r.Country, r.Material, r.RiskScore, r.RiskTypes, r.SignalTitle)
		}
	}

	if detailed && len(c.Simulation.Scenarios) > 0 {
		fmt.Fprintf(&sb, "\n## Scenarios (%d)\n\n", len(c.Simulation.Scenarios))
		for _, sc := range c.Simulation.Scenarios {
			fmt.Fprintf(&sb, "- %s: %s, delay %.1fd, %d nodes affected, service impact %.1f%%\n",
				sc.NodeID, sc.DisruptionType, sc.EstimatedDelayDays, sc.AffectedNodesCount, sc.ServiceLevelImpactPct)
		}
	}
	if detailed && len(c.SimErrors) > 0 {
		sb.WriteString("\n## Simulation Errors\n\n")
		for _, e := range c.SimErrors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}

	if len(c.Decision.Decisions) > 0 {
		fmt.Fprintf(&sb, "\n## Decisions (%d)\n\n", len(c.Decision.Decisions))
		for _, d := range c.Decision.Decisions {
			fmt.Fprintf(&sb, "- **%s** (%s): %s, confidence %.2f\n", d.Name, d.NodeID, d.PrimaryAction, d.Confidence)
			if detailed {
				for _, r := range d.RecommendedActions {
					fmt.Fprintf(&sb, "  - %s (urgency %d): %s\n", r.Action, r.Urgency, r.Description)
				}
			}
		}
	}

	if !detailed {
		fmt.Fprintf(&sb, "\nNext: Use `sentinel_cycle` with id `%s` for scenarios and full decisions.", snap.Meta.ID)
	}
	return sb.String()
}

// Resource Handlers

func (s *Server) overview(ctx context.Context) (string, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Sentinel Overview\n\n")
	fmt.Fprintf(&sb, "**Recorded cycles:** %d\n", st.TotalCycles)
	if st.Oldest != nil && st.Newest != nil {
		fmt.Fprintf(&sb, "**Range:** %s to %s\n", st.Oldest.Format(time.RFC3339), st.Newest.Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "**Storage:** %d bytes (avg %.0f per cycle)\n", st.TotalBytes, st.AverageBytes)

	latest, err := s.store.Latest(ctx)
	switch {
	case errors.Is(err, storage.ErrSnapshotNotFound):
		sb.WriteString("\n" + noCycles + "\n")
	case err != nil:
		return "", err
	default:
		sb.WriteString("\n## Latest Cycle\n\n")
		writeMetaLine(&sb, latest.Meta)
	}
	return sb.String(), nil
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Sentinel Cycle Schema\n\n")
	sb.WriteString("## Node Kinds\n\n")
	sb.WriteString("| Kind | Description |\n")
	sb.WriteString("|------|-------------|\n")
	fmt.Fprintf(&sb, "| `%s` | Supplier from the roster; carries country, material, capacity and country risk |\n", graph.KindSource)
	fmt.Fprintf(&sb, "| `%s` | Factory stage fed by matching suppliers |\n", graph.KindAssembly)
	fmt.Fprintf(&sb, "| `%s` | Warehouse stage |\n", graph.KindDistribution)
	fmt.Fprintf(&sb, "| `%s` | Terminal customer stage |\n", graph.KindCustomer)

	sb.WriteString("\n## Risk Categories\n\n")
	for _, c := range []risk.Category{
		risk.CategoryGeopolitical, risk.CategoryDisaster, risk.CategoryStrike,
		risk.CategoryOutage, risk.CategoryShortage, risk.CategoryGeneral,
	} {
		fmt.Fprintf(&sb, "- `%s`\n", c)
	}

	sb.WriteString("\n## Actions\n\n")
	sb.WriteString("| Action | Urgency | Lead time (days) |\n")
	sb.WriteString("|--------|---------|------------------|\n")
	for _, a := range decision.Actions() {
		entry := decision.Catalog[a]
		fmt.Fprintf(&sb, "| `%s` | %d | %d |\n", a, entry.Urgency, entry.LeadTimeDays)
	}

	sb.WriteString("\n## Disruption Model\n\n")
	fmt.Fprintf(&sb, "Severity at or above %.1f removes the node (`%s`); below it capacity is reduced (`%s`).\n",
		simulation.FailureThreshold, simulation.NodeFailure, simulation.CapacityReduction)
	fmt.Fprintf(&sb, "Each downstream hop adds %.0f days of delay, scaled by the severity tier.\n", simulation.DelayDaysPerHop)
	return sb.String()
}
