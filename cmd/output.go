package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/Benny93/sentinel-go/internal/decision"
	"github.com/Benny93/sentinel-go/internal/graph"
	"github.com/Benny93/sentinel-go/internal/pipeline"
	"github.com/Benny93/sentinel-go/internal/storage"
)

const maxPrintedRisks = 5

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	bold   = color.New(color.Bold)
)

// severityColor picks the color for a 0-1 risk score.
func severityColor(score float64) *color.Color {
	switch {
	case score >= decision.DefaultThresholds.CriticalSeverity:
		return red
	case score >= decision.DefaultThresholds.HighSeverity:
		return yellow
	}
	return color.New(color.Reset)
}

func printCycle(w io.Writer, res *pipeline.CycleResult) {
	if res == nil {
		return
	}
	switch res.Status {
	case pipeline.StatusEmptyTopology:
		yellow.Fprintln(w, "⚠ No valid suppliers loaded: nothing to analyze")
	case pipeline.StatusEmptyInput:
		yellow.Fprintln(w, "⚠ No signals loaded: no risks assessed")
	default:
		green.Fprintf(w, "✓ Cycle complete (%.2fs)\n", res.DurationSecs)
	}

	ing := res.Ingestion
	fmt.Fprintf(w, "  Suppliers:      %d (dropped %d)\n", res.Graph.Stats.SourceCount, ing.SuppliersDropped)
	fmt.Fprintf(w, "  Signals:        %d (dropped %d)", res.Risk.SignalsAnalyzed, ing.SignalsDropped)
	if len(ing.SignalSources) > 0 {
		fmt.Fprintf(w, " from %s", strings.Join(ing.SignalSources, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Network:        %d nodes, %d edges\n", res.Graph.Stats.NodeCount, res.Graph.Stats.EdgeCount)
	fmt.Fprintf(w, "  Risks:          %d (max severity %.2f)\n", res.Risk.TotalRisks, res.Risk.MaxSeverity)
	fmt.Fprintf(w, "  Worst delay:    %.1f days\n", res.Simulation.WorstCaseDelayDays)
	fmt.Fprintf(w, "  Decisions:      %d (confidence %.2f)\n", res.Decision.DecisionCount, res.Decision.OverallConfidence)
	fmt.Fprintf(w, "  Top action:     %s\n", res.Decision.TopRecommendation)

	if len(res.Risk.Risks) > 0 {
		bold.Fprintf(w, "\nTop risks\n")
		for _, r := range res.Risk.Top(maxPrintedRisks) {
			severityColor(r.RiskScore).Fprintf(w, "  %.2f", r.RiskScore)
			fmt.Fprintf(w, "  %-6s %s (%s, %s)\n", r.NodeID, r.Name, r.Country, r.Material)
			fmt.Fprintf(w, "        %s\n", r.SignalTitle)
		}
	}

	if len(res.SimErrors) > 0 {
		yellow.Fprintf(w, "\n%d simulations failed\n", len(res.SimErrors))
		for _, e := range res.SimErrors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}

	if len(res.Decision.Decisions) > 0 {
		bold.Fprintf(w, "\nRecommended actions\n")
		for _, d := range res.Decision.Decisions {
			severityColor(d.RiskScore).Fprintf(w, "  %-6s", d.NodeID)
			fmt.Fprintf(w, " %s: %s (confidence %.2f, delay %.1fd)\n", d.Name, d.PrimaryAction, d.Confidence, d.DelayDays)
			for _, r := range d.RecommendedActions {
				fmt.Fprintf(w, "         - %s, lead time %dd\n", r.Description, r.LeadTimeDays)
			}
		}
	}
}

// printCycleLine prints the one-line digest used by run and watch.
func printCycleLine(w io.Writer, res *pipeline.CycleResult) {
	s := res.Summary()
	fmt.Fprintf(w, "[%s] %s: %d suppliers, %d signals, ", res.Timestamp.Local().Format(time.TimeOnly), s.Status, s.Suppliers, s.Signals)
	severityColor(s.MaxSeverity).Fprintf(w, "%d risks (max %.2f)", s.Risks, s.MaxSeverity)
	fmt.Fprintf(w, ", worst delay %.1fd, %d decisions, top action %s\n", s.WorstDelayDays, s.Decisions, s.TopAction)
}

func printMetas(w io.Writer, metas []storage.SnapshotMeta) {
	bold.Fprintf(w, "%-24s %-20s %6s %8s %8s  %s\n", "ID", "RECORDED", "RISKS", "MAX", "DELAY", "TOP ACTION")
	for _, m := range metas {
		fmt.Fprintf(w, "%-24s %-20s %6d ", m.ID, m.Timestamp.Format("2006-01-02 15:04:05"), m.Summary.Risks)
		severityColor(m.Summary.MaxSeverity).Fprintf(w, "%8.2f", m.Summary.MaxSeverity)
		fmt.Fprintf(w, " %7.1fd  %s\n", m.Summary.WorstDelayDays, m.Summary.TopAction)
	}
}

func printStats(w io.Writer, dataDir string, st storage.Stats) {
	fmt.Fprintf(w, "Snapshot store at %s\n", dataDir)
	fmt.Fprintf(w, "  Cycles:         %d\n", st.TotalCycles)
	if st.Oldest != nil && st.Newest != nil {
		fmt.Fprintf(w, "  Oldest:         %s\n", st.Oldest.Format(time.RFC3339))
		fmt.Fprintf(w, "  Newest:         %s\n", st.Newest.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  Total size:     %d bytes\n", st.TotalBytes)
	fmt.Fprintf(w, "  Average size:   %.0f bytes\n", st.AverageBytes)
}

func printWhatIf(w io.Writer, cycleID string, out pipeline.WhatIfResult) {
	sc := out.Scenario
	bold.Fprintf(w, "What-if: %s (%s)\n", out.Node.Name, out.Node.ID)
	fmt.Fprintf(w, "  Topology:       cycle %s\n", cycleID)
	fmt.Fprint(w, "  Severity:       ")
	severityColor(out.Risk.RiskScore).Fprintf(w, "%.2f\n", out.Risk.RiskScore)
	fmt.Fprintf(w, "  Disruption:     %s (capacity loss %d%%)\n", sc.DisruptionType, sc.CapacityLossPct)
	fmt.Fprintf(w, "  Delay:          %.1f days\n", sc.EstimatedDelayDays)
	fmt.Fprintf(w, "  Affected nodes: %d\n", sc.AffectedNodesCount)
	fmt.Fprintf(w, "  Service impact: %.1f%%\n", sc.ServiceLevelImpactPct)

	d := out.Decision
	bold.Fprintf(w, "\nRecommended actions (confidence %.2f)\n", d.Confidence)
	for _, r := range d.RecommendedActions {
		fmt.Fprintf(w, "  - %s: %s (urgency %d, lead time %dd)\n", r.Action, r.Description, r.Urgency, r.LeadTimeDays)
	}
}

func printGraph(w io.Writer, g *graph.SupplyGraph, longest []string, dropped int) {
	st := g.Stats()
	bold.Fprintln(w, "Supply network")
	fmt.Fprintf(w, "  Nodes:          %d (%d suppliers)\n", st.NodeCount, st.SourceCount)
	fmt.Fprintf(w, "  Edges:          %d\n", st.EdgeCount)
	fmt.Fprintf(w, "  Avg degree:     %.2f\n", st.AvgDegree)
	fmt.Fprintf(w, "  Has cycles:     %t\n", st.HasCycles)
	fmt.Fprintf(w, "  Critical nodes: %s\n", strings.Join(st.CriticalNodes, ", "))
	if len(longest) > 0 {
		fmt.Fprintf(w, "  Longest path:   %s\n", strings.Join(longest, " -> "))
	}
	if dropped > 0 {
		yellow.Fprintf(w, "  Dropped rows:   %d\n", dropped)
	}

	for _, kind := range []graph.NodeKind{graph.KindSource, graph.KindAssembly, graph.KindDistribution, graph.KindCustomer} {
		nodes := g.NodesByKind(kind)
		if len(nodes) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n### %s (%d)\n", kind, len(nodes))
		for _, n := range nodes {
			succ, _ := g.Successors(n.ID)
			line := fmt.Sprintf("- %s %s", n.ID, n.Name)
			if kind == graph.KindSource {
				line += fmt.Sprintf(" [%s, %s, %.0f t/month]", n.Country, n.Material, n.Capacity)
			}
			if len(succ) > 0 {
				line += " -> " + strings.Join(succ, ", ")
			}
			fmt.Fprintln(w, line)
		}
	}
}
