package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Benny93/sentinel-go/internal/decision"
	"github.com/Benny93/sentinel-go/internal/risk"
	"github.com/Benny93/sentinel-go/internal/simulation"
)

// ExportCSV writes the risks, scenarios and decisions of snap as
// <id>_risks.csv, <id>_scenarios.csv and <id>_decisions.csv in dir. Empty
// tables are skipped. It returns the paths written.
func ExportCSV(snap *Snapshot, dir string) ([]string, error) {
	if snap == nil || snap.Cycle == nil {
		return nil, fmt.Errorf("%w: empty snapshot", ErrSnapshotNotFound)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	c := snap.Cycle
	tables := []struct {
		suffix string
		header []string
		rows   [][]string
	}{
		{"risks", riskHeader, riskRows(c.Risk.Risks)},
		{"scenarios", scenarioHeader, scenarioRows(c.Simulation.Scenarios)},
		{"decisions", decisionHeader, decisionRows(c.Decision.Decisions)},
	}

	var written []string
	for _, t := range tables {
		if len(t.rows) == 0 {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", snap.Meta.ID, t.suffix))
		if err := writeCSV(path, t.header, t.rows); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

var riskHeader = []string{"node_id", "name", "country", "material", "risk_score", "risk_types", "signal_title", "signal_url"}

func riskRows(risks []risk.RiskRecord) [][]string {
	rows := make([][]string, 0, len(risks))
	for _, r := range risks {
		types := make([]string, len(r.RiskTypes))
		for i, t := range r.RiskTypes {
			types[i] = string(t)
		}
		rows = append(rows, []string{
			r.NodeID, r.Name, r.Country, r.Material,
			formatFloat(r.RiskScore), strings.Join(types, ";"), r.SignalTitle, r.SignalURL,
		})
	}
	return rows
}

var scenarioHeader = []string{"node_id", "disruption_type", "severity_used", "capacity_loss_pct", "estimated_delay_days", "affected_nodes_count", "service_level_impact_pct", "signal_title"}

func scenarioRows(scenarios []simulation.Scenario) [][]string {
	rows := make([][]string, 0, len(scenarios))
	for _, sc := range scenarios {
		rows = append(rows, []string{
			sc.NodeID, string(sc.DisruptionType), formatFloat(sc.SeverityUsed),
			strconv.Itoa(sc.CapacityLossPct), formatFloat(sc.EstimatedDelayDays),
			strconv.Itoa(sc.AffectedNodesCount), formatFloat(sc.ServiceLevelImpactPct), sc.SignalTitle,
		})
	}
	return rows
}

var decisionHeader = []string{"node_id", "name", "material", "country", "risk_score", "delay_days", "service_impact_pct", "primary_action", "actions", "confidence"}

func decisionRows(decisions []decision.Decision) [][]string {
	rows := make([][]string, 0, len(decisions))
	for _, d := range decisions {
		actions := make([]string, len(d.RecommendedActions))
		for i, r := range d.RecommendedActions {
			actions[i] = string(r.Action)
		}
		rows = append(rows, []string{
			d.NodeID, d.Name, d.Material, d.Country,
			formatFloat(d.RiskScore), formatFloat(d.DelayDays), formatFloat(d.ServiceImpactPct),
			string(d.PrimaryAction), strings.Join(actions, ";"), formatFloat(d.Confidence),
		})
	}
	return rows
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
