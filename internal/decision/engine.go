// Package decision turns simulated disruptions into ranked mitigation actions.
package decision

import (
	"math"
	"sort"
	"time"

	"github.com/Benny93/sentinel-go/internal/risk"
	"github.com/Benny93/sentinel-go/internal/simulation"
)

// factorWeight caps each additive confidence factor.
const factorWeight = 0.2

// overallTopK is the number of leading decisions averaged into the overall confidence.
const overallTopK = 3

// Recommendation is one action of a decision.
type Recommendation struct {
	Action              Action  `json:"action"`
	Description         string  `json:"description"`
	Urgency             int     `json:"urgency"`
	EstimatedConfidence float64 `json:"estimated_confidence"`
	LeadTimeDays        int     `json:"lead_time_days"`
}

// Decision is the recommended response to one risk and its scenario.
type Decision struct {
	NodeID             string           `json:"node_id"`
	Name               string           `json:"name"`
	Material           string           `json:"material"`
	Country            string           `json:"country"`
	RiskScore          float64          `json:"risk_score"`
	DelayDays          float64          `json:"delay_days"`
	ServiceImpactPct   float64          `json:"service_impact_pct"`
	AffectedNodesCount int              `json:"affected_nodes_count"`
	RecommendedActions []Recommendation `json:"recommended_actions"`
	PrimaryAction      Action           `json:"primary_action"`
	Confidence         float64          `json:"confidence"`
}

// Result is the decision output of one cycle.
type Result struct {
	Decisions         []Decision `json:"recommended_actions"`
	OverallConfidence float64    `json:"overall_confidence"`
	DecisionCount     int        `json:"decision_count"`
	DecidedAt         time.Time  `json:"decision_timestamp"`
	TopRecommendation Action     `json:"top_recommendation"`
}

// Empty returns the sentinel result used when there is nothing to decide.
func Empty(now time.Time) Result {
	return Result{Decisions: []Decision{}, DecidedAt: now, TopRecommendation: DoNothing}
}

// Engine applies the rule tables.
type Engine struct {
	tables     Tables
	thresholds Thresholds
}

// NewEngine returns an Engine using DefaultTables and DefaultThresholds.
func NewEngine() *Engine {
	return &Engine{tables: DefaultTables(), thresholds: DefaultThresholds}
}

// NewEngineWith returns an Engine with custom tables and thresholds.
func NewEngineWith(tables Tables, thresholds Thresholds) *Engine {
	return &Engine{tables: tables, thresholds: thresholds}
}

// IsHighRisk reports whether a decision's severity reaches the high tier.
func (e *Engine) IsHighRisk(d Decision) bool {
	return d.RiskScore >= e.thresholds.HighSeverity
}

// Confidence combines severity with delay, impact, material and country
// factors, each contributing at most 0.2.
func (e *Engine) Confidence(r risk.RiskRecord, sc simulation.Scenario) float64 {
	th := e.thresholds
	delayFactor := math.Min(math.Max(sc.EstimatedDelayDays, 0)/th.CriticalDelayDays, 1) * factorWeight
	serviceFactor := math.Min(math.Max(sc.ServiceLevelImpactPct, 0)/th.CriticalImpactPct, 1) * factorWeight
	materialFactor := float64(e.tables.materialCriticality(r.Material)) / 5 * factorWeight
	countryFactor := float64(e.tables.countryRisk(r.Country)) / 5 * factorWeight

	total := math.Min(r.RiskScore, 1) + delayFactor + serviceFactor + materialFactor + countryFactor
	return round2(math.Max(0, math.Min(total, 1)))
}

// Actions selects the action set for a risk and its scenario, ordered by
// urgency descending. The result is never empty and holds no duplicates.
func (e *Engine) Actions(r risk.RiskRecord, sc simulation.Scenario) []Action {
	th := e.thresholds
	severity := r.RiskScore
	delay := sc.EstimatedDelayDays
	impact := sc.ServiceLevelImpactPct
	criticality := e.tables.materialCriticality(r.Material)

	var actions []Action
	switch {
	case severity >= th.CriticalSeverity || delay >= th.CriticalDelayDays || impact >= th.CriticalImpactPct:
		if sc.DisruptionType == simulation.NodeFailure {
			actions = append(actions, ExpediteShipment, ActivateAlternativeSource)
		} else {
			actions = append(actions, IncreaseSafetyStock, ActivateAlternativeSource)
		}
		if criticality >= 4 && e.tables.highTension(r.Country) {
			actions = append(actions, DiversifySuppliers)
		}

	case severity >= th.HighSeverity || delay >= th.HighDelayDays || impact >= th.HighImpactPct:
		if delay > 0 && delay < th.HighDelayDays {
			actions = append(actions, IncreaseSafetyStock)
		}
		if sc.AffectedNodesCount >= 3 {
			actions = append(actions, ActivateAlternativeSource)
		} else {
			actions = append(actions, NotifyProcurement)
		}
		if e.tables.countryRisk(r.Country) >= 3 {
			actions = append(actions, DiversifySuppliers)
		}

	case severity >= th.MediumSeverity || impact >= th.MediumImpactPct:
		actions = append(actions, NotifyProcurement, IncreaseMonitoring)

	default:
		actions = append(actions, IncreaseMonitoring)
	}

	if delay < th.MinorDelayDays && impact < th.MediumImpactPct && severity < th.MediumSeverity {
		actions = []Action{DoNothing}
	}

	if criticality >= 4 {
		if i := indexOf(actions, IncreaseMonitoring); i >= 0 {
			actions = append(actions[:i], actions[i+1:]...)
			actions = append(actions, NotifyProcurement)
		}
	}

	actions = dedupe(actions)
	sort.SliceStable(actions, func(i, j int) bool {
		return Catalog[actions[i]].Urgency > Catalog[actions[j]].Urgency
	})
	return actions
}

// Decide builds the decision for one risk and its scenario.
func (e *Engine) Decide(r risk.RiskRecord, sc simulation.Scenario) Decision {
	confidence := e.Confidence(r, sc)
	actions := e.Actions(r, sc)

	recs := make([]Recommendation, 0, len(actions))
	for _, a := range actions {
		entry := Catalog[a]
		recs = append(recs, Recommendation{
			Action:              a,
			Description:         entry.Description,
			Urgency:             entry.Urgency,
			EstimatedConfidence: round2(math.Min(confidence, 1)),
			LeadTimeDays:        entry.LeadTimeDays,
		})
	}

	primary := DoNothing
	if len(recs) > 0 {
		primary = recs[0].Action
	}

	name := r.Name
	if name == "" {
		name = r.NodeID
	}
	return Decision{
		NodeID:             r.NodeID,
		Name:               name,
		Material:           r.Material,
		Country:            r.Country,
		RiskScore:          r.RiskScore,
		DelayDays:          sc.EstimatedDelayDays,
		ServiceImpactPct:   sc.ServiceLevelImpactPct,
		AffectedNodesCount: sc.AffectedNodesCount,
		RecommendedActions: recs,
		PrimaryAction:      primary,
		Confidence:         confidence,
	}
}

// Run decides every scenario that has a matching risk. A scenario is matched
// to the first risk with the same node ID; unmatched scenarios are skipped.
// Empty risk or scenario input yields the Empty sentinel.
func (e *Engine) Run(risks []risk.RiskRecord, scenarios []simulation.Scenario, now time.Time) Result {
	if len(risks) == 0 || len(scenarios) == 0 {
		return Empty(now)
	}

	first := make(map[string]risk.RiskRecord, len(risks))
	for _, r := range risks {
		if _, ok := first[r.NodeID]; !ok {
			first[r.NodeID] = r
		}
	}

	decisions := make([]Decision, 0, len(scenarios))
	for _, sc := range scenarios {
		r, ok := first[sc.NodeID]
		if !ok {
			continue
		}
		decisions = append(decisions, e.Decide(r, sc))
	}
	if len(decisions) == 0 {
		return Empty(now)
	}

	sort.SliceStable(decisions, func(i, j int) bool {
		return decisions[i].Confidence > decisions[j].Confidence
	})

	k := min(overallTopK, len(decisions))
	sum := 0.0
	for _, d := range decisions[:k] {
		sum += d.Confidence
	}

	return Result{
		Decisions:         decisions,
		OverallConfidence: round2(math.Min(sum/float64(k), 1)),
		DecisionCount:     len(decisions),
		DecidedAt:         now,
		TopRecommendation: decisions[0].PrimaryAction,
	}
}

func indexOf(actions []Action, a Action) int {
	for i, x := range actions {
		if x == a {
			return i
		}
	}
	return -1
}

func dedupe(actions []Action) []Action {
	seen := make(map[Action]bool, len(actions))
	out := actions[:0]
	for _, a := range actions {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
